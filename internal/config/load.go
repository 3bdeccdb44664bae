// Copyright 2015 trivago GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Load parses path as a YAML configuration document (spec §6) and
// builds every section's typed config. All errors are configuration
// errors in the sense of spec §7: fatal at startup, never at runtime —
// Load itself never exits the process, leaving that to the caller.
func Load(path string) (*Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}

	cfg := &Config{}

	if cfg.Batching, err = buildBatching(raw["batching"]); err != nil {
		return nil, err
	}
	if cfg.Compression, err = buildCompression(raw["compression"]); err != nil {
		return nil, err
	}
	if cfg.RateLimiting, err = buildRateLimiting(raw["topicRateLimiting"]); err != nil {
		return nil, err
	}
	if cfg.InitialBrokers, err = buildInitialBrokers(raw["initialBrokers"]); err != nil {
		return nil, err
	}
	if cfg.Engine, err = buildEngine(raw["engine"]); err != nil {
		return nil, err
	}

	if len(cfg.InitialBrokers.Brokers) == 0 {
		return nil, errors.New("config: initialBrokers must not be empty")
	}
	if cfg.Compression.SizeThresholdPercent > 100 {
		return nil, errors.New("config: compression.sizeThresholdPercent must not exceed 100")
	}

	return cfg, nil
}

func buildBatching(v interface{}) (BatchingConfig, error) {
	var out BatchingConfig
	m, err := asMap("batching", v)
	if err != nil {
		return out, err
	}

	named, err := asSlice("batching.namedConfigs", m["namedConfigs"])
	if err != nil {
		return out, err
	}
	seen := make(map[string]struct{}, len(named))
	for _, item := range named {
		nm, err := asMap("batching.namedConfigs[]", item)
		if err != nil {
			return out, err
		}
		name, err := reqString(nm, "name")
		if err != nil {
			return out, err
		}
		if _, dup := seen[name]; dup {
			return out, errors.Errorf("config: duplicate batching named config %q", name)
		}
		seen[name] = struct{}{}

		timeLimitMs, err := optInt(nm, "timeLimitMs", 0)
		if err != nil {
			return out, err
		}
		countLimit, err := optInt(nm, "messageCountLimit", 0)
		if err != nil {
			return out, err
		}
		byteLimit, err := optInt(nm, "byteLimit", 0)
		if err != nil {
			return out, err
		}
		out.NamedConfigs = append(out.NamedConfigs, NamedBatchConfig{
			Name: name,
			Limits: BatchLimits{
				TimeLimit:         time.Duration(timeLimitMs) * time.Millisecond,
				MessageCountLimit: countLimit,
				ByteLimit:         byteLimit,
			},
		})
	}

	if out.ProduceRequestDataLimit, err = optInt(m, "produceRequestDataLimit", 0); err != nil {
		return out, err
	}
	if out.MessageMaxBytes, err = optInt(m, "messageMaxBytes", 0); err != nil {
		return out, err
	}

	combined, err := asMap("batching.combinedTopics", m["combinedTopics"])
	if err != nil {
		return out, err
	}
	if out.CombinedTopicsEnable, err = optBool(combined, "enable", false); err != nil {
		return out, err
	}
	if out.CombinedTopicsConfig, err = optString(combined, "config", ""); err != nil {
		return out, err
	}

	defaultTopic, err := asMap("batching.defaultTopic", m["defaultTopic"])
	if err != nil {
		return out, err
	}
	action, err := optString(defaultTopic, "action", string(DefaultTopicPerTopic))
	if err != nil {
		return out, err
	}
	out.DefaultTopicAction = DefaultTopicAction(action)
	switch out.DefaultTopicAction {
	case DefaultTopicPerTopic, DefaultTopicCombinedTopics, DefaultTopicDisable:
	default:
		return out, errors.Errorf("config: batching.defaultTopic.action %q is not one of perTopic|combinedTopics|disable", action)
	}
	if out.DefaultTopicConfig, err = optString(defaultTopic, "config", ""); err != nil {
		return out, err
	}

	if out.TopicConfigs, err = buildTopicConfigRefs("batching.topicConfigs", m["topicConfigs"]); err != nil {
		return out, err
	}

	if err := validateConfigRefs("batching", configNames(out.NamedConfigs), out.CombinedTopicsConfig, out.DefaultTopicConfig, out.TopicConfigs); err != nil {
		return out, err
	}
	return out, nil
}

func configNames(named []NamedBatchConfig) map[string]struct{} {
	out := make(map[string]struct{}, len(named))
	for _, n := range named {
		out[n.Name] = struct{}{}
	}
	return out
}

func buildCompression(v interface{}) (CompressionSectionConfig, error) {
	var out CompressionSectionConfig
	m, err := asMap("compression", v)
	if err != nil {
		return out, err
	}

	named, err := asSlice("compression.namedConfigs", m["namedConfigs"])
	if err != nil {
		return out, err
	}
	names := make(map[string]struct{}, len(named))
	for _, item := range named {
		nm, err := asMap("compression.namedConfigs[]", item)
		if err != nil {
			return out, err
		}
		name, err := reqString(nm, "name")
		if err != nil {
			return out, err
		}
		if _, dup := names[name]; dup {
			return out, errors.Errorf("config: duplicate compression named config %q", name)
		}
		names[name] = struct{}{}

		typ, err := reqString(nm, "type")
		if err != nil {
			return out, err
		}
		switch typ {
		case "none", "gzip", "snappy", "lz4":
		default:
			return out, errors.Errorf("config: compression type %q is not one of none|gzip|snappy|lz4", typ)
		}
		minSize, err := optInt(nm, "minSize", 0)
		if err != nil {
			return out, err
		}
		nc := NamedCompressionConfig{Name: name, Type: typ, MinSize: minSize}
		if _, hasLevel := nm["level"]; hasLevel {
			level, err := asInt("level", nm["level"])
			if err != nil {
				return out, err
			}
			nc.Level, nc.HasLevel = level, true
		}
		out.NamedConfigs = append(out.NamedConfigs, nc)
	}

	if out.SizeThresholdPercent, err = optInt(m, "sizeThresholdPercent", 100); err != nil {
		return out, err
	}

	defaultTopic, err := asMap("compression.defaultTopic", m["defaultTopic"])
	if err != nil {
		return out, err
	}
	if out.DefaultTopicConfig, err = optString(defaultTopic, "config", ""); err != nil {
		return out, err
	}

	if out.TopicConfigs, err = buildTopicConfigRefs("compression.topicConfigs", m["topicConfigs"]); err != nil {
		return out, err
	}

	if err := validateConfigRefs("compression", names, "", out.DefaultTopicConfig, out.TopicConfigs); err != nil {
		return out, err
	}
	return out, nil
}

func buildRateLimiting(v interface{}) (RateLimitingConfig, error) {
	var out RateLimitingConfig
	m, err := asMap("topicRateLimiting", v)
	if err != nil {
		return out, err
	}

	named, err := asSlice("topicRateLimiting.namedConfigs", m["namedConfigs"])
	if err != nil {
		return out, err
	}
	names := make(map[string]struct{}, len(named))
	for _, item := range named {
		nm, err := asMap("topicRateLimiting.namedConfigs[]", item)
		if err != nil {
			return out, err
		}
		name, err := reqString(nm, "name")
		if err != nil {
			return out, err
		}
		if _, dup := names[name]; dup {
			return out, errors.Errorf("config: duplicate topicRateLimiting named config %q", name)
		}
		names[name] = struct{}{}

		unlimited, err := optBool(nm, "unlimited", false)
		if err != nil {
			return out, err
		}
		intervalMs, err := optInt(nm, "interval_ms", 0)
		if err != nil {
			return out, err
		}
		maxCount, err := optInt(nm, "maxCount", 0)
		if err != nil {
			return out, err
		}
		out.NamedConfigs = append(out.NamedConfigs, NamedRateLimitConfig{
			Name: name, IntervalMs: intervalMs, MaxCount: maxCount, Unlimited: unlimited,
		})
	}

	defaultTopic, err := asMap("topicRateLimiting.defaultTopic", m["defaultTopic"])
	if err != nil {
		return out, err
	}
	if out.DefaultTopicConfig, err = optString(defaultTopic, "config", ""); err != nil {
		return out, err
	}

	if out.TopicConfigs, err = buildTopicConfigRefs("topicRateLimiting.topicConfigs", m["topicConfigs"]); err != nil {
		return out, err
	}

	if err := validateConfigRefs("topicRateLimiting", names, "", out.DefaultTopicConfig, out.TopicConfigs); err != nil {
		return out, err
	}
	return out, nil
}

func buildInitialBrokers(v interface{}) (InitialBrokersConfig, error) {
	var out InitialBrokersConfig
	m, err := asMap("initialBrokers", v)
	if err != nil {
		return out, err
	}
	brokers, err := asSlice("initialBrokers.broker", m["broker"])
	if err != nil {
		return out, err
	}
	for _, item := range brokers {
		bm, err := asMap("initialBrokers.broker[]", item)
		if err != nil {
			return out, err
		}
		host, err := reqString(bm, "host")
		if err != nil {
			return out, err
		}
		port, err := optInt(bm, "port", 9092)
		if err != nil {
			return out, err
		}
		out.Brokers = append(out.Brokers, BrokerConfig{Host: host, Port: port})
	}
	return out, nil
}

func buildEngine(v interface{}) (EngineConfig, error) {
	out := EngineConfig{
		ClientID:                    "dory",
		KafkaSocketTimeoutMs:        10000,
		MetadataRefreshIntervalMs:   60000,
		MaxMetadataResponseSize:     1 << 20,
		TopicAutocreate:             false,
		MaxFailedDeliveryAttempts:   5,
		DispatcherRestartMaxDelayMs: 20000,
		PauseRateLimitMaxDouble:     5,
		PauseQuiescentMs:            5000,
		ErrorRateTrigger:            5,
		RequiredAcks:                1,
		ReplicationTimeoutMs:        10000,
		MaxResponseSize:             1 << 20,
		QueueCapacity:               4096,
		AutocreateCacheCapacity:     1024,
		AutocreateBackoffMs:         30000,
		ShutdownMaxDelayMs:          30000,
		PoolBlockSize:               4096,
		PoolBlockCount:              16384,
		ListenNetwork:               "unix",
		ListenAddress:               "/var/run/dory/dory.socket",
	}
	m, err := asMap("engine", v)
	if err != nil {
		return out, err
	}

	if out.ClientID, err = optString(m, "clientId", out.ClientID); err != nil {
		return out, err
	}
	if out.KafkaSocketTimeoutMs, err = optInt(m, "kafkaSocketTimeoutMs", out.KafkaSocketTimeoutMs); err != nil {
		return out, err
	}
	if out.MetadataRefreshIntervalMs, err = optInt(m, "metadataRefreshIntervalMs", out.MetadataRefreshIntervalMs); err != nil {
		return out, err
	}
	if out.MaxMetadataResponseSize, err = optInt(m, "maxMetadataResponseSize", out.MaxMetadataResponseSize); err != nil {
		return out, err
	}
	if out.TopicAutocreate, err = optBool(m, "topicAutocreate", out.TopicAutocreate); err != nil {
		return out, err
	}
	if out.MaxFailedDeliveryAttempts, err = optInt(m, "maxFailedDeliveryAttempts", out.MaxFailedDeliveryAttempts); err != nil {
		return out, err
	}
	if out.DispatcherRestartMaxDelayMs, err = optInt(m, "dispatcherRestartMaxDelayMs", out.DispatcherRestartMaxDelayMs); err != nil {
		return out, err
	}
	if out.PauseRateLimitMaxDouble, err = optInt(m, "pauseRateLimitMaxDouble", out.PauseRateLimitMaxDouble); err != nil {
		return out, err
	}
	if out.PauseQuiescentMs, err = optInt(m, "pauseQuiescentMs", out.PauseQuiescentMs); err != nil {
		return out, err
	}
	if out.ErrorRateTrigger, err = optInt(m, "errorRateTrigger", out.ErrorRateTrigger); err != nil {
		return out, err
	}
	if out.RequiredAcks, err = optInt(m, "requiredAcks", out.RequiredAcks); err != nil {
		return out, err
	}
	if out.ReplicationTimeoutMs, err = optInt(m, "replicationTimeoutMs", out.ReplicationTimeoutMs); err != nil {
		return out, err
	}
	if out.MaxResponseSize, err = optInt(m, "maxResponseSize", out.MaxResponseSize); err != nil {
		return out, err
	}
	if out.QueueCapacity, err = optInt(m, "queueCapacity", out.QueueCapacity); err != nil {
		return out, err
	}
	if out.AutocreateCacheCapacity, err = optInt(m, "autocreateCacheCapacity", out.AutocreateCacheCapacity); err != nil {
		return out, err
	}
	if out.AutocreateBackoffMs, err = optInt(m, "autocreateBackoffMs", out.AutocreateBackoffMs); err != nil {
		return out, err
	}
	if out.ShutdownMaxDelayMs, err = optInt(m, "shutdownMaxDelayMs", out.ShutdownMaxDelayMs); err != nil {
		return out, err
	}
	if out.PoolBlockSize, err = optInt(m, "poolBlockSize", out.PoolBlockSize); err != nil {
		return out, err
	}
	if out.PoolBlockCount, err = optInt(m, "poolBlockCount", out.PoolBlockCount); err != nil {
		return out, err
	}
	if out.ListenNetwork, err = optString(m, "listenNetwork", out.ListenNetwork); err != nil {
		return out, err
	}
	if out.ListenAddress, err = optString(m, "listenAddress", out.ListenAddress); err != nil {
		return out, err
	}
	return out, nil
}

func buildTopicConfigRefs(key string, v interface{}) ([]TopicConfigRef, error) {
	items, err := asSlice(key, v)
	if err != nil {
		return nil, err
	}
	out := make([]TopicConfigRef, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		m, err := asMap(key+"[]", item)
		if err != nil {
			return nil, err
		}
		topic, err := reqString(m, "topic")
		if err != nil {
			return nil, err
		}
		if _, dup := seen[topic]; dup {
			return nil, errors.Errorf("config: duplicate %s entry for topic %q", key, topic)
		}
		seen[topic] = struct{}{}
		cfgName, err := reqString(m, "config")
		if err != nil {
			return nil, err
		}
		out = append(out, TopicConfigRef{Topic: topic, Config: cfgName})
	}
	return out, nil
}

// validateConfigRefs checks that combinedRef, defaultRef, and every
// topicConfigs entry name a config that actually exists among names —
// spec §6: "Named-config references that cannot be resolved ... are
// configuration errors." combinedRef is empty (skipped) for sections
// that have no combined-topics concept.
func validateConfigRefs(section string, names map[string]struct{}, combinedRef, defaultRef string, refs []TopicConfigRef) error {
	check := func(label, name string) error {
		if name == "" {
			return nil
		}
		if _, ok := names[name]; !ok {
			return errors.Errorf("config: %s.%s references undefined named config %q", section, label, name)
		}
		return nil
	}
	if err := check("combinedTopics.config", combinedRef); err != nil {
		return err
	}
	if err := check("defaultTopic.config", defaultRef); err != nil {
		return err
	}
	for _, r := range refs {
		if err := check("topicConfigs["+r.Topic+"].config", r.Config); err != nil {
			return err
		}
	}
	return nil
}
