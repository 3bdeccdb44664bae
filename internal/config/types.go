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

// Package config loads Dory's YAML configuration document (spec §6) and
// builds the typed, per-section configs the router, batcher, and
// dispatcher are constructed from. Parsing follows gollum's
// core/config.go two-phase shape: yaml.Unmarshal into a generic map,
// then a typed read pass of fail-fast accessors.
package config

import "time"

// TopicConfigRef points a single topic at one of a section's named
// configs, the shape shared by batching.topicConfigs,
// compression.topicConfigs, and topicRateLimiting.topicConfigs (spec §6).
type TopicConfigRef struct {
	Topic  string
	Config string
}

// BatchLimits is one named batch policy's three release triggers (spec
// §4.2); any limit at zero means "no limit" for that dimension.
type BatchLimits struct {
	TimeLimit         time.Duration
	MessageCountLimit int
	ByteLimit         int
}

// NamedBatchConfig is one entry of batching.namedConfigs.
type NamedBatchConfig struct {
	Name   string
	Limits BatchLimits
}

// DefaultTopicAction selects what a topic with no explicit override does
// (spec §6 batching.defaultTopic.action).
type DefaultTopicAction string

const (
	DefaultTopicPerTopic       DefaultTopicAction = "perTopic"
	DefaultTopicCombinedTopics DefaultTopicAction = "combinedTopics"
	DefaultTopicDisable        DefaultTopicAction = "disable"
)

// BatchingConfig is the batching section of the config document.
type BatchingConfig struct {
	NamedConfigs            []NamedBatchConfig
	ProduceRequestDataLimit int
	MessageMaxBytes         int
	CombinedTopicsEnable    bool
	CombinedTopicsConfig    string
	DefaultTopicAction      DefaultTopicAction
	DefaultTopicConfig      string
	TopicConfigs            []TopicConfigRef
}

// NamedCompressionConfig is one entry of compression.namedConfigs.
// HasLevel distinguishes an explicit level of 0 from "not set, use the
// codec's own default."
type NamedCompressionConfig struct {
	Name     string
	Type     string // none | gzip | snappy | lz4
	MinSize  int
	Level    int
	HasLevel bool
}

// CompressionSectionConfig is the compression section of the config
// document.
type CompressionSectionConfig struct {
	NamedConfigs         []NamedCompressionConfig
	SizeThresholdPercent int
	DefaultTopicConfig   string
	TopicConfigs         []TopicConfigRef
}

// NamedRateLimitConfig is one entry of topicRateLimiting.namedConfigs.
type NamedRateLimitConfig struct {
	Name       string
	IntervalMs int
	MaxCount   int
	Unlimited  bool
}

// RateLimitingConfig is the topicRateLimiting section of the config
// document.
type RateLimitingConfig struct {
	NamedConfigs       []NamedRateLimitConfig
	DefaultTopicConfig string
	TopicConfigs       []TopicConfigRef
}

// BrokerConfig is one entry of initialBrokers.broker.
type BrokerConfig struct {
	Host string
	Port int
}

// InitialBrokersConfig is the initialBrokers section of the config
// document.
type InitialBrokersConfig struct {
	Brokers []BrokerConfig
}

// EngineConfig is the engine section: the operational parameters spec.md
// names throughout §4-§7 (kafka_socket_timeout, shutdown_max_delay,
// dispatcher_restart_max_delay, pause_rate_limit_max_double,
// max_failed_delivery_attempts, topic_autocreate, client_id,
// metadata_refresh_interval) but does not list in §6's per-section table
// alongside batching/compression/topicRateLimiting/initialBrokers. They
// are still part of the configuration document (§6 is silent on exactly
// which section holds them, not that they are unconfigurable), so Dory
// groups them under one "engine" section with the same fail-fast
// defaults-on-omission style as every other section.
type EngineConfig struct {
	ClientID                 string
	KafkaSocketTimeoutMs     int
	MetadataRefreshIntervalMs int
	MaxMetadataResponseSize  int

	TopicAutocreate           bool
	MaxFailedDeliveryAttempts int

	DispatcherRestartMaxDelayMs int
	PauseRateLimitMaxDouble     int
	PauseQuiescentMs            int
	ErrorRateTrigger            int

	RequiredAcks         int
	ReplicationTimeoutMs int
	MaxResponseSize      int
	QueueCapacity        int

	AutocreateCacheCapacity int
	AutocreateBackoffMs     int

	ShutdownMaxDelayMs int

	// PoolBlockSize/PoolBlockCount size the buffer pool (spec §5's only
	// process-wide mutable resource). Not named in spec §6's per-section
	// table, grouped here with the rest of the operational parameters the
	// table is silent on.
	PoolBlockSize  int
	PoolBlockCount int

	ListenNetwork string // "unix" or "tcp", the local ingest socket's family
	ListenAddress string
}

// Config is the fully parsed configuration document.
type Config struct {
	Batching       BatchingConfig
	Compression    CompressionSectionConfig
	RateLimiting   RateLimitingConfig
	InitialBrokers InitialBrokersConfig
	Engine         EngineConfig
}
