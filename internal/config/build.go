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
	"fmt"
	"sync"
	"time"

	"github.com/dspeterson/dory/internal/batch"
	"github.com/dspeterson/dory/internal/dispatch"
	"github.com/dspeterson/dory/internal/engine"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/wire/codec"
)

// pauseMinDelay is the reconnect/error-rate backoff's starting delay.
// Only the doubling count (pauseRateLimitMaxDouble) and the quiescent
// reset period (pauseQuiescentMs) are exposed as configuration; the
// starting delay itself is an implementation constant. The engine
// section's dispatcherRestartMaxDelayMs is parsed but not applied: the
// backoff has no separate ceiling beyond the doubling count.
const pauseMinDelay = 100 * time.Millisecond

// BuildTopicBatcher translates the batching section into a
// batch.TopicBatcher, applying every named config to the topics that
// reference it directly or through defaultTopic (spec §6). The default
// limits (those applied to a topic with neither a topicConfigs entry nor
// a usable defaultTopic reference) are zero-value Limits, i.e. "never
// time-release, never size-release" — matching spec §4.2's "a topic
// with no configured limits never time-releases" edge case.
func (c *Config) BuildTopicBatcher() *batch.TopicBatcher {
	named := make(map[string]batch.Limits, len(c.Batching.NamedConfigs))
	for _, nc := range c.Batching.NamedConfigs {
		named[nc.Name] = batch.Limits{
			MaxMessages: nc.Limits.MessageCountLimit,
			MaxBytes:    nc.Limits.ByteLimit,
			MaxDelay:    nc.Limits.TimeLimit,
		}
	}

	defaultLimits := batch.Limits{}
	if c.Batching.DefaultTopicAction == DefaultTopicPerTopic && c.Batching.DefaultTopicConfig != "" {
		defaultLimits = named[c.Batching.DefaultTopicConfig]
	}

	b := batch.NewTopicBatcher(defaultLimits)
	for _, ref := range c.Batching.TopicConfigs {
		b.SetLimits(ref.Topic, named[ref.Config])
	}
	return b
}

// BuildCombinedBatcher builds the combined-topics batcher (spec §4.2),
// or nil if combinedTopics.enable is false or unset — callers pass nil
// straight through to router.New, which treats it as "combined-topics
// batching disabled."
func (c *Config) BuildCombinedBatcher() *batch.CombinedBatcher {
	if !c.Batching.CombinedTopicsEnable {
		return nil
	}
	named := make(map[string]batch.Limits, len(c.Batching.NamedConfigs))
	for _, nc := range c.Batching.NamedConfigs {
		named[nc.Name] = batch.Limits{
			MaxMessages: nc.Limits.MessageCountLimit,
			MaxBytes:    nc.Limits.ByteLimit,
			MaxDelay:    nc.Limits.TimeLimit,
		}
	}
	limits := named[c.Batching.CombinedTopicsConfig]

	var filter batch.TopicFilter
	switch c.Batching.DefaultTopicAction {
	case DefaultTopicCombinedTopics:
		// Every topic falls into the combined batch unless it has its own
		// perTopic override — an explicit topicConfigs entry opts a topic
		// back out, since its messages already have a batcher home.
		deny := make(batch.DenyList, len(c.Batching.TopicConfigs))
		for _, ref := range c.Batching.TopicConfigs {
			deny[ref.Topic] = struct{}{}
		}
		filter = deny
	default:
		// defaultTopic.action is perTopic or disable: only topics with an
		// explicit topicConfigs entry pointing at the combined config use it.
		allow := make(batch.AllowList)
		for _, ref := range c.Batching.TopicConfigs {
			if ref.Config == c.Batching.CombinedTopicsConfig {
				allow[ref.Topic] = struct{}{}
			}
		}
		filter = allow
	}

	return batch.NewCombinedBatcher(limits, filter)
}

// compressionPolicy is the config-driven CompressionPolicy: a per-topic
// override map with a default, resolved once at load time rather than
// walked on every dispatch (spec §6 compression.defaultTopic/topicConfigs).
type compressionPolicy struct {
	byTopic map[string]dispatch.CompressionConfig
	deflt   dispatch.CompressionConfig
}

func (p *compressionPolicy) For(topic string) dispatch.CompressionConfig {
	if cfg, ok := p.byTopic[topic]; ok {
		return cfg
	}
	return p.deflt
}

func codecIDFor(typ string) codec.ID {
	switch typ {
	case "gzip":
		return codec.Gzip
	case "snappy":
		return codec.Snappy
	case "lz4":
		return codec.Lz4
	default:
		return codec.None
	}
}

func namedCompressionConfig(nc NamedCompressionConfig) dispatch.CompressionConfig {
	cfg := dispatch.CompressionConfig{Codec: codecIDFor(nc.Type), MinSize: nc.MinSize}
	if nc.HasLevel {
		cfg.Level = nc.Level
	}
	return cfg
}

// BuildCompressionPolicy builds the dispatch.CompressionPolicy the
// engine hands to every dispatcher's Factory (spec §4.5.1).
func (c *Config) BuildCompressionPolicy() dispatch.CompressionPolicy {
	named := make(map[string]dispatch.CompressionConfig, len(c.Compression.NamedConfigs))
	for _, nc := range c.Compression.NamedConfigs {
		named[nc.Name] = namedCompressionConfig(nc)
	}

	p := &compressionPolicy{byTopic: make(map[string]dispatch.CompressionConfig, len(c.Compression.TopicConfigs))}
	if c.Compression.DefaultTopicConfig != "" {
		p.deflt = named[c.Compression.DefaultTopicConfig]
	}
	for _, ref := range c.Compression.TopicConfigs {
		p.byTopic[ref.Topic] = named[ref.Config]
	}
	return p
}

// tokenBucket is one topic's rate limit state: maxCount admissions per
// interval, refilled wholesale at interval boundaries. unlimited bypasses
// the bucket entirely, matching topicRateLimiting's unlimited flag.
type tokenBucket struct {
	interval  time.Duration
	maxCount  int
	unlimited bool

	windowStart time.Time
	used        int
}

// rateLimiter is the config-driven router.RateLimiter: a fixed-window
// counter per topic, rearmed on its own schedule the first time a topic
// is seen after its window has elapsed (spec §6 topicRateLimiting).
// The router is single-owner and calls Allow from one goroutine only, but
// the mutex guards against a future caller forgetting that invariant —
// the bucket map itself is the only shared state this package exposes.
type rateLimiter struct {
	mu      sync.Mutex
	byTopic map[string]*tokenBucket
	deflt   *tokenBucket
}

func newTokenBucket(nc NamedRateLimitConfig) *tokenBucket {
	return &tokenBucket{
		interval:  time.Duration(nc.IntervalMs) * time.Millisecond,
		maxCount:  nc.MaxCount,
		unlimited: nc.Unlimited,
	}
}

func (r *rateLimiter) Allow(topic string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byTopic[topic]
	if !ok && r.deflt != nil {
		// Each defaulted topic gets its own bucket built from the default
		// config, so one topic's traffic never spends another's budget.
		tmpl := *r.deflt
		b = &tmpl
		r.byTopic[topic] = b
	}
	if b == nil || b.unlimited {
		return true
	}
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= b.interval {
		b.windowStart = now
		b.used = 0
	}
	if b.used >= b.maxCount {
		return false
	}
	b.used++
	return true
}

// BuildRateLimiter builds the router.RateLimiter the router admits
// every ingested message through (spec §4.4 step 2). Returns
// router.AllowAll{} when the section is empty, so an unconfigured
// document imposes no limiting at all.
func (c *Config) BuildRateLimiter() router.RateLimiter {
	if len(c.RateLimiting.NamedConfigs) == 0 {
		return router.AllowAll{}
	}
	named := make(map[string]NamedRateLimitConfig, len(c.RateLimiting.NamedConfigs))
	for _, nc := range c.RateLimiting.NamedConfigs {
		named[nc.Name] = nc
	}

	r := &rateLimiter{byTopic: make(map[string]*tokenBucket, len(c.RateLimiting.TopicConfigs))}
	if c.RateLimiting.DefaultTopicConfig != "" {
		r.deflt = newTokenBucket(named[c.RateLimiting.DefaultTopicConfig])
	}
	for _, ref := range c.RateLimiting.TopicConfigs {
		r.byTopic[ref.Topic] = newTokenBucket(named[ref.Config])
	}
	return r
}

// BuildSeedBrokers renders initialBrokers.broker into the host:port
// strings engine.Config.SeedBrokers expects.
func (c *Config) BuildSeedBrokers() []string {
	out := make([]string, 0, len(c.InitialBrokers.Brokers))
	for _, b := range c.InitialBrokers.Brokers {
		out = append(out, fmt.Sprintf("%s:%d", b.Host, b.Port))
	}
	return out
}

// BuildRouterConfig translates the engine section (plus batching's
// messageMaxBytes) into router.Config.
func (c *Config) BuildRouterConfig() router.Config {
	return router.Config{
		MaxFailedDeliveryAttempts: c.Engine.MaxFailedDeliveryAttempts,
		MessageMaxBytes:           c.Batching.MessageMaxBytes,
		TopicAutocreate:           c.Engine.TopicAutocreate,
	}
}

// BuildDispatcherConfig translates the engine section into the
// dispatch.Config shared by every broker's dispatcher.
func (c *Config) BuildDispatcherConfig() dispatch.Config {
	return dispatch.Config{
		DialTimeout:          time.Duration(c.Engine.KafkaSocketTimeoutMs) * time.Millisecond,
		RequiredAcks:         int16(c.Engine.RequiredAcks),
		ReplicationTimeoutMs: int32(c.Engine.ReplicationTimeoutMs),
		ProduceDataLimit:     c.Batching.ProduceRequestDataLimit,
		MaxResponseSize:      c.Engine.MaxResponseSize,
		QueueCapacity:        c.Engine.QueueCapacity,
		MaxFailedAttempts:    c.Engine.MaxFailedDeliveryAttempts,
		PauseMinDelay:        pauseMinDelay,
		PauseMaxDoublings:    c.Engine.PauseRateLimitMaxDouble,
		PauseQuiescent:       time.Duration(c.Engine.PauseQuiescentMs) * time.Millisecond,
		ErrorRateTrigger:     c.Engine.ErrorRateTrigger,
		ClientID:             c.Engine.ClientID,
	}
}

// BuildEngineConfig assembles engine.Config from the engine section and
// the already-built compression policy and seed broker list.
func (c *Config) BuildEngineConfig() engine.Config {
	return engine.Config{
		SeedBrokers:             c.BuildSeedBrokers(),
		MetadataRefreshInterval: time.Duration(c.Engine.MetadataRefreshIntervalMs) * time.Millisecond,
		MaxMetadataResponseSize: c.Engine.MaxMetadataResponseSize,
		DialTimeout:             time.Duration(c.Engine.KafkaSocketTimeoutMs) * time.Millisecond,
		ClientID:                c.Engine.ClientID,

		PauseMinDelay:     pauseMinDelay,
		PauseMaxDoublings: c.Engine.PauseRateLimitMaxDouble,
		PauseQuiescent:    time.Duration(c.Engine.PauseQuiescentMs) * time.Millisecond,

		Dispatcher:  c.BuildDispatcherConfig(),
		Compression: c.BuildCompressionPolicy(),
	}
}

// BuildAutocreateBackoff builds the negative-result cache the router
// consults before re-issuing a single-topic autocreate probe (spec.md
// §4.4 step 6).
func (c *Config) BuildAutocreateBackoff() *metadata.AutocreateBackoff {
	capacity := c.Engine.AutocreateCacheCapacity
	if capacity <= 0 {
		capacity = 1024
	}
	return metadata.NewAutocreateBackoff(capacity, time.Duration(c.Engine.AutocreateBackoffMs)*time.Millisecond)
}
