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

package router

import (
	"encoding/binary"
	"time"

	"github.com/dspeterson/dory/internal/batch"
	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/message"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/sirupsen/logrus"
)

// unassignedPartition marks a RoutedGroup whose partition is left for
// the destination dispatcher's any-partition chooser to pick at
// serialization time (spec §4.4 step 5: "AnyPartition messages are
// deferred").
const unassignedPartition = int32(-1)

// RoutedGroup is a batch of messages, all for the same topic and bound
// for the same broker, ready to hand to that broker's dispatcher queue.
// Partition is unassignedPartition when every message in the group is
// AnyPartition-routed.
type RoutedGroup struct {
	BrokerIndex int32
	Topic       string
	Partition   int32
	Messages    []*message.Message
}

// DispatcherQueue is the router's view of one broker's inbound queue
// (spec §5: "MPSC bounded queues... between router and each
// dispatcher"). TryEnqueue must not block; a full queue is reported by
// returning false so the router can apply admission control instead of
// stalling the whole loop on one broker.
type DispatcherQueue interface {
	TryEnqueue(g RoutedGroup) bool
}

// Config bounds the router's decisions that are not mechanically
// derived from a metadata snapshot.
type Config struct {
	MaxFailedDeliveryAttempts int
	MessageMaxBytes           int
	TopicAutocreate           bool
}

// Router is the single-threaded forwarding loop of spec §4.4. It owns
// the metadata cache pointer and the any-partition chooser state, and
// drives both the per-topic and (optional) combined batcher.
type Router struct {
	cfg Config
	log *logrus.Logger

	cache   *metadata.Cache
	chooser *metadata.Chooser

	topicBatcher    *batch.TopicBatcher
	combinedBatcher *batch.CombinedBatcher // nil if combined-topics batching is disabled

	rateLimiter RateLimiter
	autocreate  *metadata.AutocreateBackoff

	queues map[int32]DispatcherQueue

	discardSink discard.Sink
}

// New builds a router. combinedBatcher may be nil (spec §6
// defaultTopic.action == perTopic or disable); rateLimiter may be
// AllowAll{} when no topic has rate limiting configured.
func New(cfg Config, log *logrus.Logger, cache *metadata.Cache, topicBatcher *batch.TopicBatcher, combinedBatcher *batch.CombinedBatcher, rateLimiter RateLimiter, autocreate *metadata.AutocreateBackoff, sink discard.Sink) *Router {
	return &Router{
		cfg:             cfg,
		log:             log,
		cache:           cache,
		chooser:         metadata.NewChooser(),
		topicBatcher:    topicBatcher,
		combinedBatcher: combinedBatcher,
		rateLimiter:     rateLimiter,
		autocreate:      autocreate,
		queues:          make(map[int32]DispatcherQueue),
		discardSink:     sink,
	}
}

// SetDispatcherQueue installs (or replaces) the queue for brokerIndex.
// Called by the engine's reconciliation step (spec §4.6) whenever a
// dispatcher is spawned, retired, or replaced.
func (r *Router) SetDispatcherQueue(brokerIndex int32, q DispatcherQueue) {
	r.queues[brokerIndex] = q
}

// RemoveDispatcherQueue drops the queue entry for a broker leaving the
// in-service set.
func (r *Router) RemoveDispatcherQueue(brokerIndex int32) {
	delete(r.queues, brokerIndex)
}

func (r *Router) discard(topic string, reason discard.Reason, identity []byte, now time.Time) {
	if r.discardSink != nil {
		r.discardSink.Record(discard.NewRecord(topic, reason, identity, now))
	}
}

// IngestOne admits a single message from the ingest queue, applying the
// rate limit and the hard message-size cap before handing it to the
// appropriate batcher (spec §4.4 step 3). It never blocks.
func (r *Router) IngestOne(msg *message.Message, now time.Time) {
	if r.cfg.MessageMaxBytes > 0 && msg.ByteSize() > r.cfg.MessageMaxBytes {
		r.discard(msg.Topic, discard.MsgTooLarge, msg.Identity, now)
		msg.Release()
		return
	}
	if !r.rateLimiter.Allow(msg.Topic, now) {
		r.discard(msg.Topic, discard.RateLimit, msg.Identity, now)
		msg.Release()
		return
	}

	if r.combinedBatcher != nil && r.combinedBatcher.Accepts(msg.Topic) {
		if out := r.combinedBatcher.Add(msg, now); out != nil {
			r.RouteBatch(out, now)
		}
		return
	}
	if out := r.topicBatcher.Add(msg.Topic, msg, now); out != nil {
		r.RouteBatch(out, now)
	}
}

// PollBatches drains every batcher slot whose time deadline has passed
// and routes each one (spec §4.4 step 4).
func (r *Router) PollBatches(now time.Time) {
	for _, b := range r.topicBatcher.GetComplete(now) {
		r.RouteBatch(b, now)
	}
	if r.combinedBatcher != nil {
		if b := r.combinedBatcher.GetComplete(now); b != nil {
			r.RouteBatch(b, now)
		}
	}
}

// Drain releases every batch regardless of limits — used only while
// shutting down (spec §4.2 get_all, §4.6 graceful shutdown: "let the
// batcher release everything").
func (r *Router) Drain(now time.Time) {
	for _, b := range r.topicBatcher.GetAll() {
		r.RouteBatch(b, now)
	}
	if r.combinedBatcher != nil {
		if b := r.combinedBatcher.GetAll(); b != nil {
			r.RouteBatch(b, now)
		}
	}
}

// RouteBatch implements spec §4.4 step 5-6: assign each message in b to
// a broker (and, for PartitionKey messages, a partition), group by
// broker, and push each group to that broker's dispatcher queue. A
// message whose topic currently has no routable partition is handled by
// handleNoRoute.
func (r *Router) RouteBatch(b *batch.Batch, now time.Time) {
	snap := r.cache.Current()
	type groupKey struct {
		broker    int32
		partition int32
	}
	groups := make(map[groupKey]*RoutedGroup)

	for _, msg := range b.Messages {
		partitions := snap.RoutablePartitions(msg.Topic)
		if len(partitions) == 0 {
			r.handleNoRoute(msg, now)
			continue
		}

		var brokerIndex, partitionID int32
		switch msg.Routing {
		case message.PartitionKey:
			var keyBuf [4]byte
			binary.BigEndian.PutUint32(keyBuf[:], msg.PartitionID)
			partitionID = metadata.HashPartition(keyBuf[:], partitions)
			leader, ok := snap.LeaderOf(msg.Topic, partitionID)
			if !ok {
				r.handleNoRoute(msg, now)
				continue
			}
			brokerIndex = leader
		default: // AnyPartition
			brokers := snap.BrokersForTopic(msg.Topic)
			idx := r.chooser.Next("broker:"+msg.Topic, len(brokers))
			brokerIndex = brokers[idx]
			partitionID = unassignedPartition
		}

		key := groupKey{broker: brokerIndex, partition: partitionID}
		g, ok := groups[key]
		if !ok {
			g = &RoutedGroup{BrokerIndex: brokerIndex, Topic: msg.Topic, Partition: partitionID}
			groups[key] = g
		}
		g.Messages = append(g.Messages, msg)
	}

	for _, g := range groups {
		r.enqueue(*g, now)
	}
}

// enqueue pushes one broker-bound group to its dispatcher queue, falling
// back to admission control when the queue is missing or full (spec §5:
// "on sustained backpressure, the router begins discarding").
func (r *Router) enqueue(g RoutedGroup, now time.Time) {
	q, ok := r.queues[g.BrokerIndex]
	if !ok {
		for _, msg := range g.Messages {
			r.handleNoRoute(msg, now)
		}
		return
	}
	if q.TryEnqueue(g) {
		return
	}
	for _, msg := range g.Messages {
		r.handleBackpressure(msg, now)
	}
}

// handleBackpressure is called when a dispatcher's input queue is full.
// The message's attempt counter is charged exactly as a failed delivery
// would be; once it exceeds the configured limit the message is
// discarded rather than retried forever.
func (r *Router) handleBackpressure(msg *message.Message, now time.Time) {
	msg.AttemptCount++
	if r.cfg.MaxFailedDeliveryAttempts > 0 && msg.AttemptCount >= r.cfg.MaxFailedDeliveryAttempts {
		r.discard(msg.Topic, discard.FailedDeliveryAttemptLimit, msg.Identity, now)
		msg.Release()
		return
	}
	r.requeue(msg, now)
}

// handleNoRoute is called when a message's topic currently has no
// routable partition (spec §4.4 step 6). With autocreate enabled, the
// message is retried (subject to the same attempt-limit discipline)
// while the engine issues a single-topic metadata refresh on its
// behalf; with autocreate disabled there is no future in which this
// topic gains a partition on its own, so the message is discarded
// immediately.
func (r *Router) handleNoRoute(msg *message.Message, now time.Time) {
	if !r.cfg.TopicAutocreate {
		r.discard(msg.Topic, discard.NoAvailablePartition, msg.Identity, now)
		msg.Release()
		return
	}

	msg.AttemptCount++
	if r.cfg.MaxFailedDeliveryAttempts > 0 && msg.AttemptCount >= r.cfg.MaxFailedDeliveryAttempts {
		// Spec §4.4 step 6 names this outcome "NoLeaderAvailable"; we
		// record it as FailedDeliveryAttemptLimit to stay within the
		// canonical discard-reason enumeration of spec §4.4, since both
		// describe the same "gave up after N attempts" outcome.
		r.discard(msg.Topic, discard.FailedDeliveryAttemptLimit, msg.Identity, now)
		msg.Release()
		return
	}
	r.requeue(msg, now)
}

// requeue hands msg back to the appropriate batcher so it is
// reconsidered on a later router iteration.
func (r *Router) requeue(msg *message.Message, now time.Time) {
	if r.combinedBatcher != nil && r.combinedBatcher.Accepts(msg.Topic) {
		if out := r.combinedBatcher.Add(msg, now); out != nil {
			r.RouteBatch(out, now)
		}
		return
	}
	if out := r.topicBatcher.Add(msg.Topic, msg, now); out != nil {
		r.RouteBatch(out, now)
	}
}

// NeedsAutocreate reports whether topic currently has no routable
// partition, autocreate is enabled, and the backoff tracker says enough
// time has passed to justify another single-topic metadata request
// (spec §4.4 step 6). The engine calls this once per iteration per
// pending topic and, if true, issues the request and calls
// NotifyAutocreateResult with the outcome.
func (r *Router) NeedsAutocreate(topic string, now time.Time) bool {
	if !r.cfg.TopicAutocreate {
		return false
	}
	if len(r.cache.Current().RoutablePartitions(topic)) != 0 {
		return false
	}
	return r.autocreate.ShouldRetry(topic, now)
}

// NotifyAutocreateResult records the outcome of an autocreate metadata
// request the engine issued after NeedsAutocreate returned true.
func (r *Router) NotifyAutocreateResult(topic string, now time.Time, succeeded bool) {
	if succeeded {
		r.autocreate.Clear(topic)
		return
	}
	r.autocreate.RecordFailure(topic, now)
}

// Requeue hands a message a dispatcher has given up on (connection lost,
// retriable broker error) back to the router for rerouting on the next
// iteration. It implements dispatch.MessageSink so a dispatcher can send
// failed sub-batches back upstream without importing the router's
// internal batcher wiring (spec §8: "a retriable error re-queues the
// sub-batch at the router").
func (r *Router) Requeue(msg *message.Message, now time.Time) {
	r.requeue(msg, now)
}

// Discard implements dispatch.MessageSink: a dispatcher records a
// terminal outcome (permanent broker error, shutdown) through the same
// sink the router itself discards into, so every discard in the system
// funnels through one append point.
func (r *Router) Discard(topic string, reason discard.Reason, identity []byte, now time.Time) {
	r.discard(topic, reason, identity, now)
}
