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

package engine

import (
	"fmt"
	"time"

	"github.com/dspeterson/dory/internal/dispatch"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/wire"
)

// applyRefresh turns a decoded Metadata response into a Snapshot via
// metadata.Builder, installs it in the cache with a single atomic swap,
// and reconciles the dispatcher set against the broker list it names
// (spec §4.3, spec §4.6: "the broker set in a fresh snapshot governs
// which dispatchers exist").
//
// A Metadata request for a subset of topics (the single-topic autocreate
// probe of spec §4.4 step 6) still returns every broker, but only the
// requested topics — so the topic set here is a merge of the previous
// snapshot's topics with resp.Topics layered on top (by name), not a
// wholesale replacement; otherwise a probe response would make every
// other topic look like it lost all its partitions.
//
// A partition is treated as in-service only when the broker reported no
// error for it; a nonzero error code (e.g. LeaderNotAvailable) can
// arrive together with a stale or unknown leader id, so ErrorCode is
// authoritative over LeaderID here rather than the other way around.
func (e *Engine) applyRefresh(resp *wire.MetadataResponse, now time.Time) {
	b := metadata.NewBuilder(e.log)
	for _, br := range resp.Brokers {
		if err := b.AddBroker(br.NodeID, br.Host, br.Port); err != nil {
			e.log.WithError(err).Warn("metadata refresh: dropping malformed broker entry")
		}
	}
	if err := b.CloseBrokerList(); err != nil {
		e.log.WithError(err).Error("metadata refresh: builder rejected broker list")
		return
	}

	topics := make(map[string]wire.TopicMeta, len(resp.Topics))
	for _, t := range e.cache.Current().Topics() {
		topics[t.Name] = topicMetaFromSnapshot(t)
	}
	for _, t := range resp.Topics {
		topics[t.Name] = t
	}

	for _, t := range topics {
		if err := b.OpenTopic(t.Name); err != nil {
			e.log.WithError(err).WithField("topic", t.Name).Warn("metadata refresh: dropping malformed topic")
			continue
		}
		for _, p := range t.Partitions {
			inService := p.ErrorCode == wire.ErrNone
			if err := b.AddPartition(p.PartitionID, p.LeaderID, inService, p.ErrorCode); err != nil {
				e.log.WithError(err).WithField("topic", t.Name).Warn("metadata refresh: dropping malformed partition, treating it as out of service")
				// Fall back to an explicitly out-of-service entry so the
				// topic's partition count still matches what the broker
				// reported; AddPartition only rejects an in-service
				// partition naming an unknown leader, so this retry
				// with inService=false cannot fail for the same reason.
				if err := b.AddPartition(p.PartitionID, p.LeaderID, false, p.ErrorCode); err != nil {
					e.log.WithError(err).WithField("topic", t.Name).Error("metadata refresh: partition could not be recorded at all")
				}
			}
		}
		if err := b.CloseTopic(); err != nil {
			e.log.WithError(err).WithField("topic", t.Name).Error("metadata refresh: builder rejected topic close")
		}
	}

	snap, err := b.Build()
	if err != nil {
		e.log.WithError(err).Error("metadata refresh: builder rejected snapshot")
		return
	}

	e.cache.Swap(snap)
	e.reconcileDispatchers(snap, now)
}

// reconcileDispatchers spawns a dispatcher for every broker newly named
// by snap, retires one for every broker that disappeared, and replaces
// one whose address changed (a broker id reassigned to a new host:port,
// which spec §4.6 treats the same as a removal immediately followed by
// an addition).
func (e *Engine) reconcileDispatchers(snap *metadata.Snapshot, now time.Time) {
	seen := make(map[int32]struct{}, len(snap.Brokers()))
	for _, br := range snap.Brokers() {
		seen[br.Index] = struct{}{}
		addr := fmt.Sprintf("%s:%d", br.Host, br.Port)

		existing, ok := e.dispatchers[br.Index]
		if ok && existing.Addr() == addr {
			continue
		}
		if ok {
			e.retireDispatcher(br.Index, now)
		}
		e.spawnDispatcher(br.Index, addr)
	}

	for brokerIndex := range e.dispatchers {
		if _, ok := seen[brokerIndex]; !ok {
			e.retireDispatcher(brokerIndex, now)
		}
	}
}

// topicMetaFromSnapshot converts an already-built snapshot topic back
// into the decoded wire shape applyRefresh's merge loop works in, so the
// merge can treat "carried over from the previous snapshot" and "named
// in this response" uniformly.
func topicMetaFromSnapshot(t metadata.Topic) wire.TopicMeta {
	partitions := make([]wire.PartitionMeta, len(t.Partitions))
	for i, p := range t.Partitions {
		partitions[i] = wire.PartitionMeta{ErrorCode: p.ErrorCode, PartitionID: p.ID, LeaderID: p.LeaderID}
	}
	return wire.TopicMeta{Name: t.Name, Partitions: partitions}
}

func (e *Engine) spawnDispatcher(brokerIndex int32, addr string) {
	factory := dispatch.NewFactory(e.cfg.Dispatcher.ProduceDataLimit, e.cfg.Compression, e.cfg.ClientID)
	d := dispatch.NewDispatcher(brokerIndex, addr, e.log, e.cfg.Dispatcher, factory, e.router)
	e.dispatchers[brokerIndex] = d
	e.router.SetDispatcherQueue(brokerIndex, d)
}

// retireDispatcher moves brokerIndex's dispatcher out of the router's
// routing table and into the retiring list, where Tick keeps stepping it
// (so it can drain its queue and await outstanding acks) until Idle.
func (e *Engine) retireDispatcher(brokerIndex int32, now time.Time) {
	d, ok := e.dispatchers[brokerIndex]
	if !ok {
		return
	}
	delete(e.dispatchers, brokerIndex)
	e.router.RemoveDispatcherQueue(brokerIndex)
	d.Drain()
	e.retiring = append(e.retiring, d)
}
