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

// Package metadata holds the router's view of the Kafka cluster: which
// brokers exist, which partitions each topic has, and which broker
// leads each partition. A Snapshot is immutable once built; the router
// swaps in a new one atomically whenever a metadata refresh succeeds
// (spec §4.3).
package metadata

// Broker is one cluster member as reported by a metadata response.
type Broker struct {
	Index int32 // the broker's node id, used as its lookup key
	Host  string
	Port  int32
}

// Partition describes one partition's leadership and liveness.
type Partition struct {
	ID        int32
	LeaderID  int32
	InService bool
	ErrorCode int16
}

// Topic is one topic's partition set as of the snapshot's generation.
type Topic struct {
	Name       string
	Partitions []Partition
}

// Snapshot is an immutable view of cluster metadata. All lookup methods
// are constant- or log-time over snapshot-local data (spec §4.3).
type Snapshot struct {
	brokers map[int32]Broker
	topics  map[string]Topic
	// routable caches, per topic, the partition ids that are currently
	// in service — the set the router and chooser actually route
	// against. Built once at snapshot construction, not recomputed per
	// lookup.
	routable map[string][]int32
}

// Generation-free by design: the spec describes the cache purely as
// "an immutable snapshot reachable by a single atomic pointer swap," with
// no sequence number in the lookup surface, so none is added here.

// BrokersForTopic returns the set of broker indices that lead at least
// one partition of name, in no particular order.
func (s *Snapshot) BrokersForTopic(name string) []int32 {
	t, ok := s.topics[name]
	if !ok {
		return nil
	}
	seen := make(map[int32]struct{})
	var out []int32
	for _, p := range t.Partitions {
		if !p.InService {
			continue
		}
		if _, dup := seen[p.LeaderID]; dup {
			continue
		}
		seen[p.LeaderID] = struct{}{}
		out = append(out, p.LeaderID)
	}
	return out
}

// PartitionsForTopicOnBroker returns the in-service partition ids of
// name led by brokerIndex.
func (s *Snapshot) PartitionsForTopicOnBroker(name string, brokerIndex int32) []int32 {
	t, ok := s.topics[name]
	if !ok {
		return nil
	}
	var out []int32
	for _, p := range t.Partitions {
		if p.InService && p.LeaderID == brokerIndex {
			out = append(out, p.ID)
		}
	}
	return out
}

// LeaderOf returns the broker index leading (topic, partitionID), and
// whether that mapping exists.
func (s *Snapshot) LeaderOf(topic string, partitionID int32) (int32, bool) {
	t, ok := s.topics[topic]
	if !ok {
		return 0, false
	}
	for _, p := range t.Partitions {
		if p.ID == partitionID {
			if !p.InService {
				return 0, false
			}
			return p.LeaderID, true
		}
	}
	return 0, false
}

// RoutablePartitions returns the full in-service partition id list for
// topic, the set PartitionKey routing hashes against (spec §4.4 step 5).
func (s *Snapshot) RoutablePartitions(topic string) []int32 {
	return s.routable[topic]
}

// HasTopic reports whether topic appears in this snapshot at all
// (regardless of whether it currently has any routable partition).
func (s *Snapshot) HasTopic(topic string) bool {
	_, ok := s.topics[topic]
	return ok
}

// Broker looks up a broker by index.
func (s *Snapshot) Broker(index int32) (Broker, bool) {
	b, ok := s.brokers[index]
	return b, ok
}

// Brokers returns every broker in the snapshot, in no particular order.
func (s *Snapshot) Brokers() []Broker {
	out := make([]Broker, 0, len(s.brokers))
	for _, b := range s.brokers {
		out = append(out, b)
	}
	return out
}

// Topics returns every topic in the snapshot, in no particular order.
// Used to replay a topic's full partition set into a new Builder when
// merging a narrower (single-topic) metadata response on top of an
// existing snapshot, rather than discarding every topic the narrower
// response didn't mention.
func (s *Snapshot) Topics() []Topic {
	out := make([]Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t)
	}
	return out
}
