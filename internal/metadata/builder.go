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

package metadata

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type buildPhase int

const (
	phaseBrokerList buildPhase = iota
	phaseTopics
	phaseDone
)

// Builder implements the staged construction API from spec §4.3:
// open_broker_list → add_broker(...)* → close → open_topic(name) →
// add_partition(id, leader, in_service, error)* → close_topic. It
// enforces unique broker indices, unique partition ids within a topic,
// and that every leader_id names a known broker; a topic named more
// than once keeps its first occurrence and logs the duplicate, mirroring
// the decision recorded for this spec's open question on duplicate
// topics.
type Builder struct {
	log *logrus.Logger

	phase   buildPhase
	brokers map[int32]Broker
	topics  map[string]Topic

	curTopic      string
	curPartitions []Partition
	curPartSeen   map[int32]struct{}
	topicOpen     bool
}

// NewBuilder starts a fresh builder in the broker-list phase.
func NewBuilder(log *logrus.Logger) *Builder {
	return &Builder{
		log:     log,
		brokers: make(map[int32]Broker),
		topics:  make(map[string]Topic),
	}
}

// OpenBrokerList is a no-op phase marker matching the spec's staged API
// (open_broker_list → add_broker*... → close); NewBuilder already starts
// in the broker-list phase, so this exists purely so callers can follow
// the documented call sequence literally.
func (b *Builder) OpenBrokerList() error {
	if b.phase != phaseBrokerList {
		return errors.New("metadata builder: OpenBrokerList called outside the broker-list phase")
	}
	return nil
}

// AddBroker records one cluster member. Must be called before
// CloseBrokerList.
func (b *Builder) AddBroker(index int32, host string, port int32) error {
	if b.phase != phaseBrokerList {
		return errors.New("metadata builder: AddBroker called outside the broker-list phase")
	}
	if _, dup := b.brokers[index]; dup {
		return errors.Errorf("metadata builder: duplicate broker index %d", index)
	}
	b.brokers[index] = Broker{Index: index, Host: host, Port: port}
	return nil
}

// CloseBrokerList ends the broker-list phase. Topics may be opened only
// after this call.
func (b *Builder) CloseBrokerList() error {
	if b.phase != phaseBrokerList {
		return errors.New("metadata builder: CloseBrokerList called outside the broker-list phase")
	}
	b.phase = phaseTopics
	return nil
}

// OpenTopic begins a new topic's partition list.
func (b *Builder) OpenTopic(name string) error {
	if b.phase != phaseTopics {
		return errors.New("metadata builder: OpenTopic called outside the topics phase")
	}
	if b.topicOpen {
		return errors.New("metadata builder: a topic is already open")
	}
	b.curTopic = name
	b.curPartitions = nil
	b.curPartSeen = make(map[int32]struct{})
	b.topicOpen = true
	return nil
}

// AddPartition records one partition of the currently open topic.
func (b *Builder) AddPartition(id int32, leaderID int32, inService bool, errorCode int16) error {
	if !b.topicOpen {
		return errors.New("metadata builder: AddPartition called with no topic open")
	}
	if _, dup := b.curPartSeen[id]; dup {
		return errors.Errorf("metadata builder: duplicate partition id %d in topic %q", id, b.curTopic)
	}
	if inService {
		if _, known := b.brokers[leaderID]; !known {
			return errors.Errorf("metadata builder: partition %d of topic %q names unknown leader broker %d", id, b.curTopic, leaderID)
		}
	}
	b.curPartSeen[id] = struct{}{}
	b.curPartitions = append(b.curPartitions, Partition{
		ID:        id,
		LeaderID:  leaderID,
		InService: inService,
		ErrorCode: errorCode,
	})
	return nil
}

// CloseTopic finalizes the open topic. If a topic of the same name was
// already closed earlier in this build, the first occurrence is kept
// and this one is dropped with a warning.
func (b *Builder) CloseTopic() error {
	if !b.topicOpen {
		return errors.New("metadata builder: CloseTopic called with no topic open")
	}
	if _, dup := b.topics[b.curTopic]; dup {
		b.log.WithField("topic", b.curTopic).Warn("metadata refresh: duplicate topic entry dropped, keeping first occurrence")
	} else {
		b.topics[b.curTopic] = Topic{Name: b.curTopic, Partitions: b.curPartitions}
	}
	b.topicOpen = false
	b.curTopic = ""
	b.curPartitions = nil
	b.curPartSeen = nil
	return nil
}

// Build freezes the builder's accumulated state into an immutable
// Snapshot. The builder must not be reused afterward.
func (b *Builder) Build() (*Snapshot, error) {
	if b.topicOpen {
		return nil, errors.New("metadata builder: Build called with a topic still open")
	}
	b.phase = phaseDone

	routable := make(map[string][]int32, len(b.topics))
	for name, t := range b.topics {
		var ids []int32
		for _, p := range t.Partitions {
			if p.InService {
				ids = append(ids, p.ID)
			}
		}
		routable[name] = ids
	}

	return &Snapshot{
		brokers:  b.brokers,
		topics:   b.topics,
		routable: routable,
	}, nil
}
