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

package batch

import (
	"time"

	"github.com/dspeterson/dory/internal/message"
)

// Limits bounds a single batch slot. Zero means "no limit" for that
// dimension; a slot with every dimension at zero never releases on its
// own and is only drained by GetAll at shutdown (spec §4.2 edge case:
// "a topic with no configured limits never time-releases").
type Limits struct {
	MaxMessages int
	MaxBytes    int
	MaxDelay    time.Duration
}

func (l Limits) hasDelay() bool { return l.MaxDelay > 0 }

// Batch is a released group of messages, ready to be routed to brokers.
// A TopicBatcher batch holds one topic, named by Topic; a
// CombinedBatcher batch may mix topics and leaves Topic empty.
type Batch struct {
	Topic    string
	Messages []*message.Message
}

type topicSlot struct {
	limits       Limits
	queue        []*message.Message
	firstMsgTime time.Time
	totalBytes   int
}

func (s *topicSlot) reset() {
	s.queue = nil
	s.totalBytes = 0
}

func (s *topicSlot) reachedLimit() bool {
	if s.limits.MaxMessages > 0 && len(s.queue) >= s.limits.MaxMessages {
		return true
	}
	if s.limits.MaxBytes > 0 && s.totalBytes >= s.limits.MaxBytes {
		return true
	}
	return false
}

// TopicBatcher implements the per-topic half of spec §4.2: one
// {queue, first_msg_time, total_bytes} triple per known topic, plus a
// deadline set so time-limited slots can be polled in O(log n).
type TopicBatcher struct {
	defaultLimits Limits
	perTopic      map[string]Limits
	slots         map[string]*topicSlot
	deadlines     *deadlineSet
}

// NewTopicBatcher creates a batcher applying defaultLimits to any topic
// without an explicit override.
func NewTopicBatcher(defaultLimits Limits) *TopicBatcher {
	return &TopicBatcher{
		defaultLimits: defaultLimits,
		perTopic:      make(map[string]Limits),
		slots:         make(map[string]*topicSlot),
		deadlines:     newDeadlineSet(),
	}
}

// SetLimits installs an explicit override for topic, taking precedence
// over the default limits for every subsequent Add.
func (b *TopicBatcher) SetLimits(topic string, limits Limits) {
	b.perTopic[topic] = limits
}

func (b *TopicBatcher) limitsFor(topic string) Limits {
	if l, ok := b.perTopic[topic]; ok {
		return l
	}
	return b.defaultLimits
}

func (b *TopicBatcher) slotFor(topic string, now time.Time) *topicSlot {
	s, ok := b.slots[topic]
	if ok {
		return s
	}
	s = &topicSlot{limits: b.limitsFor(topic)}
	b.slots[topic] = s
	return s
}

// Add appends msg to topic's slot. If the append causes any configured
// limit to be reached (count, bytes, or — handled by GetComplete — time),
// the full batch is returned and the slot cleared, per spec §4.2. A
// single message whose own size exceeds the byte limit is still
// accepted and immediately released as a one-element batch (spec §4.2
// edge case).
func (b *TopicBatcher) Add(topic string, msg *message.Message, now time.Time) *Batch {
	slot := b.slotFor(topic, now)

	wasEmpty := len(slot.queue) == 0
	slot.queue = append(slot.queue, msg)
	slot.totalBytes += msg.ByteSize()
	if wasEmpty {
		// The slot's time must be recorded in the same step as the first
		// append (spec §4.2), so a concurrent GetComplete can never observe
		// a slot with messages but no deadline.
		slot.firstMsgTime = now
		if slot.limits.hasDelay() {
			b.deadlines.set(topic, now.Add(slot.limits.MaxDelay))
		}
	}

	if slot.reachedLimit() {
		return b.release(topic, slot)
	}
	return nil
}

func (b *TopicBatcher) release(topic string, slot *topicSlot) *Batch {
	out := &Batch{Topic: topic, Messages: slot.queue}
	slot.reset()
	b.deadlines.clear(topic)
	return out
}

// GetComplete drains every slot whose time deadline has passed as of
// now, earliest-deadline first.
func (b *TopicBatcher) GetComplete(now time.Time) []*Batch {
	topics := b.deadlines.expired(now)
	if len(topics) == 0 {
		return nil
	}
	out := make([]*Batch, 0, len(topics))
	for _, topic := range topics {
		slot := b.slots[topic]
		if slot == nil || len(slot.queue) == 0 {
			continue
		}
		out = append(out, b.release(topic, slot))
	}
	return out
}

// GetAll drains every non-empty slot regardless of limits. Used only at
// shutdown (spec §4.2).
func (b *TopicBatcher) GetAll() []*Batch {
	var out []*Batch
	for topic, slot := range b.slots {
		if len(slot.queue) == 0 {
			continue
		}
		out = append(out, b.release(topic, slot))
	}
	return out
}
