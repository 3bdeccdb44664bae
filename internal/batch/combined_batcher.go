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

const combinedSlotKey = "__combined__"

// TopicFilter decides whether a topic participates in the combined
// batcher. The same interface serves both policies described in spec
// §4.2: an allow-list (Allowed returns true only for named topics) or a
// deny-list (Allowed returns true for everything except named topics).
type TopicFilter interface {
	Allowed(topic string) bool
}

// AllowList admits only the named topics.
type AllowList map[string]struct{}

// Allowed implements TopicFilter.
func (a AllowList) Allowed(topic string) bool {
	_, ok := a[topic]
	return ok
}

// DenyList admits every topic except the named ones.
type DenyList map[string]struct{}

// Allowed implements TopicFilter.
func (d DenyList) Allowed(topic string) bool {
	_, ok := d[topic]
	return !ok
}

// CombinedBatcher applies the same three-limit discipline as
// TopicBatcher (spec §4.2) to a single queue mixing messages from every
// topic the configured TopicFilter admits. It shares the deadlineSet
// implementation but only ever tracks the one fixed slot key, since
// there is exactly one queue.
type CombinedBatcher struct {
	filter TopicFilter
	slot   *topicSlot
	deadlines *deadlineSet
}

// NewCombinedBatcher creates a combined batcher bounded by limits and
// restricted to the topics filter admits.
func NewCombinedBatcher(limits Limits, filter TopicFilter) *CombinedBatcher {
	return &CombinedBatcher{
		filter:    filter,
		slot:      &topicSlot{limits: limits},
		deadlines: newDeadlineSet(),
	}
}

// Accepts reports whether topic participates in this combined batcher.
func (b *CombinedBatcher) Accepts(topic string) bool {
	return b.filter.Allowed(topic)
}

// Add appends msg to the combined queue, returning the full batch if any
// limit is now reached. Callers must only call Add for a topic for
// which Accepts returned true.
func (b *CombinedBatcher) Add(msg *message.Message, now time.Time) *Batch {
	wasEmpty := len(b.slot.queue) == 0
	b.slot.queue = append(b.slot.queue, msg)
	b.slot.totalBytes += msg.ByteSize()
	if wasEmpty {
		b.slot.firstMsgTime = now
		if b.slot.limits.hasDelay() {
			b.deadlines.set(combinedSlotKey, now.Add(b.slot.limits.MaxDelay))
		}
	}

	if b.slot.reachedLimit() {
		return b.release()
	}
	return nil
}

func (b *CombinedBatcher) release() *Batch {
	out := &Batch{Messages: b.slot.queue}
	b.slot.reset()
	b.deadlines.clear(combinedSlotKey)
	return out
}

// GetComplete returns the combined batch if its time deadline has passed
// as of now, or nil otherwise.
func (b *CombinedBatcher) GetComplete(now time.Time) *Batch {
	if len(b.deadlines.expired(now)) == 0 {
		return nil
	}
	if len(b.slot.queue) == 0 {
		return nil
	}
	return b.release()
}

// GetAll drains the combined queue regardless of limits. Used only at
// shutdown (spec §4.2).
func (b *CombinedBatcher) GetAll() *Batch {
	if len(b.slot.queue) == 0 {
		return nil
	}
	return b.release()
}
