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

// Package batch implements the router's two-level batching discipline
// (spec §4.2): a per-topic batcher and a combined-topics batcher, both
// built on the same deadline-ordered release queue.
package batch

import (
	"container/heap"
	"time"
)

// deadlineEntry pairs a release deadline with the key identifying which
// slot it belongs to (a topic name for the per-topic batcher, or the
// fixed combined-batcher key).
type deadlineEntry struct {
	deadline time.Time
	key      string
	index    int // heap.Interface bookkeeping
}

// deadlineHeap is a container/heap min-heap ordered by deadline. No pack
// repo carries a ready-made ordered multimap, so this is built directly
// on the standard library's container/heap, per the DESIGN.md note on
// stdlib-only choices: it is pure data-structure glue with no ecosystem
// analogue worth importing a dependency for.
type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*deadlineEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// deadlineSet is a sorted multiset of (key, deadline) pairs keyed by
// slot name, giving O(log n) access to the earliest deadline and O(log n)
// removal/replacement of a given key's entry (spec §4.2: "these deadlines
// are tracked in a sorted multiset keyed by deadline so the earliest is
// O(log n) retrievable").
type deadlineSet struct {
	h         deadlineHeap
	byKey     map[string]*deadlineEntry
}

func newDeadlineSet() *deadlineSet {
	return &deadlineSet{byKey: make(map[string]*deadlineEntry)}
}

// set records or replaces the deadline for key.
func (s *deadlineSet) set(key string, deadline time.Time) {
	if e, ok := s.byKey[key]; ok {
		e.deadline = deadline
		heap.Fix(&s.h, e.index)
		return
	}
	e := &deadlineEntry{deadline: deadline, key: key}
	s.byKey[key] = e
	heap.Push(&s.h, e)
}

// clear removes key's entry, if any.
func (s *deadlineSet) clear(key string) {
	e, ok := s.byKey[key]
	if !ok {
		return
	}
	heap.Remove(&s.h, e.index)
	delete(s.byKey, key)
}

// expired pops and returns every key whose deadline is <= now, earliest
// first.
func (s *deadlineSet) expired(now time.Time) []string {
	var keys []string
	for s.h.Len() > 0 && !s.h[0].deadline.After(now) {
		e := heap.Pop(&s.h).(*deadlineEntry)
		delete(s.byKey, e.key)
		keys = append(keys, e.key)
	}
	return keys
}

// all drains every key regardless of deadline, earliest first. Used only
// at shutdown (spec §4.2 get_all).
func (s *deadlineSet) all() []string {
	var keys []string
	for s.h.Len() > 0 {
		e := heap.Pop(&s.h).(*deadlineEntry)
		delete(s.byKey, e.key)
		keys = append(keys, e.key)
	}
	return keys
}
