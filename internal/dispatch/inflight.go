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

package dispatch

import (
	"time"

	"github.com/dspeterson/dory/internal/router"
)

// Entry is one outstanding produce request: the exact groups it carried,
// so a response (or a connection loss) can be correlated back to them
// (spec §4.5 step 3, glossary "in-flight table").
type Entry struct {
	CorrelationID int32
	Groups        []router.RoutedGroup
	SentAt        time.Time
}

// InFlightTable is a dispatcher-local map from correlation id to the
// batches comprising that request. It is only ever touched by the
// dispatcher's own goroutine, so it needs no locking (spec §5:
// single-owner state).
type InFlightTable struct {
	nextID  int32
	entries map[int32]Entry
}

// NewInFlightTable creates an empty table.
func NewInFlightTable() *InFlightTable {
	return &InFlightTable{entries: make(map[int32]Entry)}
}

// NextCorrelationID returns a fresh monotone correlation id (spec §4.5
// step 3) and does not itself register an entry.
func (t *InFlightTable) NextCorrelationID() int32 {
	t.nextID++
	return t.nextID
}

// Add registers a new in-flight entry.
func (t *InFlightTable) Add(correlationID int32, groups []router.RoutedGroup, now time.Time) {
	t.entries[correlationID] = Entry{CorrelationID: correlationID, Groups: groups, SentAt: now}
}

// Take removes and returns the entry for correlationID, if present.
func (t *InFlightTable) Take(correlationID int32) (Entry, bool) {
	e, ok := t.entries[correlationID]
	if ok {
		delete(t.entries, correlationID)
	}
	return e, ok
}

// TakeAll drains every outstanding entry, used when a connection is
// observed closed and everything in flight must be re-queued (spec §8:
// "either a response is received and correlated, or the connection is
// observed closed and all associated batches are re-queued").
func (t *InFlightTable) TakeAll() []Entry {
	if len(t.entries) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.entries = make(map[int32]Entry)
	return out
}

// Len reports how many requests are currently outstanding.
func (t *InFlightTable) Len() int {
	return len(t.entries)
}
