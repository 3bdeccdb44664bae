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
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// negativeEntry records when a topic-autocreate attempt last failed and
// how many times in a row.
type negativeEntry struct {
	lastFailure time.Time
	failures    int
}

// AutocreateBackoff tracks topics whose single-topic autocreate metadata
// request (spec §4.4 step 6) has recently failed, so the router does not
// reissue the request every iteration. Bounded by an LRU so a cluster
// with many transient bad topic names cannot grow this without limit.
type AutocreateBackoff struct {
	cache   *lru.Cache[string, *negativeEntry]
	backoff time.Duration
}

// NewAutocreateBackoff creates a backoff tracker holding up to capacity
// topics, each retried no more often than backoff apart.
func NewAutocreateBackoff(capacity int, backoff time.Duration) *AutocreateBackoff {
	c, err := lru.New[string, *negativeEntry](capacity)
	if err != nil {
		// Only returned by golang-lru for a non-positive size, which is a
		// caller bug, not a runtime condition to recover from.
		panic(err)
	}
	return &AutocreateBackoff{cache: c, backoff: backoff}
}

// ShouldRetry reports whether enough time has passed since topic's last
// recorded failure (or there was none) to justify issuing another
// autocreate metadata request.
func (a *AutocreateBackoff) ShouldRetry(topic string, now time.Time) bool {
	e, ok := a.cache.Get(topic)
	if !ok {
		return true
	}
	return now.Sub(e.lastFailure) >= a.backoff
}

// RecordFailure marks topic as having just failed autocreate, returning
// the number of consecutive failures recorded for it (including this
// one) so the router can compare against max_failed_delivery_attempts.
func (a *AutocreateBackoff) RecordFailure(topic string, now time.Time) int {
	e, ok := a.cache.Get(topic)
	if !ok {
		e = &negativeEntry{}
		a.cache.Add(topic, e)
	}
	e.lastFailure = now
	e.failures++
	return e.failures
}

// Clear removes topic's negative entry, called once autocreate succeeds.
func (a *AutocreateBackoff) Clear(topic string) {
	a.cache.Remove(topic)
}
