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

// Package router implements the forwarding engine's single-threaded
// routing loop (spec §4.4): draining ingest into the batcher, polling
// for time-released batches, and assigning each ready batch's messages
// to the broker whose dispatcher should carry them.
package router

import "time"

// RateLimiter decides whether a topic may admit another message right
// now. The concrete implementation (token-bucket keyed by
// topicRateLimiting's interval_ms/maxCount config, spec §6) lives in
// internal/config; router only depends on this narrow interface so it
// can be tested with a fake.
type RateLimiter interface {
	Allow(topic string, now time.Time) bool
}

// AllowAll never rejects, used where no rate limiting is configured for
// a topic.
type AllowAll struct{}

// Allow implements RateLimiter.
func (AllowAll) Allow(string, time.Time) bool { return true }
