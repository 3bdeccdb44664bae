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

import "github.com/cespare/xxhash/v2"

// Chooser implements the any-partition routing state referenced by
// spec §4.4 ("owns... the any-partition chooser state") and §4.5.1 ("the
// per-topic round-robin chooser, chosen once per produce request"). It
// is a single per-key rotating cursor; the router uses it to spread
// AnyPartition messages across the brokers that lead a topic, and the
// produce-request factory uses a separate instance to spread them
// across that broker's partitions of the topic, once per request.
//
// Chooser is not safe for concurrent use — both call sites (the router
// loop and a single dispatcher's factory) are single-owner goroutines
// per spec §5, so no locking is needed.
type Chooser struct {
	cursor map[string]int
}

// NewChooser creates an empty round-robin chooser.
func NewChooser() *Chooser {
	return &Chooser{cursor: make(map[string]int)}
}

// Next advances key's cursor and returns an index in [0, n). Calling
// with n == 0 returns -1; callers must check for an empty candidate list
// themselves (a topic with no routable partitions is a routing failure,
// not a chooser concern).
func (c *Chooser) Next(key string, n int) int {
	if n <= 0 {
		return -1
	}
	idx := c.cursor[key] % n
	c.cursor[key] = idx + 1
	return idx
}

// HashPartition implements PartitionKey routing (spec §4.4 step 5):
// partitions[xxhash(key) % len(partitions)]. It returns -1 if partitions
// is empty.
func HashPartition(key []byte, partitions []int32) int32 {
	if len(partitions) == 0 {
		return -1
	}
	h := xxhash.Sum64(key)
	return partitions[h%uint64(len(partitions))]
}
