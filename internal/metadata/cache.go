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

import "sync/atomic"

// Cache holds the current Snapshot behind a single atomic pointer,
// exactly the "immutable snapshot reachable by a single atomic pointer
// swap" of spec §4.3. The engine is the sole writer (it swaps in each
// refreshed snapshot); any number of readers (the router, dispatchers
// consulting routing state) may call Current concurrently without
// locking.
type Cache struct {
	v atomic.Value // holds *Snapshot
}

// NewCache creates a cache pre-populated with an empty snapshot, so
// Current never returns nil.
func NewCache() *Cache {
	c := &Cache{}
	c.v.Store(&Snapshot{
		brokers:  make(map[int32]Broker),
		topics:   make(map[string]Topic),
		routable: make(map[string][]int32),
	})
	return c
}

// Current returns the presently visible snapshot.
func (c *Cache) Current() *Snapshot {
	return c.v.Load().(*Snapshot)
}

// Swap installs next as the current snapshot, returning the snapshot it
// replaced.
func (c *Cache) Swap(next *Snapshot) *Snapshot {
	prev := c.v.Load().(*Snapshot)
	c.v.Store(next)
	return prev
}
