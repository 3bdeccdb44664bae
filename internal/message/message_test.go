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

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSizeFloorsAtOne(t *testing.T) {
	pool := NewPool(64, 4)

	empty, ok := pool.Acquire(nil)
	require.True(t, ok)
	m := &Message{Topic: "t", Key: nil, Value: empty}
	assert.Equal(t, 1, m.ByteSize())

	kv, ok := pool.Acquire([]byte("hello"))
	require.True(t, ok)
	m2 := &Message{Topic: "t", Value: kv}
	assert.Equal(t, 5, m2.ByteSize())
}

func TestPoolAcquireFailsWhenExhausted(t *testing.T) {
	pool := NewPool(8, 2)

	h1, ok := pool.Acquire([]byte("aaaaaaaa"))
	require.True(t, ok)
	h2, ok := pool.Acquire([]byte("bbbbbbbb"))
	require.True(t, ok)

	_, ok = pool.Acquire([]byte("cccccccc"))
	assert.False(t, ok, "pool should refuse a third block past capacity")
	assert.Equal(t, pool.Capacity(), pool.InUse())

	h1.Release()
	h3, ok := pool.Acquire([]byte("dddddddd"))
	assert.True(t, ok, "releasing a block should free capacity for a new acquire")

	h2.Release()
	h3.Release()
	assert.Equal(t, 0, pool.InUse())
}

func TestPoolAcquireRejectsOversizedRequest(t *testing.T) {
	pool := NewPool(4, 4)
	_, ok := pool.Acquire([]byte("too-big"))
	assert.False(t, ok)
}

func TestHandleRetainKeepsBlockAliveAcrossOneRelease(t *testing.T) {
	pool := NewPool(8, 1)
	h, ok := pool.Acquire([]byte("abc"))
	require.True(t, ok)

	h.Retain()
	h.Release()
	assert.Equal(t, pool.Capacity(), pool.InUse(), "block should still be checked out after one of two releases")

	h.Release()
	assert.Equal(t, 0, pool.InUse())
}

func TestStateStringCoversAllValues(t *testing.T) {
	for s := StateRouterOwned; s <= StateDiscarded; s++ {
		assert.NotContains(t, s.String(), "state(")
	}
}
