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
	"testing"
	"time"

	"github.com/dspeterson/dory/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgWithBytes(t *testing.T, pool *message.Pool, topic string, n int) *message.Message {
	t.Helper()
	data := make([]byte, n)
	h, ok := pool.Acquire(data)
	require.True(t, ok)
	return &message.Message{Topic: topic, Value: h}
}

func TestTopicBatcherReleasesOnCount(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewTopicBatcher(Limits{MaxMessages: 2})
	now := time.Unix(1000, 0)

	assert.Nil(t, b.Add("t", msgWithBytes(t, pool, "t", 1), now))
	out := b.Add("t", msgWithBytes(t, pool, "t", 1), now)
	require.NotNil(t, out)
	assert.Len(t, out.Messages, 2)
	assert.Equal(t, "t", out.Topic)
}

func TestTopicBatcherReleasesOnBytes(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewTopicBatcher(Limits{MaxBytes: 10})
	now := time.Unix(1000, 0)

	out := b.Add("t", msgWithBytes(t, pool, "t", 20), now)
	require.NotNil(t, out, "a single oversized message must still be emitted, per spec edge case")
	assert.Len(t, out.Messages, 1)
}

func TestTopicBatcherTimeRelease(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewTopicBatcher(Limits{MaxDelay: 100 * time.Millisecond})
	start := time.Unix(1000, 0)

	assert.Nil(t, b.Add("t", msgWithBytes(t, pool, "t", 1), start))
	assert.Empty(t, b.GetComplete(start.Add(50*time.Millisecond)))

	out := b.GetComplete(start.Add(150 * time.Millisecond))
	require.Len(t, out, 1)
	assert.Equal(t, "t", out[0].Topic)
}

func TestTopicBatcherNoLimitsNeverTimeReleases(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewTopicBatcher(Limits{})
	now := time.Unix(1000, 0)

	assert.Nil(t, b.Add("t", msgWithBytes(t, pool, "t", 1), now))
	assert.Empty(t, b.GetComplete(now.Add(24*time.Hour)))

	all := b.GetAll()
	require.Len(t, all, 1)
	assert.Len(t, all[0].Messages, 1)
}

func TestTopicBatcherPerTopicOverride(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewTopicBatcher(Limits{MaxMessages: 100})
	b.SetLimits("small", Limits{MaxMessages: 1})
	now := time.Unix(1000, 0)

	out := b.Add("small", msgWithBytes(t, pool, "small", 1), now)
	require.NotNil(t, out, "override should release at 1 message, not the default 100")

	assert.Nil(t, b.Add("big", msgWithBytes(t, pool, "big", 1), now))
}

func TestTopicBatcherIndependentTopics(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewTopicBatcher(Limits{MaxMessages: 2})
	now := time.Unix(1000, 0)

	assert.Nil(t, b.Add("a", msgWithBytes(t, pool, "a", 1), now))
	assert.Nil(t, b.Add("b", msgWithBytes(t, pool, "b", 1), now))

	allAtShutdown := b.GetAll()
	assert.Len(t, allAtShutdown, 2)
}
