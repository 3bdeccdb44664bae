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

func TestCombinedBatcherAllowList(t *testing.T) {
	b := NewCombinedBatcher(Limits{MaxMessages: 10}, AllowList{"a": {}, "b": {}})
	assert.True(t, b.Accepts("a"))
	assert.True(t, b.Accepts("b"))
	assert.False(t, b.Accepts("c"))
}

func TestCombinedBatcherDenyList(t *testing.T) {
	b := NewCombinedBatcher(Limits{MaxMessages: 10}, DenyList{"a": {}})
	assert.False(t, b.Accepts("a"))
	assert.True(t, b.Accepts("anything-else"))
}

func TestCombinedBatcherMixesTopics(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewCombinedBatcher(Limits{MaxMessages: 2}, DenyList{})
	now := time.Unix(1000, 0)

	assert.Nil(t, b.Add(msgWithBytes(t, pool, "a", 1), now))
	out := b.Add(msgWithBytes(t, pool, "b", 1), now)
	require.NotNil(t, out)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "a", out.Messages[0].Topic)
	assert.Equal(t, "b", out.Messages[1].Topic)
}

func TestCombinedBatcherGetAllAtShutdown(t *testing.T) {
	pool := message.NewPool(64, 16)
	b := NewCombinedBatcher(Limits{}, DenyList{})
	now := time.Unix(1000, 0)

	assert.Nil(t, b.Add(msgWithBytes(t, pool, "a", 1), now))
	assert.Nil(t, b.GetComplete(now.Add(24*time.Hour)))

	out := b.GetAll()
	require.NotNil(t, out)
	assert.Len(t, out.Messages, 1)
	assert.Nil(t, b.GetAll(), "a second drain with nothing queued returns nil")
}
