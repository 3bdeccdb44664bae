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

package discard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkAccumulatesAndCounts(t *testing.T) {
	sink := NewMemorySink()
	now := time.Unix(1000, 0)

	sink.Record(NewRecord("t", NoBufferSpace, NewIdentity(), now))
	sink.Record(NewRecord("t", NoBufferSpace, NewIdentity(), now))
	sink.Record(NewKafkaErrorRecord("t", 10, NewIdentity(), now))

	assert.Equal(t, 2, sink.Count(NoBufferSpace))
	assert.Equal(t, 1, sink.Count(KafkaErrorAck))
	assert.Len(t, sink.All(), 3)
}

func TestIdentityIsUniquePerMessage(t *testing.T) {
	a := NewIdentity()
	b := NewIdentity()
	require.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestReasonStringCoversAllValues(t *testing.T) {
	for r := NoAvailablePartition; r <= MalformedMessage; r++ {
		assert.NotContains(t, r.String(), "reason(")
	}
}
