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
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestBuilderHappyPath(t *testing.T) {
	b := NewBuilder(newTestLogger())
	require.NoError(t, b.OpenBrokerList())
	require.NoError(t, b.AddBroker(0, "broker0", 9092))
	require.NoError(t, b.AddBroker(1, "broker1", 9092))
	require.NoError(t, b.CloseBrokerList())

	require.NoError(t, b.OpenTopic("t"))
	require.NoError(t, b.AddPartition(0, 0, true, 0))
	require.NoError(t, b.AddPartition(1, 1, true, 0))
	require.NoError(t, b.CloseTopic())

	snap, err := b.Build()
	require.NoError(t, err)

	leader, ok := snap.LeaderOf("t", 1)
	require.True(t, ok)
	assert.Equal(t, int32(1), leader)
	assert.ElementsMatch(t, []int32{0, 1}, snap.RoutablePartitions("t"))
}

func TestBuilderRejectsDuplicateBrokerIndex(t *testing.T) {
	b := NewBuilder(newTestLogger())
	require.NoError(t, b.AddBroker(0, "a", 1))
	assert.Error(t, b.AddBroker(0, "b", 2))
}

func TestBuilderRejectsDuplicatePartitionID(t *testing.T) {
	b := NewBuilder(newTestLogger())
	require.NoError(t, b.AddBroker(0, "a", 1))
	require.NoError(t, b.CloseBrokerList())
	require.NoError(t, b.OpenTopic("t"))
	require.NoError(t, b.AddPartition(0, 0, true, 0))
	assert.Error(t, b.AddPartition(0, 0, true, 0))
}

func TestBuilderRejectsUnknownLeader(t *testing.T) {
	b := NewBuilder(newTestLogger())
	require.NoError(t, b.CloseBrokerList())
	require.NoError(t, b.OpenTopic("t"))
	assert.Error(t, b.AddPartition(0, 99, true, 0))
}

func TestBuilderKeepsFirstOccurrenceOfDuplicateTopic(t *testing.T) {
	b := NewBuilder(newTestLogger())
	require.NoError(t, b.AddBroker(0, "a", 1))
	require.NoError(t, b.AddBroker(1, "b", 1))
	require.NoError(t, b.CloseBrokerList())

	require.NoError(t, b.OpenTopic("t"))
	require.NoError(t, b.AddPartition(0, 0, true, 0))
	require.NoError(t, b.CloseTopic())

	require.NoError(t, b.OpenTopic("t"))
	require.NoError(t, b.AddPartition(0, 1, true, 0))
	require.NoError(t, b.CloseTopic())

	snap, err := b.Build()
	require.NoError(t, err)
	leader, ok := snap.LeaderOf("t", 0)
	require.True(t, ok)
	assert.Equal(t, int32(0), leader, "first occurrence's leader should win")
}

func TestBuilderOutOfServicePartitionNotRoutable(t *testing.T) {
	b := NewBuilder(newTestLogger())
	require.NoError(t, b.AddBroker(0, "a", 1))
	require.NoError(t, b.CloseBrokerList())
	require.NoError(t, b.OpenTopic("t"))
	require.NoError(t, b.AddPartition(0, 0, false, 5))
	require.NoError(t, b.CloseTopic())

	snap, err := b.Build()
	require.NoError(t, err)
	assert.Empty(t, snap.RoutablePartitions("t"))
	_, ok := snap.LeaderOf("t", 0)
	assert.False(t, ok)
}
