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

package engine

import (
	"io"
	"testing"
	"time"

	"github.com/dspeterson/dory/internal/batch"
	"github.com/dspeterson/dory/internal/dispatch"
	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/wire"
	"github.com/dspeterson/dory/internal/wire/codec"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type alwaysNone struct{}

func (alwaysNone) For(topic string) dispatch.CompressionConfig {
	return dispatch.CompressionConfig{Codec: codec.None}
}

func newTestEngine() (*Engine, *router.Router, *metadata.Cache) {
	log := testLogger()
	cache := metadata.NewCache()
	topicBatcher := batch.NewTopicBatcher(batch.Limits{MaxMessages: 1})
	sink := discard.NewMemorySink()
	autocreate := metadata.NewAutocreateBackoff(16, time.Minute)
	r := router.New(router.Config{MaxFailedDeliveryAttempts: 3, TopicAutocreate: true}, log, cache, topicBatcher, nil, router.AllowAll{}, autocreate, sink)

	cfg := Config{
		SeedBrokers:             []string{"seed:9092"},
		MetadataRefreshInterval: time.Minute,
		MaxMetadataResponseSize: 1 << 20,
		DialTimeout:             time.Second,
		ClientID:                "dory",
		PauseMinDelay:           10 * time.Millisecond,
		PauseMaxDoublings:       4,
		PauseQuiescent:          time.Hour,
		Dispatcher: dispatch.Config{
			DialTimeout:          time.Second,
			RequiredAcks:         1,
			ReplicationTimeoutMs: 1500,
			ProduceDataLimit:     1 << 20,
			MaxResponseSize:      1 << 20,
			QueueCapacity:        8,
			MaxFailedAttempts:    3,
			PauseMinDelay:        10 * time.Millisecond,
			PauseMaxDoublings:    4,
			PauseQuiescent:       time.Hour,
			ErrorRateTrigger:     2,
			ClientID:             "dory",
		},
		Compression: alwaysNone{},
	}

	e := New(cfg, log, r, cache)
	return e, r, cache
}

func oneBrokerOneTopicResponse() *wire.MetadataResponse {
	return &wire.MetadataResponse{
		Brokers: []wire.Broker{{NodeID: 0, Host: "broker0", Port: 9092}},
		Topics: []wire.TopicMeta{
			{
				Name: "t",
				Partitions: []wire.PartitionMeta{
					{PartitionID: 0, LeaderID: 0, ErrorCode: wire.ErrNone},
				},
			},
		},
	}
}

func TestApplyRefreshBuildsSnapshotAndSpawnsDispatcher(t *testing.T) {
	e, _, cache := newTestEngine()
	e.applyRefresh(oneBrokerOneTopicResponse(), time.Unix(1000, 0))

	snap := cache.Current()
	assert.ElementsMatch(t, []int32{0}, snap.RoutablePartitions("t"))

	require.Len(t, e.dispatchers, 1)
	d, ok := e.dispatchers[0]
	require.True(t, ok)
	assert.Equal(t, "broker0:9092", d.Addr())
}

func TestApplyRefreshRetiresRemovedBroker(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Unix(1000, 0)
	e.applyRefresh(oneBrokerOneTopicResponse(), now)
	require.Len(t, e.dispatchers, 1)

	empty := &wire.MetadataResponse{}
	e.applyRefresh(empty, now)

	assert.Empty(t, e.dispatchers)
	require.Len(t, e.retiring, 1)
	assert.Equal(t, dispatch.Draining, e.retiring[0].State())
}

func TestApplyRefreshReplacesDispatcherOnAddrChange(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Unix(1000, 0)
	e.applyRefresh(oneBrokerOneTopicResponse(), now)
	original := e.dispatchers[0]

	moved := &wire.MetadataResponse{
		Brokers: []wire.Broker{{NodeID: 0, Host: "broker0-new", Port: 9093}},
		Topics: []wire.TopicMeta{
			{Name: "t", Partitions: []wire.PartitionMeta{{PartitionID: 0, LeaderID: 0, ErrorCode: wire.ErrNone}}},
		},
	}
	e.applyRefresh(moved, now)

	require.Len(t, e.dispatchers, 1)
	assert.Equal(t, "broker0-new:9093", e.dispatchers[0].Addr())
	require.Len(t, e.retiring, 1)
	assert.Same(t, original, e.retiring[0])
}

func TestApplyRefreshMarksErroredPartitionOutOfService(t *testing.T) {
	e, _, cache := newTestEngine()
	resp := &wire.MetadataResponse{
		Brokers: []wire.Broker{{NodeID: 0, Host: "broker0", Port: 9092}},
		Topics: []wire.TopicMeta{
			{
				Name: "t",
				Partitions: []wire.PartitionMeta{
					// LeaderNotAvailable carries an unknown leader id alongside
					// a nonzero error code; ErrorCode must govern in_service
					// rather than the stale LeaderID.
					{PartitionID: 0, LeaderID: 99, ErrorCode: 5},
				},
			},
		},
	}
	e.applyRefresh(resp, time.Unix(1000, 0))
	assert.Empty(t, cache.Current().RoutablePartitions("t"))
}

func TestShutdownFastStopsDispatchersImmediately(t *testing.T) {
	e, _, _ := newTestEngine()
	e.applyRefresh(oneBrokerOneTopicResponse(), time.Unix(1000, 0))
	require.Len(t, e.dispatchers, 1)

	e.Shutdown(false, 0, time.Millisecond)

	assert.Empty(t, e.dispatchers)
	assert.Empty(t, e.retiring)
}

func TestShutdownGracefulWaitsForIdleThenStops(t *testing.T) {
	e, _, _ := newTestEngine()
	e.applyRefresh(oneBrokerOneTopicResponse(), time.Unix(1000, 0))

	e.Shutdown(true, 50*time.Millisecond, time.Millisecond)

	assert.Empty(t, e.dispatchers)
	assert.Empty(t, e.retiring)
}
