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

package ingest

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/dspeterson/dory/internal/batch"
	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/message"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeQueue struct{ received []router.RoutedGroup }

func (q *fakeQueue) TryEnqueue(g router.RoutedGroup) bool {
	q.received = append(q.received, g)
	return true
}

type fakeTracker struct{ topics []string }

func (f *fakeTracker) NoteTopic(topic string) { f.topics = append(f.topics, topic) }

func newTestListener(t *testing.T) (*Listener, *fakeQueue, *fakeTracker, discard.Sink) {
	t.Helper()
	b := metadata.NewBuilder(testLogger())
	require.NoError(t, b.AddBroker(0, "broker0", 9092))
	require.NoError(t, b.CloseBrokerList())
	require.NoError(t, b.OpenTopic("t"))
	require.NoError(t, b.AddPartition(0, 0, true, 0))
	require.NoError(t, b.CloseTopic())
	snap, err := b.Build()
	require.NoError(t, err)
	cache := metadata.NewCache()
	cache.Swap(snap)

	tb := batch.NewTopicBatcher(batch.Limits{MaxMessages: 1})
	sink := discard.NewMemorySink()
	r := router.New(router.Config{MaxFailedDeliveryAttempts: 3}, testLogger(), cache, tb, nil, router.AllowAll{}, metadata.NewAutocreateBackoff(16, time.Minute), sink)
	q := &fakeQueue{}
	r.SetDispatcherQueue(0, q)

	pool := message.NewPool(256, 16)
	tracker := &fakeTracker{}
	l := NewListener(r, pool, tracker, sink, testLogger(), 1<<16)
	return l, q, tracker, sink
}

func TestListenerServeConnAdmitsDecodedMessage(t *testing.T) {
	l, q, tracker, sink := newTestListener(t)
	server, client := net.Pipe()

	go func() {
		_, _ = client.Write(Encode(Frame{Topic: "t", Timestamp: 1, Key: []byte("k"), Value: []byte("v")}))
		client.Close()
	}()

	err := l.ServeConn(server, func() time.Time { return time.Unix(1000, 0) })
	assert.NoError(t, err)
	require.Len(t, q.received, 1)
	assert.Equal(t, "t", q.received[0].Topic)
	assert.Equal(t, []string{"t"}, tracker.topics)
	assert.Empty(t, sink.(*discard.MemorySink).All())
}

func TestListenerServeConnDiscardsMalformedFrameAndDisconnects(t *testing.T) {
	l, _, _, sink := newTestListener(t)
	server, client := net.Pipe()

	go func() {
		frame := Encode(Frame{Topic: "t", Timestamp: 1})
		frame[4] = 9 // api_key: unsupported
		_, _ = client.Write(frame)
		client.Close()
	}()

	err := l.ServeConn(server, func() time.Time { return time.Unix(1000, 0) })
	assert.Error(t, err)
	assert.Equal(t, 1, sink.(*discard.MemorySink).Count(discard.MalformedMessage))
}
