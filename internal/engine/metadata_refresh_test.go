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
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dspeterson/dory/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *metadataFetcher {
	cfg := Config{
		DialTimeout:             time.Second,
		MaxMetadataResponseSize: 1 << 20,
		ClientID:                "dory",
		PauseMinDelay:           10 * time.Millisecond,
		PauseMaxDoublings:       4,
		PauseQuiescent:          time.Hour,
	}
	return newMetadataFetcher([]string{"seed:9092"}, testLogger(), cfg)
}

// encodeMetadataResponse hand-builds a Metadata v0 response body for one
// broker and one single-partition topic, the layout
// wire.DecodeMetadataResponse expects. There is no production encoder
// for responses since Dory only ever plays the client role.
func encodeMetadataResponse(correlationID int32, host string, port, partitionID, leaderID int32, errorCode int16, topic string) []byte {
	buf := make([]byte, 4)
	put32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf = append(buf, b[:]...)
	}
	put16 := func(v int16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		buf = append(buf, b[:]...)
	}
	putStr := func(s string) {
		put16(int16(len(s)))
		buf = append(buf, s...)
	}

	put32(correlationID)
	put32(1) // broker_count
	put32(0) // node_id
	putStr(host)
	put32(port)

	put32(1) // topic_count
	put16(errorCode)
	putStr(topic)
	put32(1) // partition_count
	put16(errorCode)
	put32(partitionID)
	put32(leaderID)
	put32(0) // replica_count
	put32(0) // isr_count

	size := int32(len(buf) - 4)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	return buf
}

func readOneFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var sizeBuf [4]byte
	_, err := io.ReadFull(conn, sizeBuf[:])
	require.NoError(t, err)
	size := binary.BigEndian.Uint32(sizeBuf[:])
	body := make([]byte, size)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)
	return body
}

func TestMetadataFetcherFullRefreshRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	f := newTestFetcher()
	f.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		return client, nil
	}

	var got *wire.MetadataResponse
	var gotErr error
	f.enqueue(nil, func(resp *wire.MetadataResponse, err error) {
		got, gotErr = resp, err
	})

	now := time.Unix(1000, 0)
	f.Step(now) // Connecting -> Ready
	require.Equal(t, 0, int(f.addrIdx)) // still first (only) seed broker

	go func() {
		defer server.Close()
		readOneFrame(t, server)
		_, _ = server.Write(encodeMetadataResponse(1, "broker0", 9092, 0, 0, 0, "t"))
	}()

	f.Step(now) // sends the request

	require.Eventually(t, func() bool {
		f.Step(now)
		return got != nil || gotErr != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, gotErr)
	require.NotNil(t, got)
	assert.Equal(t, "broker0", got.Brokers[0].Host)
	assert.Equal(t, "t", got.Topics[0].Name)
}

func TestMetadataFetcherConnectFailureAdvancesSeedAndBacksOff(t *testing.T) {
	f := newTestFetcher()
	f.addrs = []string{"seed1:9092", "seed2:9092"}
	attempts := 0
	f.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		attempts++
		return nil, assertErr{}
	}

	f.enqueue(nil, func(resp *wire.MetadataResponse, err error) {})

	now := time.Unix(1000, 0)
	f.Step(now)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, "seed2:9092", f.addrs[f.addrIdx%len(f.addrs)])

	// Still within backoff: no second dial attempt yet.
	f.Step(now.Add(time.Millisecond))
	assert.Equal(t, 1, attempts)

	later := now.Add(time.Second)
	f.Step(later) // Broken -> Connecting
	f.Step(later) // Connecting -> dial attempt 2
	assert.Equal(t, 2, attempts)
}

type assertErr struct{}

func (assertErr) Error() string { return "dial failed" }
