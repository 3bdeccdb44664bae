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
	"testing"

	"github.com/dspeterson/dory/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnyPartitionRoundTrip(t *testing.T) {
	pool := message.NewPool(256, 16)
	frame := Encode(Frame{Topic: "t", Timestamp: 1234, Key: []byte("k"), Value: []byte("v")})

	msg, ok, err := Decode(frame[4:], pool)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t", msg.Topic)
	assert.Equal(t, int64(1234), msg.Timestamp)
	assert.Equal(t, message.AnyPartition, msg.Routing)
	assert.Equal(t, []byte("k"), msg.KeyBytes())
	assert.Equal(t, []byte("v"), msg.ValueBytes())
	assert.NotEmpty(t, msg.Identity)
}

func TestDecodePartitionKeyRoundTrip(t *testing.T) {
	pool := message.NewPool(256, 16)
	frame := Encode(Frame{Topic: "t", Timestamp: 1, Key: []byte("k"), Value: []byte("v"), PartitionKey: 7, PartitionKeySet: true})

	msg, ok, err := Decode(frame[4:], pool)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.PartitionKey, msg.Routing)
	assert.Equal(t, uint32(7), msg.PartitionID)
}

func TestDecodeEmptyKeyAndValue(t *testing.T) {
	pool := message.NewPool(256, 16)
	frame := Encode(Frame{Topic: "t", Timestamp: 1})

	msg, ok, err := Decode(frame[4:], pool)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{}, msg.KeyBytes())
	assert.Equal(t, []byte{}, msg.ValueBytes())
}

func TestDecodeRejectsUnsupportedAPIKey(t *testing.T) {
	pool := message.NewPool(256, 16)
	frame := Encode(Frame{Topic: "t", Timestamp: 1})
	body := frame[4:]
	body[0] = 9 // api_key

	_, ok, err := Decode(body, pool)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnsupportedAPI)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	pool := message.NewPool(256, 16)
	frame := Encode(Frame{Topic: "t", Timestamp: 1, Value: []byte("v")})
	body := frame[4:]

	_, ok, err := Decode(body[:len(body)-2], pool)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeRejectsEmptyTopic(t *testing.T) {
	pool := message.NewPool(256, 16)
	frame := Encode(Frame{Topic: "", Timestamp: 1})

	_, ok, err := Decode(frame[4:], pool)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeReportsPoolExhaustion(t *testing.T) {
	pool := message.NewPool(4, 1) // one 4-byte block total
	frame := Encode(Frame{Topic: "t", Timestamp: 1, Key: []byte("toolong"), Value: []byte("v")})

	msg, ok, err := Decode(frame[4:], pool)
	assert.Nil(t, msg)
	assert.False(t, ok)
	assert.NoError(t, err)
}
