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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeSizeFieldIsSelfInclusive(t *testing.T) {
	frame := Encode(Frame{Topic: "t", Timestamp: 1, Key: []byte("k"), Value: []byte("v")})
	size := binary.BigEndian.Uint32(frame[0:4])
	assert.Equal(t, uint32(len(frame)), size)
}

func TestEncodePartitionKeySetsAPIKey(t *testing.T) {
	frame := Encode(Frame{Topic: "t", Timestamp: 1, PartitionKey: 5, PartitionKeySet: true})
	assert.Equal(t, byte(APIKeyPartitionKey), frame[4])
}

func TestEncodeAnyPartitionOmitsPartitionKeyField(t *testing.T) {
	withKey := Encode(Frame{Topic: "t", Timestamp: 1, PartitionKey: 5, PartitionKeySet: true})
	without := Encode(Frame{Topic: "t", Timestamp: 1})
	assert.Equal(t, byte(APIKeyAnyPartition), without[4])
	assert.Equal(t, len(withKey), len(without)+4)
}
