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

import "encoding/binary"

// Frame is the inverse of Decode's input: the fields of one local ingest
// frame, described independently of message.Message so test code (and
// any future local producer shim) can build a wire-correct frame without
// going through the pool/router. It mirrors the two message-writing
// entry points `dory_write_any_partition_msg` and
// `dory_write_partition_key_msg` of
// original_source/src/dory/client/dory_client.h: PartitionKey is
// populated and PartitionKeySet set true to produce the PartitionKey
// variant, left zero-value otherwise.
type Frame struct {
	Topic           string
	Timestamp       int64
	Key             []byte
	Value           []byte
	PartitionKey    uint32
	PartitionKeySet bool
}

// Encode renders f as a complete wire frame, including the leading
// self-inclusive size field (spec §6).
func Encode(f Frame) []byte {
	apiKey := byte(APIKeyAnyPartition)
	if f.PartitionKeySet {
		apiKey = APIKeyPartitionKey
	}

	bodyLen := 1 + 1 + 2 // api_key, api_version, flags
	if f.PartitionKeySet {
		bodyLen += 4
	}
	bodyLen += 2 + len(f.Topic)
	bodyLen += 8
	bodyLen += 4 + len(f.Key)
	bodyLen += 4 + len(f.Value)

	buf := make([]byte, 4+bodyLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(4+bodyLen))

	pos := 4
	buf[pos] = apiKey
	pos++
	buf[pos] = 0 // api_version: spec §6 defines exactly one
	pos++
	binary.BigEndian.PutUint16(buf[pos:], 0) // flags: reserved
	pos += 2
	if f.PartitionKeySet {
		binary.BigEndian.PutUint32(buf[pos:], f.PartitionKey)
		pos += 4
	}
	binary.BigEndian.PutUint16(buf[pos:], uint16(len(f.Topic)))
	pos += 2
	pos += copy(buf[pos:], f.Topic)
	binary.BigEndian.PutUint64(buf[pos:], uint64(f.Timestamp))
	pos += 8
	binary.BigEndian.PutUint32(buf[pos:], uint32(len(f.Key)))
	pos += 4
	pos += copy(buf[pos:], f.Key)
	binary.BigEndian.PutUint32(buf[pos:], uint32(len(f.Value)))
	pos += 4
	pos += copy(buf[pos:], f.Value)
	return buf
}
