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

// Package ingest decodes and encodes the local ingest wire format (spec
// §6): a size-prefixed frame a producer on the same host sends over a
// stream or datagram socket, admitting one application message per
// frame.
package ingest

import (
	"encoding/binary"
	"errors"

	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/message"
)

// api_key values (spec §6). Any other value is UnsupportedVersion.
const (
	APIKeyAnyPartition = 0
	APIKeyPartitionKey = 1
)

// ErrUnsupportedAPI means the frame named an api_key other than
// AnyPartition or PartitionKey (spec §6: "any other value yields
// UnsupportedVersion").
var ErrUnsupportedAPI = errors.New("ingest: unsupported api_key")

// ErrTruncated means the frame ended before a field it declared (e.g. a
// topic_size longer than the bytes actually present) could be read —
// spec §7 edge case 5, "rejected and logged as a malformed-message
// discard; the ingest listener remains healthy."
var ErrTruncated = errors.New("ingest: truncated frame")

// minFrameLen is api_key(1) + api_version(1) + flags(2) + topic_size(2) +
// timestamp(8) + key_size(4) + value_size(4), the smallest a frame can be
// with an empty topic, key, and value and AnyPartition routing (no
// partition_key field).
const minFrameLen = 1 + 1 + 2 + 2 + 8 + 4 + 4

// Decode parses one local ingest frame and allocates its key/value
// storage from pool. frame is the frame body exactly as handed back by
// streamio.Reader.ConsumeReadyMsg — the leading self-inclusive size
// field has already been consumed by the framer and is not part of
// frame.
//
// ok is false when pool had no free block for this message's storage
// (message.Pool.Acquire's own admission-control signal, spec §3); the
// caller should treat that as an admission failure (discard.NoBufferSpace),
// not a decode error. A non-nil error always means the frame itself was
// malformed (discard.MalformedMessage); the three outcomes are mutually
// exclusive.
func Decode(frame []byte, pool *message.Pool) (msg *message.Message, ok bool, err error) {
	if len(frame) < minFrameLen {
		return nil, false, ErrTruncated
	}

	apiKey := frame[0]
	// api_version (frame[1]) is carried but not yet consulted: spec §6
	// defines exactly one version of this frame layout.
	pos := 2

	flags := binary.BigEndian.Uint16(frame[pos:])
	_ = flags // reserved for future use; spec §6 defines no bits yet
	pos += 2

	routing := message.AnyPartition
	var partitionKey uint32
	switch apiKey {
	case APIKeyAnyPartition:
	case APIKeyPartitionKey:
		if len(frame) < pos+4 {
			return nil, false, ErrTruncated
		}
		routing = message.PartitionKey
		partitionKey = binary.BigEndian.Uint32(frame[pos:])
		pos += 4
	default:
		return nil, false, ErrUnsupportedAPI
	}

	topic, pos, err := readTopic(frame, pos)
	if err != nil {
		return nil, false, err
	}
	if topic == "" {
		return nil, false, ErrTruncated
	}

	if len(frame) < pos+8 {
		return nil, false, ErrTruncated
	}
	timestamp := int64(binary.BigEndian.Uint64(frame[pos:]))
	pos += 8

	key, pos, err := readBytesField(frame, pos)
	if err != nil {
		return nil, false, err
	}
	value, pos, err := readBytesField(frame, pos)
	if err != nil {
		return nil, false, err
	}
	if pos != len(frame) {
		return nil, false, ErrTruncated
	}

	var keyHandle *message.Handle
	if key != nil {
		h, acquired := pool.Acquire(key)
		if !acquired {
			return nil, false, nil
		}
		keyHandle = h
	}
	valHandle, acquired := pool.Acquire(value)
	if !acquired {
		keyHandle.Release()
		return nil, false, nil
	}

	msg = &message.Message{
		Topic:       topic,
		Timestamp:   timestamp,
		Key:         keyHandle,
		Value:       valHandle,
		Routing:     routing,
		PartitionID: partitionKey,
		Identity:    discard.NewIdentity(),
	}
	return msg, true, nil
}

func readTopic(frame []byte, pos int) (string, int, error) {
	if len(frame) < pos+2 {
		return "", 0, ErrTruncated
	}
	size := int(binary.BigEndian.Uint16(frame[pos:]))
	pos += 2
	if size < 0 || len(frame) < pos+size {
		return "", 0, ErrTruncated
	}
	topic := string(frame[pos : pos+size])
	return topic, pos + size, nil
}

// readBytesField reads a key or value field (size:i32 | bytes) and
// returns a non-nil, possibly zero-length, slice: the wire format does
// not distinguish a null payload from an empty one (spec §6 treats both
// as "possibly empty").
func readBytesField(frame []byte, pos int) ([]byte, int, error) {
	if len(frame) < pos+4 {
		return nil, 0, ErrTruncated
	}
	size := int32(binary.BigEndian.Uint32(frame[pos:]))
	pos += 4
	if size < 0 || len(frame) < pos+int(size) {
		return nil, 0, ErrTruncated
	}
	return frame[pos : pos+int(size)], pos + int(size), nil
}
