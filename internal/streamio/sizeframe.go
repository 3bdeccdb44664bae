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

package streamio

import "encoding/binary"

// SizePrefixHook implements the "size-prefixed variant" of spec §4.5.2:
// a fixed-width big-endian size field, rejecting negative values,
// rejecting values exceeding maxBodySize, and optionally interpreting
// the size as including the size field itself (SelfInclusive) — the
// convention of the local ingest frame (spec §6, "the size field covers
// the entire frame including itself"); Kafka response frames do not
// count the size field.
type SizePrefixHook struct {
	// FieldWidth is the size field's byte width; Dory only ever uses 4
	// (int32), but the field exists so a future protocol variant is not
	// a structural change.
	FieldWidth int
	// Signed rejects the high bit being set as a negative size; both
	// Kafka and the local ingest protocol use a signed 32-bit size.
	Signed bool
	// SelfInclusive means the encoded size counts the size field itself;
	// the local ingest frame does this, Kafka's response frame does not.
	SelfInclusive bool
	// MaxBodySize bounds the accepted body size (excluding the size
	// field), guarding against a corrupt or hostile size claiming more
	// memory than Dory is willing to buffer.
	MaxBodySize int
}

// NewSizePrefixHook builds a hook for a 4-byte signed big-endian size
// field.
func NewSizePrefixHook(selfInclusive bool, maxBodySize int) *SizePrefixHook {
	return &SizePrefixHook{FieldWidth: 4, Signed: true, SelfInclusive: selfInclusive, MaxBodySize: maxBodySize}
}

// NextMsg implements Hook.
func (h *SizePrefixHook) NextMsg(buf []byte) (HookResult, int, int, int) {
	if len(buf) < h.FieldWidth {
		return NoMsgReady, 0, 0, 0
	}

	raw := int64(binary.BigEndian.Uint32(buf[:h.FieldWidth]))
	if h.Signed && int32(raw) < 0 {
		return Invalid, 0, 0, 0
	}

	bodySize := raw
	if h.SelfInclusive {
		bodySize -= int64(h.FieldWidth)
	}
	if bodySize < 0 {
		return Invalid, 0, 0, 0
	}
	if h.MaxBodySize > 0 && bodySize > int64(h.MaxBodySize) {
		return Invalid, 0, 0, 0
	}

	total := h.FieldWidth + int(bodySize)
	if len(buf) < total {
		return NoMsgReady, 0, 0, 0
	}

	// The message proper starts after the size field; the size field
	// itself is not part of the payload handed to the caller.
	return Ready, h.FieldWidth, int(bodySize), 0
}
