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

package wire

import (
	"encoding/binary"
	"hash/crc32"
)

// Compression identifies the codec carried in a record's attrs field
// (spec §4.1: low three bits, 0=none 1=gzip 2=snappy 3=lz4).
type Compression byte

const (
	CompressionNone   = Compression(0)
	CompressionGzip   = Compression(1)
	CompressionSnappy = Compression(2)
	CompressionLz4    = Compression(3)

	attrsCompressionMask = byte(0x07)
)

// Record is one decoded message-set entry: `offset:i64 | msg_size:i32 |
// crc:u32 | magic:u8 | attrs:u8 | key | value`. CRC covers bytes from
// magic through the end of value (spec §4.1).
type Record struct {
	Offset int64
	Magic  byte
	Attrs  byte
	Key    []byte // nil means the -1 "empty" sentinel was read
	Value  []byte
}

// Compression extracts the codec named by the low three bits of Attrs.
func (r *Record) Compression() Compression {
	return Compression(r.Attrs & attrsCompressionMask)
}

// EncodeRecord appends one wire-format record to dst and returns the
// extended slice. crc is computed over magic..value as required by
// spec §4.1.
func EncodeRecord(dst []byte, offset int64, magic, attrs byte, key, value []byte) []byte {
	body := make([]byte, 0, 6+lenFieldSize(key)+lenFieldSize(value))
	body = append(body, magic, attrs)
	body = appendLengthPrefixed(body, key)
	body = appendLengthPrefixed(body, value)

	crc := crc32.ChecksumIEEE(body)

	msgSize := 4 + len(body) // crc(4) + body
	dst = appendInt64(dst, offset)
	dst = appendInt32(dst, int32(msgSize))
	dst = appendUint32(dst, crc)
	dst = append(dst, body...)
	return dst
}

func lenFieldSize(b []byte) int {
	return 4 + len(b)
}

func appendLengthPrefixed(dst []byte, b []byte) []byte {
	if b == nil {
		return appendInt32(dst, -1)
	}
	dst = appendInt32(dst, int32(len(b)))
	return append(dst, b...)
}

func appendInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}

func appendUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return append(dst, buf[:]...)
}

func appendInt16(dst []byte, v int16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	return append(dst, buf[:]...)
}

// DecodeRecord reads one record from buf starting at offset 0 and returns
// the record plus the number of bytes consumed (8 + 4 + msgSize: offset
// field, size field, and the body). Readers must accept a -1 length as
// empty (spec §4.1); any other negative length is a BadLength error. CRC
// is recomputed and checked against the embedded value.
func DecodeRecord(buf []byte) (*Record, int, error) {
	if len(buf) < 12 {
		return nil, 0, newDecodeError(TruncatedFrame, "record.offset+size", 0)
	}
	offset := int64(binary.BigEndian.Uint64(buf[0:8]))
	msgSize := int32(binary.BigEndian.Uint32(buf[8:12]))
	if msgSize < 0 {
		return nil, 0, newDecodeError(BadLength, "record.msg_size", 8)
	}
	total := 12 + int(msgSize)
	if len(buf) < total {
		return nil, 0, newDecodeError(TruncatedFrame, "record.body", 12)
	}
	body := buf[12:total]
	if len(body) < 6 {
		return nil, 0, newDecodeError(TruncatedFrame, "record.crc+magic+attrs", 12)
	}
	crc := binary.BigEndian.Uint32(body[0:4])
	magic := body[4]
	attrs := body[5]

	rest := body[6:]
	computed := crc32.ChecksumIEEE(body[4:])
	if computed != crc {
		return nil, 0, newDecodeError(CrcMismatch, "record.crc", 12)
	}

	key, rest, err := readLengthPrefixed(rest, 18)
	if err != nil {
		return nil, 0, err
	}
	value, _, err := readLengthPrefixed(rest, 18+lenFieldSize(key))
	if err != nil {
		return nil, 0, err
	}

	return &Record{Offset: offset, Magic: magic, Attrs: attrs, Key: key, Value: value}, total, nil
}

// readLengthPrefixed reads an i32 length followed by that many bytes, or
// treats -1 as a nil (empty) field. offset is used only for error
// reporting.
func readLengthPrefixed(buf []byte, offset int) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, newDecodeError(TruncatedFrame, "length", offset)
	}
	n := int32(binary.BigEndian.Uint32(buf[0:4]))
	buf = buf[4:]
	if n == -1 {
		return nil, buf, nil
	}
	if n < -1 {
		return nil, nil, newDecodeError(BadLength, "length", offset)
	}
	if len(buf) < int(n) {
		return nil, nil, newDecodeError(TruncatedFrame, "value", offset)
	}
	return buf[:n], buf[n:], nil
}

// DecodeMessageSet decodes a flat (uncompressed) sequence of records from
// buf, stopping at the end of the slice. It does not recurse into
// compressed records — callers that need to see through compression use
// DecodeMessageSetRecursive.
func DecodeMessageSet(buf []byte) ([]*Record, error) {
	var records []*Record
	for len(buf) > 0 {
		rec, n, err := DecodeRecord(buf)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		buf = buf[n:]
	}
	return records, nil
}
