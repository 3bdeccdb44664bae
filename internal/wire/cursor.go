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

import "encoding/binary"

// cursor is the shared low-level reader both MetadataResponseReader and
// DecodeProduceResponse build on: it tracks a position into a byte slice
// and validates every advance against the remaining length before
// returning. Every read method returns a DecodeError rather than
// panicking on a short buffer (spec §4.1: "Size fields are validated
// against both the advertised frame size and the buffer bound").
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) need(n int, field string) error {
	if c.remaining() < n {
		return newDecodeError(TruncatedFrame, field, c.pos)
	}
	return nil
}

func (c *cursor) readInt8(field string) (int8, error) {
	if err := c.need(1, field); err != nil {
		return 0, err
	}
	v := int8(c.buf[c.pos])
	c.pos++
	return v, nil
}

func (c *cursor) readInt16(field string) (int16, error) {
	if err := c.need(2, field); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(c.buf[c.pos:]))
	c.pos += 2
	return v, nil
}

func (c *cursor) readInt32(field string) (int32, error) {
	if err := c.need(4, field); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(c.buf[c.pos:]))
	c.pos += 4
	return v, nil
}

func (c *cursor) readInt64(field string) (int64, error) {
	if err := c.need(8, field); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(c.buf[c.pos:]))
	c.pos += 8
	return v, nil
}

// readString reads an i16 length followed by that many bytes. A negative
// length is always a BadLength error: unlike record keys/values, strings
// in the metadata/produce response framing have no -1 "empty" sentinel.
func (c *cursor) readString(field string) (string, error) {
	n, err := c.readInt16(field + ".len")
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", newDecodeError(BadLength, field+".len", c.pos-2)
	}
	if err := c.need(int(n), field); err != nil {
		return "", err
	}
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

// readCount reads an i32 count field, rejecting negative values (spec
// §4.1: "truncation or negative counts yield a typed decode error").
func (c *cursor) readCount(field string) (int32, error) {
	n, err := c.readInt32(field)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, newDecodeError(BadCount, field, c.pos-4)
	}
	return n, nil
}
