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

// Package codec implements the four compression variants referenced by a
// record's attrs field. Per spec §9, the source's polymorphic compression
// codec hierarchy collapses to an enum with a dispatch table holding one
// Codec (four methods) per variant.
package codec

import "fmt"

// ID names one of the four supported codecs.
type ID byte

const (
	None   = ID(0)
	Gzip   = ID(1)
	Snappy = ID(2)
	Lz4    = ID(3)
)

func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Snappy:
		return "snappy"
	case Lz4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", byte(id))
	}
}

// Codec is the capability set a compression variant must provide.
type Codec interface {
	// CompressBound returns an upper bound on the compressed size of an
	// input of n bytes, for pre-sizing scratch buffers.
	CompressBound(n int) int
	// Compress appends the compressed form of src to dst and returns the
	// extended slice.
	Compress(dst, src []byte, level int) ([]byte, error)
	// Decompress appends the decompressed form of src to dst and returns
	// the extended slice.
	Decompress(dst, src []byte) ([]byte, error)
	// ValidateLevel reports whether level is acceptable for this codec;
	// each variant has its own legal range.
	ValidateLevel(level int) bool
}

var table = map[ID]Codec{
	None:   noneCodec{},
	Gzip:   gzipCodec{},
	Snappy: snappyCodec{},
	Lz4:    lz4Codec{},
}

// ByID returns the Codec implementation for id, or (nil, false) if id is
// not one of the four supported variants — the caller maps that to a
// wire.UnknownCompression decode error.
func ByID(id ID) (Codec, bool) {
	c, ok := table[id]
	return c, ok
}
