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

import "github.com/dspeterson/dory/internal/wire/codec"

// EncodeCompressedMessageSet compresses the already-serialized inner
// message set and wraps it in a single outer record, per spec §4.1: the
// outer record has an empty key, a value holding the compressed bytes,
// and attrs naming the codec.
func EncodeCompressedMessageSet(dst []byte, inner []byte, c codec.ID, level int) ([]byte, error) {
	impl, ok := codec.ByID(c)
	if !ok {
		return nil, newDecodeError(UnknownCompression, "attrs.compression", 0)
	}

	compressed, err := impl.Compress(make([]byte, 0, impl.CompressBound(len(inner))), inner, level)
	if err != nil {
		return nil, err
	}

	return EncodeRecord(dst, 0, 0, byte(c), nil, compressed), nil
}

// DecodeMessageSetRecursive decodes a message set, transparently
// expanding a compressed outer record into its inner records. Per spec
// §4.1, a compressed record must be the sole record of its set and must
// carry an empty key; either violation is reported as UnknownCompression
// since both denote a malformed compressed message set.
func DecodeMessageSetRecursive(buf []byte) ([]*Record, error) {
	records, err := DecodeMessageSet(buf)
	if err != nil {
		return nil, err
	}

	if len(records) == 1 && records[0].Compression() != CompressionNone {
		rec := records[0]
		if rec.Key != nil {
			return nil, newDecodeError(UnknownCompression, "compressed.key", 0)
		}
		impl, ok := codec.ByID(codec.ID(rec.Compression()))
		if !ok {
			return nil, newDecodeError(UnknownCompression, "attrs.compression", 0)
		}
		inner, err := impl.Decompress(nil, rec.Value)
		if err != nil {
			return nil, err
		}
		return DecodeMessageSet(inner)
	}

	// A multi-record set must not contain any compressed record: that
	// would mean a compressed record was not the sole member of its set.
	for _, rec := range records {
		if rec.Compression() != CompressionNone {
			return nil, newDecodeError(UnknownCompression, "compressed.not-sole", 0)
		}
	}
	return records, nil
}
