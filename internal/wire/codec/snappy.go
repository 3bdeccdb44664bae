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

package codec

import "github.com/golang/snappy"

// snappyCodec backs compression attrs value 2. golang/snappy is the
// block (not streaming) codec, which matches Kafka's own historical
// xerial-framed snappy usage closely enough for a from-scratch v0 codec
// that always emits a single outer record per spec §4.1.
type snappyCodec struct{}

func (snappyCodec) CompressBound(n int) int {
	return snappy.MaxEncodedLen(n)
}

func (snappyCodec) Compress(dst, src []byte, level int) ([]byte, error) {
	encoded := snappy.Encode(nil, src)
	return append(dst, encoded...), nil
}

func (snappyCodec) Decompress(dst, src []byte) ([]byte, error) {
	decoded, err := snappy.Decode(nil, src)
	if err != nil {
		return dst, err
	}
	return append(dst, decoded...), nil
}

func (snappyCodec) ValidateLevel(level int) bool { return level == 0 }
