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

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

// lz4Codec backs compression attrs value 3, using the same lz4/v4
// package grafana-tempo depends on.
type lz4Codec struct{}

func (lz4Codec) CompressBound(n int) int {
	return lz4.CompressBlockBound(n)
}

func (lz4Codec) Compress(dst, src []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if level > 0 {
		_ = w.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(level)))
	}
	if _, err := w.Write(src); err != nil {
		return dst, err
	}
	if err := w.Close(); err != nil {
		return dst, err
	}
	return append(dst, buf.Bytes()...), nil
}

func (lz4Codec) Decompress(dst, src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	buf := bytes.NewBuffer(dst)
	if _, err := buf.ReadFrom(r); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) ValidateLevel(level int) bool {
	return level >= 0 && level <= 9
}
