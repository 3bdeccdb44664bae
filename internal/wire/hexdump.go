// Copyright 2017 trivago GmbH
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
	"fmt"
	"strings"
)

// HexDump renders buf as an address-prefixed hex/ASCII dump, 8 bytes per
// line, the same shape as the original implementation's
// base/hex_dump_writer.{h,cc}. It is a standalone diagnostic helper: no
// decode path calls it, and decode-error log lines carry only the error.
func HexDump(buf []byte) string {
	const bytesPerLine = 8
	var b strings.Builder

	for addr := 0; addr < len(buf); addr += bytesPerLine {
		end := addr + bytesPerLine
		if end > len(buf) {
			end = len(buf)
		}
		line := buf[addr:end]

		fmt.Fprintf(&b, "%08x | ", addr)
		for i := 0; i < bytesPerLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString("| ")
		for _, by := range line {
			if by >= 0x20 && by < 0x7f {
				b.WriteByte(by)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}

	return b.String()
}
