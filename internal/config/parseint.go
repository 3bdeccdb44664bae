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

package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseSignedInt converts s to an int64, decimal only — mirroring
// original_source/src/base/to_integer.h's ToSigned<T>(), which accepts
// only decimal input for signed types. A leading "0" followed by other
// digits looks octal to a human reader but is rejected here exactly as
// the original does, rather than silently reinterpreted as base 8.
func ParseSignedInt(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("config: empty integer")
	}
	unsigned := strings.TrimPrefix(s, "-")
	if len(unsigned) > 1 && unsigned[0] == '0' {
		return 0, errors.Errorf("config: %q looks octal, signed values accept decimal only", s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %q is not a valid decimal integer", s)
	}
	return v, nil
}

// ParseUnsignedInt converts s to a uint64. base follows strconv.ParseUint
// conventions: 0 means "detect from prefix" (0x/0X hex, 0b/0B binary, a
// leading 0 octal, otherwise decimal), matching
// original_source/src/base/to_integer.h's ToUnsigned<T>(), which allows
// binary/octal/decimal/hexadecimal input. Unlike ParseSignedInt, a
// leading "0" here is a real, honored base prefix rather than a
// rejected look-alike.
func ParseUnsignedInt(s string, base int) (uint64, error) {
	if s == "" {
		return 0, errors.New("config: empty integer")
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "config: %q is not a valid unsigned integer", s)
	}
	return v, nil
}
