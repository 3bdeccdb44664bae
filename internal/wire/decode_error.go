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

// Package wire implements Kafka Produce v0 and Metadata v0 wire framing:
// pure, allocation-light encode/decode with no I/O of its own (spec §4.1).
package wire

import "fmt"

// ErrorKind enumerates the decode-error taxonomy of spec §4.1.
type ErrorKind int

const (
	// TruncatedFrame means the buffer ended before a declared field could
	// be fully read.
	TruncatedFrame = ErrorKind(iota)
	// BadAPIKey means an unrecognized api_key was encountered.
	BadAPIKey
	// BadAPIVersion means an unsupported api_version was encountered.
	BadAPIVersion
	// BadCount means a negative or implausibly large count field.
	BadCount
	// BadLength means a negative (other than the -1 empty sentinel) or
	// out-of-bounds length field.
	BadLength
	// CrcMismatch means the recomputed CRC did not match the embedded
	// value.
	CrcMismatch
	// UnknownCompression means the attrs field named an unsupported
	// compression codec.
	UnknownCompression
)

func (k ErrorKind) String() string {
	switch k {
	case TruncatedFrame:
		return "TruncatedFrame"
	case BadAPIKey:
		return "BadApiKey"
	case BadAPIVersion:
		return "BadApiVersion"
	case BadCount:
		return "BadCount"
	case BadLength:
		return "BadLength"
	case CrcMismatch:
		return "CrcMismatch"
	case UnknownCompression:
		return "UnknownCompression"
	default:
		return "Unknown"
	}
}

// DecodeError is returned by every cursor/record decode operation that
// fails. It carries enough context (field name, byte offset) for a log
// line to be actionable without needing the raw buffer.
type DecodeError struct {
	Kind   ErrorKind
	Field  string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: %s decoding %q at offset %d", e.Kind, e.Field, e.Offset)
}

func newDecodeError(kind ErrorKind, field string, offset int) error {
	return &DecodeError{Kind: kind, Field: field, Offset: offset}
}
