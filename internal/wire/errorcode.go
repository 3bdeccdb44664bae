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

// Disposition classifies how the dispatcher should react to a
// per-partition error code carried in a Produce response (spec §4.5
// step 6).
type Disposition int

const (
	// DispositionAck means the partition result should be treated as a
	// success and the sub-batch released.
	DispositionAck = Disposition(iota)
	// DispositionRetriable means the sub-batch should be re-queued at
	// the router and a metadata refresh should be signaled.
	DispositionRetriable
	// DispositionPermanent means the sub-batch should be discarded with
	// the error code's name as the reason, after incrementing its
	// attempt counter.
	DispositionPermanent
	// DispositionUnknown covers any code not in the documented table:
	// treated as retriable up to the attempt limit, per spec §4.5.
	DispositionUnknown
)

// KafkaErrorInfo names and describes one Kafka wire error code, mirrored
// from the original implementation's error-code table
// (kafka_proto/kafka_error_code.cc) so operators get the same
// human-readable strings in Dory's discard log that the original
// produced.
type KafkaErrorInfo struct {
	Name        string
	Description string
}

var undocumentedError = KafkaErrorInfo{
	Name:        "undocumented error",
	Description: "No information about this error is available. See https://kafka.apache.org/protocol for the latest information on Kafka error codes.",
}

var unknownServerError = KafkaErrorInfo{
	Name:        "unknown",
	Description: "Kafka experienced an unexpected error when processing the request.",
}

var errorInfoTable = []KafkaErrorInfo{
	{"none", "Success (no error occurred)."},
	{"offset out of range", "The requested offset is not within the range of offsets maintained by Kafka."},
	{"corrupt message", "This message has failed its CRC checksum, exceeds the valid size, or is otherwise corrupt."},
	{"unknown topic or partition", "This broker does not host this topic-partition."},
	{"invalid fetch size", "The requested fetch size is invalid."},
	{"leader not available", "There is no leader for this topic-partition as we are in the middle of a leadership election."},
	{"not leader for partition", "This broker is not the leader for that topic-partition."},
	{"request timed out", "The request timed out."},
	{"broker not available", "The broker is not available."},
	{"replica not available", "The replica is not available for the requested topic-partition."},
	{"message too large", "The request included a message larger than the max message size the broker will accept."},
	{"stale controller epoch", "The controller moved to another broker."},
	{"offset metadata too large", "The metadata field of the offset request was too large."},
	{"network exception", "The server disconnected before a response was received."},
	{"group load in progress", "The coordinator is loading and hence can't process requests for this group."},
	{"group coordinator not available", "The group coordinator is not available."},
	{"not coordinator for group", "This is not the correct coordinator for this group."},
	{"invalid topic exception", "The request attempted to perform an operation on an invalid topic."},
	{"record list too large", "The request included message batch larger than the configured segment size on the broker."},
	{"not enough replicas", "Messages are rejected since there are fewer in-sync replicas than required."},
	{"not enough replicas after append", "Messages are written to the log, but to fewer in-sync replicas than required."},
	{"invalid required ACKs", "Produce request specified an invalid value for required ACKs."},
}

// Kafka v0 error codes the dispatcher's response handling (spec §4.5
// step 6) branches on by name.
const (
	ErrNone                    = int16(0)
	ErrOffsetOutOfRange        = int16(1)
	ErrCorruptMessage          = int16(2)
	ErrUnknownTopicOrPartition = int16(3)
	ErrLeaderNotAvailable      = int16(5)
	ErrNotLeaderForPartition   = int16(6)
	ErrRequestTimedOut         = int16(7)
	ErrBrokerNotAvailable      = int16(8)
	ErrReplicaNotAvailable     = int16(9)
	ErrMessageTooLarge         = int16(10)
	ErrNetworkException        = int16(13)
	ErrInvalidTopicException   = int16(17)
	ErrRecordListTooLarge      = int16(18)
	ErrTopicAuthorizationFailed = int16(29)
)

// LookupKafkaErrorCode returns the name/description pair for code,
// falling back to an "undocumented error" entry for anything outside the
// known table (mirrors kafka_error_code.cc's LookupKafkaErrorCode).
func LookupKafkaErrorCode(code int16) KafkaErrorInfo {
	if code < 0 {
		return undocumentedError
	}
	if int(code) >= len(errorInfoTable) {
		return undocumentedError
	}
	return errorInfoTable[code]
}

// ClassifyProduceError maps a per-partition error code to the
// disposition the dispatcher should act on, per spec §4.5 step 6.
func ClassifyProduceError(code int16) Disposition {
	switch code {
	case ErrNone, ErrReplicaNotAvailable:
		return DispositionAck
	case ErrNotLeaderForPartition, ErrLeaderNotAvailable, ErrBrokerNotAvailable,
		ErrNetworkException, ErrRequestTimedOut:
		return DispositionRetriable
	case ErrMessageTooLarge, ErrInvalidTopicException, ErrTopicAuthorizationFailed,
		ErrRecordListTooLarge:
		return DispositionPermanent
	default:
		return DispositionUnknown
	}
}
