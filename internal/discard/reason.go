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

// Package discard defines why a message was dropped and carries it to an
// append-only sink, per spec §7: "every discard is reported with
// {topic, reason, timestamp, message_identity_bytes}".
package discard

import "fmt"

// Reason enumerates why a message left the system without being
// acknowledged. The base set is the one spec §4.4 enumerates explicitly;
// NoBufferSpace (pool exhaustion, spec §7) and MalformedMessage (a
// decode error on ingest, spec §7 scenario 5) are carried alongside it
// since both are named discard outcomes in the error-handling section
// even though they sit outside the router's own enumeration.
type Reason int

const (
	// NoAvailablePartition means the target topic currently has no
	// routable partition and autocreate is disabled, not configured, or
	// has not yet succeeded.
	NoAvailablePartition Reason = iota
	// TopicTooLarge means a batch for this topic could not be serialized
	// within produce_request_data_limit even alone.
	TopicTooLarge
	// MsgTooLarge means a single message exceeds message_max_bytes.
	MsgTooLarge
	// RateLimit means the topic's configured rate limit rejected this
	// message.
	RateLimit
	// KafkaErrorAck means a broker returned a permanent per-partition
	// error code acknowledging the produce attempt as failed.
	KafkaErrorAck
	// FailedDeliveryAttemptLimit means the message was retried
	// max_failed_delivery_attempts times without success.
	FailedDeliveryAttemptLimit
	// Bug means an internal invariant was violated; per spec §7 this
	// reason accompanies a process abort, it is not a recoverable
	// discard path.
	Bug
	// ServerShutdown means the message was still unacknowledged when the
	// shutdown deadline elapsed.
	ServerShutdown
	// NoBufferSpace means the pool had no free block to admit this
	// message (spec §7).
	NoBufferSpace
	// MalformedMessage means the ingest frame itself could not be
	// decoded (spec §7 scenario 5).
	MalformedMessage
)

func (r Reason) String() string {
	switch r {
	case NoAvailablePartition:
		return "no_available_partition"
	case TopicTooLarge:
		return "topic_too_large"
	case MsgTooLarge:
		return "msg_too_large"
	case RateLimit:
		return "rate_limit"
	case KafkaErrorAck:
		return "kafka_error_ack"
	case FailedDeliveryAttemptLimit:
		return "failed_delivery_attempt_limit"
	case Bug:
		return "bug"
	case ServerShutdown:
		return "server_shutdown"
	case NoBufferSpace:
		return "no_buffer_space"
	case MalformedMessage:
		return "malformed_message"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}
