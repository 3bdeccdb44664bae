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

package discard

import (
	"time"

	"github.com/google/uuid"
)

// Record is one discard entry, carrying exactly the fields spec §7
// requires: {topic, reason, timestamp, message_identity_bytes}. KafkaCode
// is only meaningful when Reason == KafkaErrorAck.
type Record struct {
	Topic     string
	Reason    Reason
	KafkaCode int16
	Timestamp time.Time
	Identity  []byte
}

// NewIdentity mints a message-identity token. The original implementation
// used the message's own serialized bytes for identity; Dory instead
// mints a random v4 UUID at admission time and carries it alongside the
// message, since key/value bytes may already be released back to the
// pool by the time a discard is recorded.
func NewIdentity() []byte {
	id := uuid.New()
	return id[:]
}

// NewRecord builds a discard record for topic with reason r, timestamped
// now and tagged with identity (as produced by NewIdentity at admission
// time).
func NewRecord(topic string, r Reason, identity []byte, now time.Time) Record {
	return Record{Topic: topic, Reason: r, Timestamp: now, Identity: identity}
}

// NewKafkaErrorRecord builds a discard record for a broker-reported
// per-partition error code.
func NewKafkaErrorRecord(topic string, code int16, identity []byte, now time.Time) Record {
	return Record{Topic: topic, Reason: KafkaErrorAck, KafkaCode: code, Timestamp: now, Identity: identity}
}
