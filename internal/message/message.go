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

// Package message defines the unit of work that flows through the
// forwarding engine: an admitted application message, its pool-backed
// storage, and the routing decision attached to it at ingest time.
package message

import "fmt"

// RoutingKind selects how a message's partition is chosen.
type RoutingKind uint8

const (
	// AnyPartition lets the dispatcher pick a partition, rotating
	// round-robin once per produce request.
	AnyPartition = RoutingKind(iota)
	// PartitionKey hashes a caller-supplied key modulo the topic's
	// routable partition count.
	PartitionKey
)

// State tracks where in its lifetime a message currently is. A message
// occupies exactly one state at a time (spec §3 invariants).
type State int

const (
	// StateRouterOwned means the router holds the message, either in the
	// ingest drain or the per-topic batcher.
	StateRouterOwned = State(iota)
	// StateQueuedForBroker means the message sits in a per-broker send
	// queue, not yet part of an outstanding request.
	StateQueuedForBroker
	// StateInFlight means the message is part of a sent, unacknowledged
	// produce request.
	StateInFlight
	// StateAcked means the broker confirmed delivery.
	StateAcked
	// StateDiscarded means the message was dropped with a reason.
	StateDiscarded
)

// Message is a single admitted application message. It is immutable once
// constructed; the only mutable field is the state, which exists purely
// for invariant bookkeeping and is not read by the forwarding logic
// itself (routing and delivery decisions are driven by which queue/map a
// message currently lives in, not by this field).
type Message struct {
	Topic       string
	Timestamp   int64 // milliseconds since epoch
	Key         *Handle
	Value       *Handle
	Routing     RoutingKind
	PartitionID uint32 // meaningful only when Routing == PartitionKey
	state       State

	// AttemptCount is the number of times this message has been handed to
	// a dispatcher and failed with a retriable error. The router and
	// dispatcher both consult this against maxFailedDeliveryAttempts.
	AttemptCount int

	// Identity is an opaque token minted at admission time (see
	// discard.NewIdentity), carried independently of Key/Value so a
	// discard record can still name the message after its pool-backed
	// storage has been released.
	Identity []byte
}

// KeyBytes returns the key payload, or nil if the handle is nil (an empty
// key is represented by a non-nil handle of length 0; a nil key by a nil
// handle — both are legal per spec §3).
func (m *Message) KeyBytes() []byte {
	if m.Key == nil {
		return nil
	}
	return m.Key.Bytes()
}

// ValueBytes mirrors KeyBytes for the value payload.
func (m *Message) ValueBytes() []byte {
	if m.Value == nil {
		return nil
	}
	return m.Value.Bytes()
}

// ByteSize returns the accounting size of this message as defined by
// spec §4.2: max(1, key_len+value_len), so an entirely empty message
// still counts as 1 byte against batch byte limits.
func (m *Message) ByteSize() int {
	size := len(m.KeyBytes()) + len(m.ValueBytes())
	if size < 1 {
		return 1
	}
	return size
}

// State returns the current lifecycle state.
func (m *Message) State() State { return m.state }

// SetState transitions the message to a new lifecycle state. Callers are
// expected to also move the message between the owning data structures in
// the same step; SetState on its own does not enforce the single-owner
// invariant, it only records it for diagnostics.
func (m *Message) SetState(s State) { m.state = s }

// Release returns the message's key/value storage to the pool it was
// allocated from. After Release the message must not be used again.
func (m *Message) Release() {
	if m.Key != nil {
		m.Key.Release()
		m.Key = nil
	}
	if m.Value != nil {
		m.Value.Release()
		m.Value = nil
	}
}

func (s State) String() string {
	switch s {
	case StateRouterOwned:
		return "router-owned"
	case StateQueuedForBroker:
		return "queued"
	case StateInFlight:
		return "in-flight"
	case StateAcked:
		return "acked"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
