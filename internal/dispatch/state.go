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

// Package dispatch implements the per-broker worker of spec §4.5: one
// state machine per in-service broker, an in-flight correlation table,
// and the produce-request factory that serializes and (optionally)
// compresses pending batches.
package dispatch

import "fmt"

// State is one node of the per-broker FSM described by spec §4.5's
// state table. Source inheritance hierarchies for dispatcher/worker
// variants collapse to this single tagged field, per spec §9.
type State int

const (
	// Connecting: a TCP connect is in flight.
	Connecting State = iota
	// Ready: connected, serving produce requests.
	Ready
	// Draining: shutting down gracefully; reject new input, flush and
	// await acks.
	Draining
	// Broken: socket closed after a failure, waiting out a backoff timer.
	Broken
	// Stopping: terminal; emit the no-ack queue as discards, drop
	// anything else.
	Stopping
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	case Broken:
		return "broken"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
