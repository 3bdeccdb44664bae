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
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink receives discard records as they happen. Spec §6 calls the actual
// discard log an external collaborator ("persisted state: discard log is
// append-only, one record per discard"); Dory defines the append point
// as this interface so the engine can be wired to whatever collaborator
// a deployment provides, with a logging-only implementation as the
// built-in default.
type Sink interface {
	Record(r Record)
}

// LogSink writes every discard record as a structured log line. It is
// the Sink cmd/doryd wires into the router.
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink wraps log as a Sink.
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

// Record implements Sink.
func (s *LogSink) Record(r Record) {
	entry := s.log.WithFields(logrus.Fields{
		"topic":     r.Topic,
		"reason":    r.Reason.String(),
		"timestamp": r.Timestamp,
	})
	if r.Reason == KafkaErrorAck {
		entry = entry.WithField("kafka_error_code", r.KafkaCode)
	}
	entry.Warn("message discarded")
}

// MemorySink accumulates records in a slice, guarded by a mutex since
// multiple dispatchers and the router may all discard concurrently.
// Used by tests to inspect recorded discards in-process.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements Sink.
func (s *MemorySink) Record(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// All returns a copy of every record recorded so far.
func (s *MemorySink) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns how many records of reason r have been recorded.
func (s *MemorySink) Count(r Reason) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.Reason == r {
			n++
		}
	}
	return n
}
