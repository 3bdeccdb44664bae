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

package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Buffer is a logrus.Hook that pools entries fired before a real output
// target is attached, then relays every subsequent entry directly. This
// is gollum's LogrusHookBuffer (logbuffer.go) adapted: Dory needs the
// same "don't lose startup log lines while the config is still being
// parsed" behavior, but targets a single io.Writer rather than gollum's
// hook-or-writer pair, since Dory has no secondary structured sink.
type Buffer struct {
	mu     sync.Mutex
	target io.Writer
	pooled []*logrus.Entry
}

func newBuffer() *Buffer {
	return &Buffer{}
}

// Levels implements logrus.Hook.
func (b *Buffer) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook: pool the entry if no target is attached
// yet, otherwise relay it immediately.
func (b *Buffer) Fire(entry *logrus.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.target == nil {
		b.pooled = append(b.pooled, copyEntry(entry))
		return nil
	}
	return b.relay(entry)
}

// SetTarget attaches w as the relay target and flushes every pooled
// entry to it in arrival order. Calling SetTarget again (spec §6's
// SIGUSR1 "reopen log file") retargets subsequent entries without
// replaying history a second time.
func (b *Buffer) SetTarget(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.target = w
	pooled := b.pooled
	b.pooled = nil
	for _, entry := range pooled {
		_ = b.relay(entry)
	}
}

func (b *Buffer) relay(entry *logrus.Entry) error {
	serialized, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = b.target.Write(serialized)
	return err
}

// copyEntry takes a value copy so a pooled entry can't be mutated by the
// caller after Fire returns.
func copyEntry(entry *logrus.Entry) *logrus.Entry {
	cp := *entry
	return &cp
}
