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

// Package logging sets up the structured logger every long-lived
// goroutine writes to. It follows gollum's core/log package in spirit
// (four verbosity tiers: Error, Warning, Note, Debug) but expresses them
// as logrus levels rather than gollum's own log.Logger-per-tier globals,
// since the rest of the module already speaks logrus.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Verbosity mirrors gollum's core/log.Verbosity: each tier is inclusive
// of the ones below it (Debug shows everything, Error shows only errors).
type Verbosity byte

const (
	VerbosityError Verbosity = iota
	VerbosityWarning
	VerbosityNote
	VerbosityDebug
)

// level maps a Verbosity tier to the logrus level it enables down to.
func (v Verbosity) level() logrus.Level {
	switch v {
	case VerbosityDebug:
		return logrus.DebugLevel
	case VerbosityNote:
		return logrus.InfoLevel
	case VerbosityWarning:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// New builds a logger with the prefixed console formatter gollum's
// coordinator.go wires (logger.NewConsoleFormatter in the teacher,
// x-cray/logrus-prefixed-formatter directly here), buffered via Buffer
// until the real output target — stderr, or a reopened log file per
// SIGUSR1 — is attached.
func New(verbosity Verbosity) (*logrus.Logger, *Buffer) {
	log := logrus.New()
	log.SetLevel(verbosity.level())

	formatter := &prefixed.TextFormatter{}
	formatter.FullTimestamp = true
	formatter.TimestampFormat = "2006-01-02 15:04:05.000"
	log.SetFormatter(formatter)

	buf := newBuffer()
	log.AddHook(buf)
	log.SetOutput(discardWriter{})

	return log, buf
}

// AttachStderr points buf's relay at os.Stderr and flushes anything
// Buffer has pooled since New. This is the initial target; Reopen can
// later retarget a file without dropping in-flight entries (spec §6
// SIGUSR1).
func AttachStderr(log *logrus.Logger, buf *Buffer) {
	buf.SetTarget(os.Stderr)
}

// discardWriter exists so logrus's own default os.Stderr output isn't
// also engaged before Buffer has a target to relay to; all actual writing
// happens through the hook.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Reopen closes the previous log file (if any) and reopens path for
// append, retargeting buf's relay at it. This implements spec §6's SIGUSR1
// behavior: "reopen log file", the daemon-side half of log rotation —
// an external tool renames the old file out of the way, then signals
// Dory to start writing a fresh one at the same path.
func Reopen(log *logrus.Logger, buf *Buffer, previous *os.File, path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return previous, err
	}
	buf.SetTarget(f)
	if previous != nil {
		previous.Close()
	}
	return f, nil
}
