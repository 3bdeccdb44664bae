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

// Package engine wires the router, the metadata refresh cycle, and the
// per-broker dispatchers into the single poll loop cmd/doryd drives, and
// implements the graceful/fast shutdown sequences of spec §4.6.
package engine

import (
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Guard recovers a panic inside fn and logs it with a stack trace rather
// than crashing the process. This generalizes shared.RecoverShutdown,
// which sent the whole multiplexer an interrupt on any panic; Dory's
// poll loop instead isolates the failing component so a bug in, say,
// one dispatcher's response handling does not stop delivery to every
// other broker.
func Guard(log *logrus.Logger, component string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"component": component,
				"stack":     string(debug.Stack()),
			}).Error(errors.Errorf("recovered panic: %v", r))
		}
	}()
	fn()
}
