// Copyright 2015-2016 trivago GmbH
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

//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

type signalType int

const (
	signalNone signalType = iota
	signalShutdown
	signalReopenLog
)

func newSignalHandler() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	return ch
}

// translateSignal maps an OS signal onto Dory's two signal kinds (spec
// §6): SIGINT/SIGTERM start graceful shutdown, SIGUSR1 maps to
// signalReopenLog. The daemon logs to stderr only, so on signalReopenLog
// it logs a warning and does not reopen any file. gollum's own
// translateSignal (signal_unix.go)
// additionally maps SIGHUP to a config-reload signal; spec §6 does not
// name a reload signal for Dory, so it is not carried forward.
func translateSignal(sig os.Signal) signalType {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		return signalShutdown
	case syscall.SIGUSR1:
		return signalReopenLog
	default:
		return signalNone
	}
}
