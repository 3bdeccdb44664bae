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

package engine

import (
	"time"

	"github.com/dspeterson/dory/internal/dispatch"
)

// Shutdown runs the engine's exit sequence (spec §4.6). A graceful
// shutdown drains the router's batchers and every dispatcher's queue,
// then keeps ticking (at the given poll interval, using the real wall
// clock) until every dispatcher goes idle or deadline elapses, whichever
// comes first; anything still outstanding once the deadline is hit is
// force-stopped and discarded as ServerShutdown. A fast shutdown skips
// straight to the force-stop.
func (e *Engine) Shutdown(graceful bool, deadline, tick time.Duration) {
	now := time.Now()
	e.router.Drain(now)
	for _, d := range e.dispatchers {
		d.Drain()
		e.retiring = append(e.retiring, d)
	}
	e.dispatchers = make(map[int32]*dispatch.Dispatcher)

	if graceful {
		deadlineAt := time.Now().Add(deadline)
		for time.Now().Before(deadlineAt) && !e.allIdle() {
			now := time.Now()
			snap := e.cache.Current()
			for _, d := range e.retiring {
				d := d
				Guard(e.log, "dispatcher.Step", func() { d.Step(snap, now) })
			}
			time.Sleep(tick)
		}
	}

	now = time.Now()
	for _, d := range e.retiring {
		d.Stop(now)
	}
	e.retiring = nil
}

func (e *Engine) allIdle() bool {
	for _, d := range e.retiring {
		if !d.Idle() {
			return false
		}
	}
	return true
}
