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

package dispatch

import "time"

// Pause implements the exponential pause/backoff policy shared by spec
// §4.5 step 7 (repeated-error rate limiting) and the Connecting→Broken
// reconnect backoff: start at a minimum delay, double each successive
// trigger up to a bounded number of doublings, then reset once a
// quiescent period has elapsed without a new trigger.
type Pause struct {
	minDelay     time.Duration
	maxDoublings int
	quiescent    time.Duration

	doublings int
	until     time.Time
}

// NewPause builds a pause tracker. maxDoublings bounds how many times the
// delay is doubled past minDelay (pause_rate_limit_max_double); quiescent
// is how long the trigger must go unused before the doubling count resets
// (pause_rate_limit_initial).
func NewPause(minDelay time.Duration, maxDoublings int, quiescent time.Duration) *Pause {
	return &Pause{minDelay: minDelay, maxDoublings: maxDoublings, quiescent: quiescent}
}

// Trigger records a new pause-worthy event at now and returns how long
// the caller should pause for.
func (p *Pause) Trigger(now time.Time) time.Duration {
	if !p.until.IsZero() && p.quiescent > 0 && now.Sub(p.until) >= p.quiescent {
		p.doublings = 0
	}

	delay := p.minDelay << uint(p.doublings)
	if p.doublings < p.maxDoublings {
		p.doublings++
	}
	p.until = now.Add(delay)
	return delay
}

// Active reports whether now is still within a previously triggered
// pause window.
func (p *Pause) Active(now time.Time) bool {
	return now.Before(p.until)
}
