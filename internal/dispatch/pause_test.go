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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPauseDoublesUpToMax(t *testing.T) {
	p := NewPause(10*time.Millisecond, 2, time.Hour)
	now := time.Unix(1000, 0)

	assert.Equal(t, 10*time.Millisecond, p.Trigger(now))
	assert.Equal(t, 20*time.Millisecond, p.Trigger(now))
	assert.Equal(t, 40*time.Millisecond, p.Trigger(now))
	// maxDoublings reached, delay no longer grows
	assert.Equal(t, 40*time.Millisecond, p.Trigger(now))
}

func TestPauseResetsAfterQuiescentPeriod(t *testing.T) {
	p := NewPause(10*time.Millisecond, 5, 100*time.Millisecond)
	now := time.Unix(1000, 0)

	p.Trigger(now)
	p.Trigger(now)
	assert.Equal(t, 40*time.Millisecond, p.Trigger(now))

	later := now.Add(time.Second)
	assert.Equal(t, 10*time.Millisecond, p.Trigger(later), "doubling count should reset after the quiescent period")
}

func TestPauseActive(t *testing.T) {
	p := NewPause(10*time.Millisecond, 1, time.Hour)
	now := time.Unix(1000, 0)
	p.Trigger(now)

	assert.True(t, p.Active(now.Add(time.Millisecond)))
	assert.False(t, p.Active(now.Add(time.Second)))
}
