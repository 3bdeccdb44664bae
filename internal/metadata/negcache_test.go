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

package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutocreateBackoffBlocksImmediateRetry(t *testing.T) {
	b := NewAutocreateBackoff(16, time.Minute)
	now := time.Unix(1000, 0)

	assert.True(t, b.ShouldRetry("t", now))
	failures := b.RecordFailure("t", now)
	assert.Equal(t, 1, failures)

	assert.False(t, b.ShouldRetry("t", now.Add(time.Second)))
	assert.True(t, b.ShouldRetry("t", now.Add(2*time.Minute)))
}

func TestAutocreateBackoffAccumulatesFailures(t *testing.T) {
	b := NewAutocreateBackoff(16, 0)
	now := time.Unix(1000, 0)

	assert.Equal(t, 1, b.RecordFailure("t", now))
	assert.Equal(t, 2, b.RecordFailure("t", now))
	assert.Equal(t, 3, b.RecordFailure("t", now))
}

func TestAutocreateBackoffClearResetsState(t *testing.T) {
	b := NewAutocreateBackoff(16, time.Minute)
	now := time.Unix(1000, 0)

	b.RecordFailure("t", now)
	b.Clear("t")
	assert.True(t, b.ShouldRetry("t", now))
}
