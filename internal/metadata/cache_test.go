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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStartsWithEmptySnapshot(t *testing.T) {
	c := NewCache()
	require.NotNil(t, c.Current())
	assert.Empty(t, c.Current().Brokers())
}

func TestCacheSwapReturnsPrevious(t *testing.T) {
	c := NewCache()
	first := c.Current()

	b := NewBuilder(newTestLogger())
	require.NoError(t, b.CloseBrokerList())
	snap, err := b.Build()
	require.NoError(t, err)

	prev := c.Swap(snap)
	assert.Same(t, first, prev)
	assert.Same(t, snap, c.Current())
}
