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

package metrics

import (
	"sync"
	"testing"

	"github.com/dspeterson/dory/internal/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trivago/tgo"
)

// initOnce guards Init, since tgo.Metric is a process-global registry and
// every test in this package shares it.
var initOnce sync.Once

func ensureInit() {
	initOnce.Do(Init)
}

func TestCountRoutedIncrementsMetric(t *testing.T) {
	ensureInit()
	before, err := tgo.Metric.Get(MetricMessagesRouted)
	require.NoError(t, err)

	CountRouted()

	after, err := tgo.Metric.Get(MetricMessagesRouted)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestCountDiscardedIncrementsTotalAndReason(t *testing.T) {
	ensureInit()
	beforeTotal, err := tgo.Metric.Get(MetricMessagesDiscarded)
	require.NoError(t, err)
	beforeReason, err := tgo.Metric.Get(discardReasonMetrics[discard.NoBufferSpace])
	require.NoError(t, err)

	CountDiscarded(discard.NoBufferSpace)

	afterTotal, err := tgo.Metric.Get(MetricMessagesDiscarded)
	require.NoError(t, err)
	afterReason, err := tgo.Metric.Get(discardReasonMetrics[discard.NoBufferSpace])
	require.NoError(t, err)

	assert.Equal(t, beforeTotal+1, afterTotal)
	assert.Equal(t, beforeReason+1, afterReason)
}

func TestSetPoolUsageRecordsBothValues(t *testing.T) {
	ensureInit()
	SetPoolUsage(7, 100)

	inUse, err := tgo.Metric.Get(MetricPoolInUse)
	require.NoError(t, err)
	cap, err := tgo.Metric.Get(MetricPoolCapacity)
	require.NoError(t, err)

	assert.EqualValues(t, 7, inUse)
	assert.EqualValues(t, 100, cap)
}
