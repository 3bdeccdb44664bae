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

	"github.com/dspeterson/dory/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightTableCorrelatesAndRemoves(t *testing.T) {
	tbl := NewInFlightTable()
	id := tbl.NextCorrelationID()
	groups := []router.RoutedGroup{{BrokerIndex: 0, Topic: "t"}}
	tbl.Add(id, groups, time.Unix(1000, 0))

	require.Equal(t, 1, tbl.Len())
	entry, ok := tbl.Take(id)
	require.True(t, ok)
	assert.Equal(t, groups, entry.Groups)
	assert.Equal(t, 0, tbl.Len())

	_, ok = tbl.Take(id)
	assert.False(t, ok, "a correlation id should not be found twice")
}

func TestInFlightTableCorrelationIDsAreMonotone(t *testing.T) {
	tbl := NewInFlightTable()
	a := tbl.NextCorrelationID()
	b := tbl.NextCorrelationID()
	assert.Less(t, a, b)
}

func TestInFlightTableTakeAllDrainsEverything(t *testing.T) {
	tbl := NewInFlightTable()
	id1 := tbl.NextCorrelationID()
	id2 := tbl.NextCorrelationID()
	tbl.Add(id1, nil, time.Unix(1000, 0))
	tbl.Add(id2, nil, time.Unix(1000, 0))

	all := tbl.TakeAll()
	assert.Len(t, all, 2)
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.TakeAll())
}
