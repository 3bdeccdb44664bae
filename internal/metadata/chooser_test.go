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
)

func TestChooserRotates(t *testing.T) {
	c := NewChooser()
	seen := []int{
		c.Next("t", 3),
		c.Next("t", 3),
		c.Next("t", 3),
		c.Next("t", 3),
	}
	assert.Equal(t, []int{0, 1, 2, 0}, seen)
}

func TestChooserKeysAreIndependent(t *testing.T) {
	c := NewChooser()
	assert.Equal(t, 0, c.Next("a", 2))
	assert.Equal(t, 0, c.Next("b", 2))
	assert.Equal(t, 1, c.Next("a", 2))
}

func TestChooserEmptyCandidateSet(t *testing.T) {
	c := NewChooser()
	assert.Equal(t, -1, c.Next("t", 0))
}

func TestHashPartitionIsStableForSameKey(t *testing.T) {
	partitions := []int32{0, 1, 2, 3}
	a := HashPartition([]byte("user-123"), partitions)
	b := HashPartition([]byte("user-123"), partitions)
	assert.Equal(t, a, b)
}

func TestHashPartitionEmptySet(t *testing.T) {
	assert.Equal(t, int32(-1), HashPartition([]byte("k"), nil))
}
