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

package streamio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(selfInclusive bool, body []byte) []byte {
	size := len(body)
	if selfInclusive {
		size += 4
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(size))
	copy(out[4:], body)
	return out
}

func TestReaderConsumesOneFrame(t *testing.T) {
	r := New(NewSizePrefixHook(false, 0), 64)
	r.Feed(frame(false, []byte("hello")))

	require.Equal(t, MsgReady, r.State())
	msg, err := r.ConsumeReadyMsg()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg)
	assert.Equal(t, ReadNeeded, r.State())
}

func TestReaderPartialFrameStaysReadNeeded(t *testing.T) {
	r := New(NewSizePrefixHook(false, 0), 64)
	full := frame(false, []byte("hello"))
	r.Feed(full[:4]) // size field only
	assert.Equal(t, ReadNeeded, r.State())

	r.Feed(full[4:])
	assert.Equal(t, MsgReady, r.State())
}

func TestReaderSelfInclusiveSize(t *testing.T) {
	r := New(NewSizePrefixHook(true, 0), 64)
	r.Feed(frame(true, []byte("abc")))

	require.Equal(t, MsgReady, r.State())
	msg, err := r.ConsumeReadyMsg()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), msg)
}

func TestReaderRejectsNegativeSize(t *testing.T) {
	r := New(NewSizePrefixHook(false, 0), 64)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, 0x80000000)
	r.Feed(buf)
	assert.Equal(t, DataInvalid, r.State())
}

func TestReaderRejectsOversizedBody(t *testing.T) {
	r := New(NewSizePrefixHook(false, 4), 64)
	r.Feed(frame(false, []byte("too-long")))
	assert.Equal(t, DataInvalid, r.State())
}

func TestReaderHandlesTwoFramesBackToBack(t *testing.T) {
	r := New(NewSizePrefixHook(false, 0), 64)
	r.Feed(append(frame(false, []byte("one")), frame(false, []byte("two"))...))

	msg1, err := r.ConsumeReadyMsg()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), msg1)

	require.Equal(t, MsgReady, r.State(), "the second frame should already be buffered and ready")
	msg2, err := r.ConsumeReadyMsg()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), msg2)
}

func TestConsumeReadyMsgOutsideMsgReadyErrors(t *testing.T) {
	r := New(NewSizePrefixHook(false, 0), 64)
	_, err := r.ConsumeReadyMsg()
	assert.Error(t, err)
}
