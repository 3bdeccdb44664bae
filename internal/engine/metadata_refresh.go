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
	"net"
	"time"

	"github.com/dspeterson/dory/internal/dispatch"
	"github.com/dspeterson/dory/internal/streamio"
	"github.com/dspeterson/dory/internal/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type dialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// refreshRequest is one queued Metadata request: nil/empty Topics means a
// full cluster refresh, a single name means the autocreate probe of spec
// §4.4 step 6.
type refreshRequest struct {
	topics []string
	onDone func(*wire.MetadataResponse, error)
}

// metadataFetcher issues Metadata requests against the seed broker list,
// one at a time. It reuses dispatch's Connecting/Ready/Broken states and
// exponential pause, since a metadata connection is the same framed-TCP
// request/response cycle as a dispatcher's produce connection, just with
// at most one outstanding request and no in-flight table.
type metadataFetcher struct {
	log             *logrus.Logger
	dial            dialFunc
	dialTimeout     time.Duration
	maxResponseSize int
	clientID        string

	addrs   []string
	addrIdx int

	state        dispatch.State
	conn         net.Conn
	reader       *streamio.Reader
	connectPause *dispatch.Pause

	queue           []refreshRequest
	active          *refreshRequest
	nextCorrelation int32
}

func newMetadataFetcher(addrs []string, log *logrus.Logger, cfg Config) *metadataFetcher {
	return &metadataFetcher{
		log:             log,
		dial:            dialTCP,
		dialTimeout:     cfg.DialTimeout,
		maxResponseSize: cfg.MaxMetadataResponseSize,
		clientID:        cfg.ClientID,
		addrs:           addrs,
		state:           dispatch.Connecting,
		connectPause:    dispatch.NewPause(cfg.PauseMinDelay, cfg.PauseMaxDoublings, cfg.PauseQuiescent),
	}
}

func dialTCP(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// enqueue appends a new request to the back of the queue; topics == nil
// requests a full refresh.
func (f *metadataFetcher) enqueue(topics []string, onDone func(*wire.MetadataResponse, error)) {
	f.queue = append(f.queue, refreshRequest{topics: topics, onDone: onDone})
}

// Step advances the fetcher by one tick.
func (f *metadataFetcher) Step(now time.Time) {
	switch f.state {
	case dispatch.Connecting:
		f.stepConnecting(now)
	case dispatch.Ready:
		f.stepReady(now)
	case dispatch.Broken:
		if !f.connectPause.Active(now) {
			f.state = dispatch.Connecting
		}
	}
}

func (f *metadataFetcher) stepConnecting(now time.Time) {
	if len(f.queue) == 0 && f.active == nil {
		return // nothing queued; stay connection-less until there is
	}
	if f.connectPause.Active(now) {
		return
	}
	addr := f.addrs[f.addrIdx%len(f.addrs)]
	conn, err := f.dial("tcp", addr, f.dialTimeout)
	if err != nil {
		f.log.WithError(err).WithField("addr", addr).Warn("metadata connect failed")
		f.addrIdx++
		f.connectPause.Trigger(now)
		f.state = dispatch.Broken
		return
	}
	f.conn = conn
	f.reader = streamio.New(streamio.NewSizePrefixHook(false, f.maxResponseSize), 0)
	f.state = dispatch.Ready
}

func (f *metadataFetcher) stepReady(now time.Time) {
	if f.active == nil {
		if len(f.queue) == 0 {
			return
		}
		f.sendNext(now)
		return
	}
	f.readResponse(now)
}

func (f *metadataFetcher) sendNext(now time.Time) {
	req := f.queue[0]
	f.queue = f.queue[1:]
	f.nextCorrelation++

	wireReq := &wire.MetadataRequest{CorrelationID: f.nextCorrelation, ClientID: f.clientID, Topics: req.topics}
	if _, err := f.conn.Write(wireReq.Encode()); err != nil {
		f.log.WithError(err).Warn("metadata write failed")
		req.onDone(nil, err)
		f.handleConnLoss(now)
		return
	}
	f.active = &req
}

func (f *metadataFetcher) readResponse(now time.Time) {
	if f.conn == nil {
		return
	}
	f.conn.SetReadDeadline(time.Now())
	if err := f.reader.Read(f.conn); err != nil {
		f.failActive(err, now)
		return
	}

	switch f.reader.State() {
	case streamio.MsgReady:
		frame, err := f.reader.ConsumeReadyMsg()
		if err != nil {
			f.failActive(err, now)
			return
		}
		resp, err := wire.DecodeMetadataResponse(frame)
		active := f.active
		f.active = nil
		if err != nil {
			active.onDone(nil, err)
			return
		}
		active.onDone(resp, nil)
	case streamio.DataInvalid:
		f.failActive(errors.New("metadata: malformed response frame"), now)
	case streamio.AtEnd:
		f.failActive(errors.New("metadata: broker closed connection"), now)
	default: // ReadNeeded
	}
}

func (f *metadataFetcher) failActive(err error, now time.Time) {
	if f.active != nil {
		f.active.onDone(nil, err)
		f.active = nil
	}
	f.handleConnLoss(now)
}

func (f *metadataFetcher) handleConnLoss(now time.Time) {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.reader = nil
	f.addrIdx++
	f.connectPause.Trigger(now)
	f.state = dispatch.Broken
}
