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

package ingest

import (
	"net"
	"time"

	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/message"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/streamio"
	"github.com/sirupsen/logrus"
)

// TopicTracker is the subset of *engine.Engine a Listener needs: a way
// to register a topic as an autocreate-probe candidate the first time a
// message for it is seen (spec §4.4 step 6).
type TopicTracker interface {
	NoteTopic(topic string)
}

// Listener decodes local ingest frames off one connection and admits
// each one to a router. It is a reference implementation only — the
// real ingest daemon (datagram, stream, and TCP variants, spec §1) is an
// external collaborator; this is enough to drive the forwarding engine
// end to end in tests and as a worked example for a real listener.
type Listener struct {
	router       *router.Router
	pool         *message.Pool
	topics       TopicTracker
	sink         discard.Sink
	log          *logrus.Logger
	maxFrameSize int
}

// NewListener builds a Listener. maxFrameSize bounds a single frame's
// body (excluding the size field itself), rejecting anything larger as
// malformed rather than buffering it (spec §6 error handling).
func NewListener(r *router.Router, pool *message.Pool, topics TopicTracker, sink discard.Sink, log *logrus.Logger, maxFrameSize int) *Listener {
	return &Listener{router: r, pool: pool, topics: topics, sink: sink, log: log, maxFrameSize: maxFrameSize}
}

// ServeConn reads frames from conn, one per size-prefixed message (spec
// §4.5.2), admitting each decoded message to the router via now(). It
// returns when the peer closes the connection, a socket error occurs, or
// a frame fails to decode — per spec §7, "on stream sockets, disconnect
// client," so the caller should close conn on any non-nil return.
func (l *Listener) ServeConn(conn net.Conn, now func() time.Time) error {
	reader := streamio.New(streamio.NewSizePrefixHook(true, l.maxFrameSize), 4096)

	for {
		switch reader.State() {
		case streamio.MsgReady:
			frame, err := reader.ConsumeReadyMsg()
			if err != nil {
				return err
			}
			if err := l.handleFrame(frame, now()); err != nil {
				return err
			}

		case streamio.DataInvalid:
			l.sink.Record(discard.NewRecord("", discard.MalformedMessage, discard.NewIdentity(), now()))
			return ErrTruncated

		case streamio.AtEnd:
			return nil

		default: // ReadNeeded
			if err := reader.Read(conn); err != nil {
				return err
			}
		}
	}
}

// handleFrame decodes and admits one frame. A frame that fails to decode
// is recorded as a discard and its error returned, so ServeConn ends the
// connection.
func (l *Listener) handleFrame(frame []byte, now time.Time) error {
	msg, ok, err := Decode(frame, l.pool)
	if err != nil {
		l.log.WithError(err).Warn("ingest: dropping malformed frame")
		l.sink.Record(discard.NewRecord("", discard.MalformedMessage, discard.NewIdentity(), now))
		return err
	}
	if !ok {
		l.sink.Record(discard.NewRecord("", discard.NoBufferSpace, discard.NewIdentity(), now))
		return nil
	}

	l.topics.NoteTopic(msg.Topic)
	l.router.IngestOne(msg, now)
	return nil
}
