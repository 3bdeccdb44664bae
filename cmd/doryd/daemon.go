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

package main

import (
	"net"
	"time"

	"github.com/dspeterson/dory/internal/config"
	"github.com/dspeterson/dory/internal/discard"
	"github.com/dspeterson/dory/internal/engine"
	"github.com/dspeterson/dory/internal/ingest"
	"github.com/dspeterson/dory/internal/message"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/streamio"
	"github.com/sirupsen/logrus"
)

// pollInterval bounds how long acceptNew and each open connection's read
// block waiting for data before the main loop moves on to the next
// multiplexed task. engineTick is how often the engine's metadata/
// dispatch cycle runs regardless of ingest activity. Neither is a
// configuration-document knob (spec §6 is silent on main-loop cadence);
// both are small enough that the loop is responsive without spinning.
const (
	pollInterval = 20 * time.Millisecond
	engineTick   = 100 * time.Millisecond
	readChunk    = 4096
	maxFrameSize = 1 << 20
)

// streamReader pairs one connection's streamio.Reader with the frame
// decoder, so the main loop can poll many connections round-robin
// without blocking on any single one (spec §5: the router and engine
// are single-owner, so nothing here may hand a connection its own
// goroutine).
type streamReader struct {
	r *streamio.Reader
}

func newStreamReader() *streamReader {
	return &streamReader{r: streamio.New(streamio.NewSizePrefixHook(true, maxFrameSize), readChunk)}
}

// daemon holds everything the main loop multiplexes: the ingest
// listener, the open connections still being read, and the router/engine
// pair that owns all admitted messages from here on.
type daemon struct {
	log *logrus.Logger

	listener net.Listener
	conns    []*conn

	pool   *message.Pool
	cache  *metadata.Cache
	sink   discard.Sink
	router *router.Router
	engine *engine.Engine

	shutdownDelay time.Duration
	stop          chan struct{}
}

func newDaemon(cfg *config.Config, log *logrus.Logger) (*daemon, error) {
	l, err := listen(cfg.Engine.ListenNetwork, cfg.Engine.ListenAddress)
	if err != nil {
		return nil, err
	}

	pool := message.NewPool(cfg.Engine.PoolBlockSize, cfg.Engine.PoolBlockCount)
	cache := metadata.NewCache()
	sink := discard.NewLogSink(log)

	r := router.New(cfg.BuildRouterConfig(), log, cache, cfg.BuildTopicBatcher(), cfg.BuildCombinedBatcher(), cfg.BuildRateLimiter(), cfg.BuildAutocreateBackoff(), sink)
	e := engine.New(cfg.BuildEngineConfig(), log, r, cache)

	shutdownDelay := time.Duration(cfg.Engine.ShutdownMaxDelayMs) * time.Millisecond

	return &daemon{
		log:           log,
		listener:      l,
		pool:          pool,
		cache:         cache,
		sink:          sink,
		router:        r,
		engine:        e,
		shutdownDelay: shutdownDelay,
		stop:          make(chan struct{}),
	}, nil
}

// run is the single-goroutine multiplexed loop: accept, read each open
// connection's ready frames, tick the engine, repeat. It returns once
// stop is signaled and the engine's graceful shutdown sequence (spec
// §4.6) completes.
func (d *daemon) run() {
	sigCh := newSignalHandler()
	nextTick := time.Now().Add(engineTick)

	for {
		select {
		case <-d.stop:
			d.shutdown(true)
			return
		case sig := <-sigCh:
			switch translateSignal(sig) {
			case signalShutdown:
				d.shutdown(true)
				return
			case signalReopenLog:
				d.log.Warn("doryd: reopen-log signal not wired to a log file target (stderr only)")
			}
		default:
		}

		d.acceptNew()
		d.readOpenConns()

		now := time.Now()
		if !now.Before(nextTick) {
			d.engine.Tick(now)
			nextTick = now.Add(engineTick)
		}
	}
}

// readOpenConns polls every open connection once for newly arrived
// bytes, decodes any frames that became ready, and drops connections
// that hit EOF or a protocol error (spec §7: "on stream sockets,
// disconnect client").
func (d *daemon) readOpenConns() {
	live := d.conns[:0]
	for _, c := range d.conns {
		if d.serviceConn(c) {
			live = append(live, c)
		} else {
			c.c.Close()
		}
	}
	d.conns = live
}

// serviceConn drains every frame already buffered, then performs one
// non-blocking read to pull in more. It returns false once the
// connection should be torn down.
func (d *daemon) serviceConn(c *conn) bool {
	now := time.Now()
	for {
		switch c.reader.r.State() {
		case streamio.MsgReady:
			frame, err := c.reader.r.ConsumeReadyMsg()
			if err != nil {
				return false
			}
			if !d.handleFrame(frame, now) {
				return false
			}

		case streamio.DataInvalid:
			d.sink.Record(discard.NewRecord("", discard.MalformedMessage, discard.NewIdentity(), now))
			return false

		case streamio.AtEnd:
			return false

		default: // ReadNeeded
			c.c.SetReadDeadline(time.Now().Add(pollInterval))
			if err := c.reader.r.Read(c.c); err != nil {
				return false
			}
			return true // one read attempt per loop iteration; ready frames drain next pass
		}
	}
}

// handleFrame decodes and admits one frame. It returns false for a frame
// that fails to decode, after recording its discard, so the caller drops
// the connection.
func (d *daemon) handleFrame(frame []byte, now time.Time) bool {
	msg, ok, err := ingest.Decode(frame, d.pool)
	if err != nil {
		d.log.WithError(err).Warn("doryd: dropping malformed frame")
		d.sink.Record(discard.NewRecord("", discard.MalformedMessage, discard.NewIdentity(), now))
		return false
	}
	if !ok {
		d.sink.Record(discard.NewRecord("", discard.NoBufferSpace, discard.NewIdentity(), now))
		return true
	}

	d.engine.NoteTopic(msg.Topic)
	d.router.IngestOne(msg, now)
	return true
}

// shutdown runs the engine's drain-then-force-stop sequence (spec §4.6)
// and closes every still-open ingest connection.
func (d *daemon) shutdown(graceful bool) {
	d.log.Info("doryd: shutting down")
	d.engine.Shutdown(graceful, d.shutdownDelay, engineTick)
	for _, c := range d.conns {
		c.c.Close()
	}
	d.conns = nil
}
