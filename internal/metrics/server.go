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
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trivago/tgo"
)

// Server is a minimal scrape endpoint: every accepted connection gets
// one JSON dump of every registered metric, then the connection closes.
// This is gollum's shared.MetricServer (shared/metricserver.go) unchanged
// in shape — accept loop, one-shot dump-and-close per client, a 5-second
// retry if the listen address is unavailable at startup. running is an
// atomic.Bool because Start's accept loop and Stop are called from
// different goroutines (cmd/doryd runs Start in a dedicated goroutine
// and calls Stop from the main shutdown path).
type Server struct {
	log     *logrus.Logger
	running atomic.Bool
	listen  net.Listener
}

// NewServer wraps log for the retry-listen log line.
func NewServer(log *logrus.Logger) *Server {
	return &Server{log: log}
}

func (s *Server) handleRequest(conn net.Conn) {
	defer conn.Close()
	data, err := tgo.Metric.Dump()
	if err != nil {
		conn.Write([]byte(err.Error()))
	} else {
		conn.Write(data)
	}
	conn.Write([]byte{'\n'})
}

// Start listens on port and serves until Stop is called, retrying every
// 5 seconds if the initial listen fails (e.g. the port is still held by
// a previous instance during a restart).
func (s *Server) Start(port int) {
	if s.running.Load() {
		return
	}

	var err error
	s.listen, err = net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		s.log.WithError(err).Warn("metrics: listen failed, retrying")
		time.AfterFunc(5*time.Second, func() { s.Start(port) })
		return
	}

	s.running.Store(true)
	for s.running.Load() {
		client, err := s.listen.Accept()
		if err != nil {
			if s.running.Load() {
				s.log.WithError(err).Warn("metrics: accept failed")
			}
			return
		}
		go s.handleRequest(client)
	}
}

// Stop halts the accept loop and closes the listener.
func (s *Server) Stop() {
	s.running.Store(false)
	if s.listen != nil {
		if err := s.listen.Close(); err != nil {
			s.log.WithError(err).Warn("metrics: close failed")
		}
	}
}
