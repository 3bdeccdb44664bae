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

// Command doryd is the host-resident forwarding daemon itself: it loads
// a configuration document, wires a router and engine around it, and
// drives both from a single goroutine that multiplexes accepting new
// ingest connections, reading frames off the ones already open, and
// ticking the engine's metadata/dispatch cycle (spec §5's single-owner
// concurrency model). gollum's main.go runs the analogous wiring
// (ReadConfig, pidfile, profiling, metrics server, then
// newMultiplexer(config).run()) but hands each consumer its own
// goroutine; Dory's router and engine are not safe for concurrent Tick
// calls, so everything that touches them happens on this one goroutine
// instead.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dspeterson/dory/internal/config"
	"github.com/dspeterson/dory/internal/logging"
	"github.com/dspeterson/dory/internal/metrics"
)

// version is set by the release build's -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	parseFlags()

	if *flagVersion {
		fmt.Println("Dory version", version)
		return
	}

	path := *flagConfigFile
	testOnly := false
	if *flagTestConfigFile != "" {
		path = *flagTestConfigFile
		testOnly = true
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "doryd: -config is required")
		os.Exit(1)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "doryd: config error:", err)
		os.Exit(1)
	}
	if testOnly {
		fmt.Println("OK")
		return
	}

	log, buf := logging.New(logging.Verbosity(*flagLoglevel))
	logging.AttachStderr(log, buf)

	if *flagPidFile != "" {
		if err := writePidFile(*flagPidFile); err != nil {
			log.WithError(err).Error("doryd: could not write pidfile")
		}
	}

	metrics.Init()
	var metricsServer *metrics.Server
	if *flagMetricsPort != 0 {
		metricsServer = metrics.NewServer(log)
		go metricsServer.Start(*flagMetricsPort)
	}

	d, err := newDaemon(cfg, log)
	if err != nil {
		log.WithError(err).Error("doryd: startup failed")
		os.Exit(1)
	}
	defer d.listener.Close()

	log.Info("doryd: running")
	d.run()

	if metricsServer != nil {
		metricsServer.Stop()
	}
	if *flagPidFile != "" {
		os.Remove(*flagPidFile)
	}
	log.Info("doryd: stopped")
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// deadlineListener is the subset of net.Listener's concrete
// implementations (*net.TCPListener, *net.UnixListener) that let Accept
// be polled non-blockingly, the same way streamio.Reader.Read polls a
// connection. net.Listener itself does not declare SetDeadline.
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

func listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		os.Remove(address)
	}
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	if _, ok := l.(deadlineListener); !ok {
		return nil, fmt.Errorf("doryd: listener for network %q does not support non-blocking accept", network)
	}
	return l, nil
}

// conn is one open ingest connection: its net.Conn plus the framing
// state streamio.Reader tracks for it (spec §4.5.2).
type conn struct {
	c      net.Conn
	reader *streamReader
}

func (d *daemon) acceptNew() {
	dl := d.listener.(deadlineListener)
	dl.SetDeadline(time.Now().Add(pollInterval))
	c, err := dl.Accept()
	if err != nil {
		return // timeout (poll miss) or transient accept error; try again next loop
	}
	d.conns = append(d.conns, &conn{c: c, reader: newStreamReader()})
}
