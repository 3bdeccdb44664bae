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

// gollum's flags.go wires github.com/docker/docker/pkg/mflag for its
// long/short-form flag pairs. Dory keeps the same flag surface
// (config/loglevel/metrics-port/pidfile/test-config) but uses the
// standard library's flag package: pulling in docker's mflag here would
// add an entire container-runtime dependency tree for a handful of
// string/int/bool flags, with no other component in this repo touching
// Docker at all.
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	flagConfigFile     = flag.String("config", "", "Use a given configuration file.")
	flagTestConfigFile = flag.String("testconfig", "", "Test a given configuration file and exit.")
	flagLoglevel       = flag.Int("loglevel", 0, "Set the loglevel [0-3]. Higher levels produce more messages.")
	flagMetricsPort    = flag.Int("metrics", 0, "Port to use for metric queries. Set 0 to disable.")
	flagPidFile        = flag.String("pidfile", "", "Write the process id into a given file.")
	flagVersion        = flag.Bool("version", false, "Print version information and quit.")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: doryd [OPTIONS]\n\nDory - a host-resident Kafka forwarding daemon.\n\nOptions:")
		flag.PrintDefaults()
	}
}

func parseFlags() {
	flag.Parse()
}
