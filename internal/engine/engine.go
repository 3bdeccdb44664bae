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
	"time"

	"github.com/dspeterson/dory/internal/dispatch"
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/wire"
	"github.com/sirupsen/logrus"
)

// Config bounds everything the engine needs beyond the router and cache
// it is handed at construction: the seed broker list for metadata
// refresh, the refresh cadence, and the per-dispatcher settings applied
// uniformly to every broker the cluster reports.
type Config struct {
	SeedBrokers             []string
	MetadataRefreshInterval time.Duration
	MaxMetadataResponseSize int
	DialTimeout             time.Duration
	ClientID                string

	PauseMinDelay     time.Duration
	PauseMaxDoublings int
	PauseQuiescent    time.Duration

	Dispatcher  dispatch.Config
	Compression dispatch.CompressionPolicy
}

// Engine owns the metadata refresh cycle and the set of per-broker
// dispatchers, driving all of it from repeated Tick calls (spec §4.6).
// Like the router and every dispatcher, it is single-owner: Tick must
// only ever be called from one goroutine.
type Engine struct {
	cfg    Config
	log    *logrus.Logger
	router *router.Router
	cache  *metadata.Cache

	fetcher *metadataFetcher

	dispatchers map[int32]*dispatch.Dispatcher
	retiring    []*dispatch.Dispatcher

	nextFullRefresh time.Time

	// topicsSeen is every topic name the ingest path has ever routed a
	// message for, the candidate set Tick scans for autocreate eligibility
	// (spec §4.4 step 6). pending marks the subset currently awaiting a
	// single-topic probe, so Tick does not issue a second one while the
	// first is still in flight.
	topicsSeen map[string]bool
	pending    map[string]bool
}

// New wires an engine around an already-constructed router and cache.
// The router's dispatcher queues are populated lazily as reconcile
// observes brokers in each incoming metadata snapshot; at construction
// there are none.
func New(cfg Config, log *logrus.Logger, r *router.Router, cache *metadata.Cache) *Engine {
	return &Engine{
		cfg:         cfg,
		log:         log,
		router:      r,
		cache:       cache,
		fetcher:     newMetadataFetcher(cfg.SeedBrokers, log, cfg),
		dispatchers: make(map[int32]*dispatch.Dispatcher),
		topicsSeen:  make(map[string]bool),
		pending:     make(map[string]bool),
	}
}

// NoteTopic registers topic as a candidate for the autocreate scan Tick
// runs every iteration. Called by the ingest path the first time it
// sees a message addressed to a topic not already tracked.
func (e *Engine) NoteTopic(topic string) {
	e.topicsSeen[topic] = true
}

// Tick advances the whole system by one step: it drains ready batches
// into dispatcher queues, drives the metadata refresh connection and
// schedules the next full refresh, issues autocreate probes for topics
// that currently have no routable partition, and steps every live and
// retiring dispatcher.
func (e *Engine) Tick(now time.Time) {
	Guard(e.log, "router.PollBatches", func() { e.router.PollBatches(now) })

	if e.nextFullRefresh.IsZero() || !now.Before(e.nextFullRefresh) {
		e.scheduleFullRefresh(now)
	}
	Guard(e.log, "metadataFetcher.Step", func() { e.fetcher.Step(now) })

	e.pollAutocreate(now)

	snap := e.cache.Current()
	for _, d := range e.dispatchers {
		d := d
		Guard(e.log, "dispatcher.Step", func() { d.Step(snap, now) })
	}
	e.stepRetiring(snap, now)
}

// scheduleFullRefresh enqueues a whole-cluster metadata request and
// arms the next refresh deadline regardless of whether this one
// succeeds, so a single failed refresh cannot wedge the cadence.
func (e *Engine) scheduleFullRefresh(now time.Time) {
	e.nextFullRefresh = now.Add(e.cfg.MetadataRefreshInterval)
	e.fetcher.enqueue(nil, func(resp *wire.MetadataResponse, err error) {
		if err != nil {
			e.log.WithError(err).Warn("full metadata refresh failed")
			return
		}
		e.applyRefresh(resp, now)
	})
}

// pollAutocreate scans every topic the ingest path has ever routed a
// message for and issues a single-topic metadata probe for each one the
// router reports as currently unroutable, autocreate-enabled, and past
// its retry backoff (spec §4.4 step 6). A topic already awaiting a
// response from an earlier tick is skipped.
func (e *Engine) pollAutocreate(now time.Time) {
	for topic := range e.topicsSeen {
		topic := topic // the enqueued callback runs on a later tick, after the loop has moved on
		if e.pending[topic] || !e.router.NeedsAutocreate(topic, now) {
			continue
		}
		e.pending[topic] = true
		e.fetcher.enqueue([]string{topic}, func(resp *wire.MetadataResponse, err error) {
			delete(e.pending, topic)
			if err != nil {
				e.log.WithError(err).WithField("topic", topic).Warn("autocreate metadata probe failed")
				e.router.NotifyAutocreateResult(topic, now, false)
				return
			}
			e.applyRefresh(resp, now)
			succeeded := len(e.cache.Current().RoutablePartitions(topic)) > 0
			e.router.NotifyAutocreateResult(topic, now, succeeded)
		})
	}
}

func (e *Engine) stepRetiring(snap *metadata.Snapshot, now time.Time) {
	var stillRetiring []*dispatch.Dispatcher
	for _, d := range e.retiring {
		d := d
		Guard(e.log, "dispatcher.Step", func() { d.Step(snap, now) })
		if d.Idle() {
			d.Stop(now)
			continue
		}
		stillRetiring = append(stillRetiring, d)
	}
	e.retiring = stillRetiring
}
