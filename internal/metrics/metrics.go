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

// Package metrics registers and updates the counters a sidecar scrapes
// (SPEC_FULL.md §A.5), the same tgo.Metric global registry core/metrics.go
// uses, with gollum's stream-level counters replaced by Dory's own
// ingest/route/dispatch/discard surface.
package metrics

import (
	"fmt"
	"time"

	"github.com/dspeterson/dory/internal/discard"
	"github.com/trivago/tgo"
)

const (
	MetricMessagesIngested = "Messages:Ingested"
	MetricMessagesRouted   = "Messages:Routed"
	MetricMessagesAcked    = "Messages:Acked"
	MetricMessagesDiscarded = "Messages:Discarded"

	MetricMessagesRoutedAvgPerSec    = "Messages:Routed:AvgPerSec"
	MetricMessagesDiscardedAvgPerSec = "Messages:Discarded:AvgPerSec"

	MetricPoolInUse    = "Pool:InUse"
	MetricPoolCapacity = "Pool:Capacity"

	MetricBrokersActive = "Brokers:Active"

	metricDiscardReasonFmt = "Discarded:%s"
)

var discardReasonMetrics = [...]string{
	discard.NoAvailablePartition:       fmt.Sprintf(metricDiscardReasonFmt, "NoAvailablePartition"),
	discard.TopicTooLarge:              fmt.Sprintf(metricDiscardReasonFmt, "TopicTooLarge"),
	discard.MsgTooLarge:                fmt.Sprintf(metricDiscardReasonFmt, "MsgTooLarge"),
	discard.RateLimit:                  fmt.Sprintf(metricDiscardReasonFmt, "RateLimit"),
	discard.KafkaErrorAck:              fmt.Sprintf(metricDiscardReasonFmt, "KafkaErrorAck"),
	discard.FailedDeliveryAttemptLimit: fmt.Sprintf(metricDiscardReasonFmt, "FailedDeliveryAttemptLimit"),
	discard.Bug:                        fmt.Sprintf(metricDiscardReasonFmt, "Bug"),
	discard.ServerShutdown:             fmt.Sprintf(metricDiscardReasonFmt, "ServerShutdown"),
	discard.NoBufferSpace:              fmt.Sprintf(metricDiscardReasonFmt, "NoBufferSpace"),
	discard.MalformedMessage:           fmt.Sprintf(metricDiscardReasonFmt, "MalformedMessage"),
}

// Init registers every metric Dory exposes. Call once at startup, before
// any of this package's Count*/Set* functions run.
func Init() {
	tgo.Metric.EnableGlobalMetrics()
	tgo.Metric.InitSystemMetrics()

	tgo.Metric.New(MetricMessagesIngested)
	tgo.Metric.New(MetricMessagesRouted)
	tgo.Metric.New(MetricMessagesAcked)
	tgo.Metric.New(MetricMessagesDiscarded)
	tgo.Metric.NewRate(MetricMessagesRouted, MetricMessagesRoutedAvgPerSec, time.Second, 10, 3, true)
	tgo.Metric.NewRate(MetricMessagesDiscarded, MetricMessagesDiscardedAvgPerSec, time.Second, 10, 3, true)

	tgo.Metric.New(MetricPoolInUse)
	tgo.Metric.New(MetricPoolCapacity)
	tgo.Metric.New(MetricBrokersActive)

	for _, name := range discardReasonMetrics {
		tgo.Metric.New(name)
	}
}

// CountIngested increases the ingested-message counter by 1.
func CountIngested() { tgo.Metric.Inc(MetricMessagesIngested) }

// CountRouted increases the routed-message counter by 1.
func CountRouted() { tgo.Metric.Inc(MetricMessagesRouted) }

// CountAcked increases the acked-message counter by 1.
func CountAcked() { tgo.Metric.Inc(MetricMessagesAcked) }

// CountDiscarded increases both the total discard counter and the
// per-reason counter for reason.
func CountDiscarded(reason discard.Reason) {
	tgo.Metric.Inc(MetricMessagesDiscarded)
	if int(reason) < len(discardReasonMetrics) {
		tgo.Metric.Inc(discardReasonMetrics[reason])
	}
}

// SetPoolUsage records the buffer pool's current occupancy (spec §8's
// pool_in_use <= pool_capacity invariant, exposed for external
// monitoring rather than enforced here).
func SetPoolUsage(inUse, capacity int) {
	tgo.Metric.SetI(MetricPoolInUse, inUse)
	tgo.Metric.SetI(MetricPoolCapacity, capacity)
}

// SetBrokersActive records the current size of the engine's dispatcher set.
func SetBrokersActive(n int) {
	tgo.Metric.SetI(MetricBrokersActive, n)
}
