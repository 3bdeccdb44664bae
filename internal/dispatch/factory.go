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

package dispatch

import (
	"github.com/dspeterson/dory/internal/metadata"
	"github.com/dspeterson/dory/internal/router"
	"github.com/dspeterson/dory/internal/wire"
	"github.com/dspeterson/dory/internal/wire/codec"
)

// CompressionConfig is one topic's compression policy (spec §6
// compression.namedConfigs / defaultTopic / topicConfigs).
type CompressionConfig struct {
	Codec         codec.ID
	Level         int
	MinSize       int     // min_compression_size
	MaxRatio      float64 // max_compression_ratio; 0 disables the ratio check
}

// CompressionPolicy resolves a topic's CompressionConfig, mirroring
// spec §6's defaultTopic/topicConfigs override shape.
type CompressionPolicy interface {
	For(topic string) CompressionConfig
}

// Factory builds produce requests from pending broker-bound groups,
// implementing spec §4.5.1. One Factory belongs to exactly one
// dispatcher; its chooser instance is therefore independent of the
// router's own any-partition chooser (both rotate round-robin, but over
// different scopes — the router picks a *broker*, the factory picks a
// *partition* on that broker, once per produce request).
type Factory struct {
	chooser    *metadata.Chooser
	dataLimit  int
	compression CompressionPolicy
	clientID   string
}

// NewFactory creates a factory bounded by dataLimit bytes per request
// (produce_request_data_limit).
func NewFactory(dataLimit int, compression CompressionPolicy, clientID string) *Factory {
	return &Factory{chooser: metadata.NewChooser(), dataLimit: dataLimit, compression: compression, clientID: clientID}
}

// BuildResult is the outcome of one factory pass.
type BuildResult struct {
	Request  *wire.ProduceRequest
	Consumed []router.RoutedGroup // groups included in Request, for the in-flight table
	Pending  []router.RoutedGroup // groups that did not fit and remain queued
}

// Build assembles a produce request from pending, stopping once adding
// another group's message-set would exceed dataLimit (spec §4.5.1:
// "the factory stops adding groups once the serialized size would
// exceed produce_request_data_limit; any remaining batches stay in the
// send queue"). An empty pending list returns a nil Request ("no
// request", per spec).
func (f *Factory) Build(pending []router.RoutedGroup, snap *metadata.Snapshot, correlationID int32, requiredAcks int16, replicationTimeoutMs int32) (*BuildResult, error) {
	if len(pending) == 0 {
		return &BuildResult{}, nil
	}

	req := &wire.ProduceRequest{
		CorrelationID:        correlationID,
		ClientID:             f.clientID,
		RequiredAcks:         requiredAcks,
		ReplicationTimeoutMs: replicationTimeoutMs,
	}
	topicIdx := make(map[string]int)

	// Any-partition groups are assigned a partition once per topic, not
	// once per group: two separate any-partition RoutedGroups for the
	// same topic (e.g. one carried over from a prior request's deferral,
	// one freshly drained) must land in the same partition within this
	// request, per spec §4.5.1's "chosen once per produce request."
	// Calling the chooser per-group would rotate its cursor between them
	// and split one topic's messages across partitions in one request.
	anyPartition := make(map[string]int32)
	chosen := make(map[string]bool)
	for _, g := range pending {
		if g.Partition >= 0 || chosen[g.Topic] {
			continue
		}
		chosen[g.Topic] = true
		partitions := snap.PartitionsForTopicOnBroker(g.Topic, g.BrokerIndex)
		if idx := f.chooser.Next("req:"+g.Topic, len(partitions)); idx >= 0 {
			anyPartition[g.Topic] = partitions[idx]
		}
	}

	var consumed, remaining []router.RoutedGroup

	for _, g := range pending {
		partitionID := g.Partition
		if partitionID < 0 {
			assigned, ok := anyPartition[g.Topic]
			if !ok {
				remaining = append(remaining, g)
				continue
			}
			partitionID = assigned
		}

		messageSet, err := f.serializeGroup(g)
		if err != nil {
			return nil, err
		}
		partition := wire.ProduceRequestPartition{PartitionID: partitionID, MessageSet: messageSet}

		// Tentatively add the partition to the topic it belongs to (or a
		// new topic entry), then check whether the request as a whole
		// still fits under the data limit. The first group is always
		// accepted regardless of size (spec §4.5.1 mirrors the batcher's
		// own "a single message exceeding the limit is still emitted"
		// edge case at the request level).
		ti, exists := topicIdx[g.Topic]
		if exists {
			req.Topics[ti].Partitions = append(req.Topics[ti].Partitions, partition)
		} else {
			req.Topics = append(req.Topics, wire.ProduceRequestTopic{Name: g.Topic, Partitions: []wire.ProduceRequestPartition{partition}})
		}

		if len(consumed) > 0 && req.EncodedSize() > f.dataLimit {
			// Roll back the tentative addition and defer this group.
			if exists {
				req.Topics[ti].Partitions = req.Topics[ti].Partitions[:len(req.Topics[ti].Partitions)-1]
			} else {
				req.Topics = req.Topics[:len(req.Topics)-1]
			}
			remaining = append(remaining, g)
			continue
		}

		if !exists {
			topicIdx[g.Topic] = len(req.Topics) - 1
		}
		consumed = append(consumed, router.RoutedGroup{BrokerIndex: g.BrokerIndex, Topic: g.Topic, Partition: partitionID, Messages: g.Messages})
	}

	if len(req.Topics) == 0 {
		return &BuildResult{Pending: remaining}, nil
	}
	return &BuildResult{Request: req, Consumed: consumed, Pending: remaining}, nil
}

// serializeGroup builds the message-set bytes for one (topic, partition)
// group, applying the topic's compression policy (spec §4.5.1): emit
// uncompressed when the codec is None or the body is below
// min_compression_size; otherwise compress and fall back to uncompressed
// if the ratio is not worth the broker's CPU.
func (f *Factory) serializeGroup(g router.RoutedGroup) ([]byte, error) {
	var uncompressed []byte
	for _, msg := range g.Messages {
		uncompressed = wire.EncodeRecord(uncompressed, 0, 0, 0, msg.KeyBytes(), msg.ValueBytes())
	}

	cfg := f.compression.For(g.Topic)
	if cfg.Codec == codec.None || len(uncompressed) < cfg.MinSize {
		return uncompressed, nil
	}

	compressed, err := wire.EncodeCompressedMessageSet(nil, uncompressed, cfg.Codec, cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.MaxRatio > 0 {
		ratio := float64(len(compressed)) / float64(len(uncompressed))
		if ratio > cfg.MaxRatio {
			return uncompressed, nil
		}
	}
	return compressed, nil
}
