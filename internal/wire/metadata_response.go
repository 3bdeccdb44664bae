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

package wire

// Broker is one entry of a decoded metadata response's broker list.
type Broker struct {
	NodeID int32
	Host   string
	Port   int32
}

// PartitionMeta is one partition entry nested under a TopicMeta.
type PartitionMeta struct {
	ErrorCode     int16
	PartitionID   int32
	LeaderID      int32
	Replicas      []int32
	ISR           []int32
}

// TopicMeta is one topic entry of a decoded metadata response, still
// carrying its nested partitions in raw decoded form; the metadata cache
// builder (internal/metadata) consumes this to build a Snapshot.
type TopicMeta struct {
	ErrorCode  int16
	Name       string
	Partitions []PartitionMeta
}

// MetadataResponse is the fully decoded form of a Metadata v0 response
// (spec §4.1).
type MetadataResponse struct {
	CorrelationID int32
	Brokers       []Broker
	Topics        []TopicMeta
}

// MetadataResponseReader is the pull-style cursor spec §4.1 calls for:
// next_broker(), next_topic(), next_partition_in_topic(),
// next_replica_in_partition(). DecodeMetadataResponse below is the
// convenience wrapper most callers use; the reader exists so a caller
// that wants to stream-process a huge response (e.g. to avoid building
// the full Topics slice) can do so without modification to this package.
type MetadataResponseReader struct {
	c *cursor

	brokersLeft       int32
	topicsLeft        int32
	topicsStartedFlag bool
	partsLeft         int32
	curTopicError     int16
	curTopicName      string
	replicasLeft      int32
	isrLeft           int32
	isrStarted        bool
	inPartition       bool
	pendingPartition  *PartitionMeta
}

// NewMetadataResponseReader wraps buf (the frame body, i.e. everything
// after the size field) for pull-style decoding.
func NewMetadataResponseReader(buf []byte) (*MetadataResponseReader, int32, error) {
	c := newCursor(buf)
	correlationID, err := c.readInt32("correlation_id")
	if err != nil {
		return nil, 0, err
	}
	brokerCount, err := c.readCount("broker_count")
	if err != nil {
		return nil, 0, err
	}
	return &MetadataResponseReader{c: c, brokersLeft: brokerCount}, correlationID, nil
}

// NextBroker returns the next broker entry, or (nil, false, nil) once the
// broker list is exhausted and the reader has transitioned to the topic
// section.
func (r *MetadataResponseReader) NextBroker() (*Broker, bool, error) {
	if r.brokersLeft == 0 {
		return nil, false, nil
	}
	nodeID, err := r.c.readInt32("broker.node_id")
	if err != nil {
		return nil, false, err
	}
	host, err := r.c.readString("broker.host")
	if err != nil {
		return nil, false, err
	}
	port, err := r.c.readInt32("broker.port")
	if err != nil {
		return nil, false, err
	}
	r.brokersLeft--
	return &Broker{NodeID: nodeID, Host: host, Port: port}, true, nil
}

// beginTopics must be called exactly once, after the last NextBroker
// call returned false, to read the topic_count field.
func (r *MetadataResponseReader) beginTopics() error {
	n, err := r.c.readCount("topic_count")
	if err != nil {
		return err
	}
	r.topicsLeft = n
	return nil
}

// NextTopic returns the next topic's error code and name, after draining
// any partitions left unread from a previous topic (defensive: callers
// are expected to fully drain NextPartitionInTopic first, but a skip must
// not corrupt the stream).
func (r *MetadataResponseReader) NextTopic() (errorCode int16, name string, more bool, err error) {
	if !r.topicsStartedFlag {
		r.topicsStartedFlag = true
		if err = r.beginTopics(); err != nil {
			return 0, "", false, err
		}
	}

	// Drain any unread partitions/replicas/ISR from the previous topic.
	for r.partsLeft > 0 {
		if _, _, more, derr := r.NextPartitionInTopic(); derr != nil {
			return 0, "", false, derr
		} else if !more {
			break
		}
	}

	if r.topicsLeft == 0 {
		return 0, "", false, nil
	}

	ec, err := r.c.readInt16("topic.error_code")
	if err != nil {
		return 0, "", false, err
	}
	topicName, err := r.c.readString("topic.name")
	if err != nil {
		return 0, "", false, err
	}
	partCount, err := r.c.readCount("topic.partition_count")
	if err != nil {
		return 0, "", false, err
	}

	r.topicsLeft--
	r.curTopicError = ec
	r.curTopicName = topicName
	r.partsLeft = partCount
	return ec, topicName, true, nil
}

// NextPartitionInTopic returns the next partition of the topic most
// recently returned by NextTopic, draining any unread replica/ISR ids
// from the previous partition first.
func (r *MetadataResponseReader) NextPartitionInTopic() (*PartitionMeta, string, bool, error) {
	for r.replicasLeft > 0 {
		if _, more, derr := r.NextReplicaInPartition(); derr != nil {
			return nil, "", false, derr
		} else if !more {
			break
		}
	}
	for r.isrLeft > 0 {
		if _, more, derr := r.nextISR(); derr != nil {
			return nil, "", false, derr
		} else if !more {
			break
		}
	}

	if r.partsLeft == 0 {
		return nil, r.curTopicName, false, nil
	}

	ec, err := r.c.readInt16("partition.error_code")
	if err != nil {
		return nil, "", false, err
	}
	partitionID, err := r.c.readInt32("partition.partition_id")
	if err != nil {
		return nil, "", false, err
	}
	leaderID, err := r.c.readInt32("partition.leader_id")
	if err != nil {
		return nil, "", false, err
	}
	replicaCount, err := r.c.readCount("partition.replica_count")
	if err != nil {
		return nil, "", false, err
	}

	r.partsLeft--
	r.replicasLeft = replicaCount
	r.inPartition = true

	// Caller drains replicas via NextReplicaInPartition and ISR via
	// nextISR before requesting the next partition; we pre-read nothing
	// further here so the pull-cursor contract holds.
	meta := &PartitionMeta{ErrorCode: ec, PartitionID: partitionID, LeaderID: leaderID}
	r.pendingPartition = meta
	return meta, r.curTopicName, true, nil
}

// NextReplicaInPartition returns the next replica broker id of the
// partition most recently returned by NextPartitionInTopic. Once
// exhausted, it transitions to reading the isr_count field on the next
// call so nextISR can proceed.
func (r *MetadataResponseReader) NextReplicaInPartition() (int32, bool, error) {
	if r.replicasLeft == 0 {
		if !r.isrStarted {
			isrCount, err := r.c.readCount("partition.isr_count")
			if err != nil {
				return 0, false, err
			}
			r.isrLeft = isrCount
			r.isrStarted = true
		}
		return 0, false, nil
	}
	id, err := r.c.readInt32("partition.replica_id")
	if err != nil {
		return 0, false, err
	}
	r.replicasLeft--
	if r.pendingPartition != nil {
		r.pendingPartition.Replicas = append(r.pendingPartition.Replicas, id)
	}
	return id, true, nil
}

func (r *MetadataResponseReader) nextISR() (int32, bool, error) {
	if r.isrLeft == 0 {
		r.isrStarted = false
		r.pendingPartition = nil
		return 0, false, nil
	}
	id, err := r.c.readInt32("partition.isr_id")
	if err != nil {
		return 0, false, err
	}
	r.isrLeft--
	if r.pendingPartition != nil {
		r.pendingPartition.ISR = append(r.pendingPartition.ISR, id)
	}
	return id, true, nil
}

// DecodeMetadataResponse decodes a full Metadata v0 response body (after
// the size field has been stripped by the stream framer) into a
// MetadataResponse. It is built on top of the pull-style reader so the
// two stay in lockstep as the wire format evolves.
func DecodeMetadataResponse(buf []byte) (*MetadataResponse, error) {
	reader, correlationID, err := NewMetadataResponseReader(buf)
	if err != nil {
		return nil, err
	}

	resp := &MetadataResponse{CorrelationID: correlationID}

	for {
		broker, more, err := reader.NextBroker()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		resp.Brokers = append(resp.Brokers, *broker)
	}

	for {
		errorCode, name, more, err := reader.NextTopic()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}

		topic := TopicMeta{ErrorCode: errorCode, Name: name}
		for {
			part, _, more, err := reader.NextPartitionInTopic()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			// Drain replicas/ISR for this partition before moving on.
			for {
				_, more, err := reader.NextReplicaInPartition()
				if err != nil {
					return nil, err
				}
				if !more {
					break
				}
			}
			for {
				_, more, err := reader.nextISR()
				if err != nil {
					return nil, err
				}
				if !more {
					break
				}
			}
			topic.Partitions = append(topic.Partitions, *part)
		}
		resp.Topics = append(resp.Topics, topic)
	}

	return resp, nil
}
