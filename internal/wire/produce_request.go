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

const (
	apiKeyProduce  = int16(0)
	apiKeyMetadata = int16(3)
	apiVersion0    = int16(0)
)

// ProduceRequestPartition carries one partition's already-framed
// message-set bytes (the output of EncodeRecord/EncodeCompressedMessageSet
// concatenated as needed by the caller).
type ProduceRequestPartition struct {
	PartitionID int32
	MessageSet  []byte
}

// ProduceRequestTopic groups partitions under one topic name. Per spec
// §4.5, every (topic, partition) pair appears at most once across an
// entire request, which the factory (internal/dispatch) is responsible
// for guaranteeing before handing a ProduceRequest to Encode.
type ProduceRequestTopic struct {
	Name       string
	Partitions []ProduceRequestPartition
}

// ProduceRequest is the in-memory form of a Produce v0 request (spec
// §4.1).
type ProduceRequest struct {
	CorrelationID         int32
	ClientID              string
	RequiredAcks          int16
	ReplicationTimeoutMs  int32
	Topics                []ProduceRequestTopic
}

// Encode serializes the request into the `size | api_key | ... ` framing
// of spec §4.1. The returned slice's first four bytes are the size field,
// which covers everything that follows it (not including itself).
func (r *ProduceRequest) Encode() []byte {
	buf := make([]byte, 4, 256)

	buf = appendInt16(buf, apiKeyProduce)
	buf = appendInt16(buf, apiVersion0)
	buf = appendInt32(buf, r.CorrelationID)
	buf = appendInt16(buf, int16(len(r.ClientID)))
	buf = append(buf, r.ClientID...)
	buf = appendInt16(buf, r.RequiredAcks)
	buf = appendInt32(buf, r.ReplicationTimeoutMs)
	buf = appendInt32(buf, int32(len(r.Topics)))

	for _, topic := range r.Topics {
		buf = appendInt16(buf, int16(len(topic.Name)))
		buf = append(buf, topic.Name...)
		buf = appendInt32(buf, int32(len(topic.Partitions)))

		for _, part := range topic.Partitions {
			buf = appendInt32(buf, part.PartitionID)
			buf = appendInt32(buf, int32(len(part.MessageSet)))
			buf = append(buf, part.MessageSet...)
		}
	}

	// Patch in the size field now that the full frame length is known.
	size := int32(len(buf) - 4)
	putInt32(buf[0:4], size)
	return buf
}

func putInt32(dst []byte, v int32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// EncodedSize returns the exact byte size Encode would produce, without
// allocating the buffer — used by the produce-request factory (spec
// §4.5.1) to decide whether adding one more (topic, partition) group
// would exceed produce_request_data_limit.
func (r *ProduceRequest) EncodedSize() int {
	size := 4 + 2 + 2 + 4 + 2 + len(r.ClientID) + 2 + 4 + 4
	for _, topic := range r.Topics {
		size += 2 + len(topic.Name) + 4
		for _, part := range topic.Partitions {
			size += 4 + 4 + len(part.MessageSet)
		}
	}
	return size
}

// MetadataRequest is the in-memory form of a Metadata v0 request, which
// asks for either all topics (empty Topics) or a specific subset (spec
// §4.4 step 6's single-topic autocreate probe).
type MetadataRequest struct {
	CorrelationID int32
	ClientID      string
	Topics        []string
}

// Encode serializes the metadata request using the same size-then-body
// framing discipline as the produce request.
func (r *MetadataRequest) Encode() []byte {
	buf := make([]byte, 4, 128)
	buf = appendInt16(buf, apiKeyMetadata)
	buf = appendInt16(buf, apiVersion0)
	buf = appendInt32(buf, r.CorrelationID)
	buf = appendInt16(buf, int16(len(r.ClientID)))
	buf = append(buf, r.ClientID...)
	buf = appendInt32(buf, int32(len(r.Topics)))
	for _, name := range r.Topics {
		buf = appendInt16(buf, int16(len(name)))
		buf = append(buf, name...)
	}
	size := int32(len(buf) - 4)
	putInt32(buf[0:4], size)
	return buf
}
