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

// ProducePartitionResult is one partition's outcome within a Produce v0
// response: `partition_id:i32 | error_code:i16 | offset:i64`.
type ProducePartitionResult struct {
	PartitionID int32
	ErrorCode   int16
	Offset      int64
}

// ProduceTopicResult groups partition results under their topic name.
type ProduceTopicResult struct {
	Name       string
	Partitions []ProducePartitionResult
}

// ProduceResponse is the fully decoded form of a Produce v0 response:
// `correlation_id:i32 | topic_count:i32 | topic[]`, each topic
// `name_len:i16 | name | partition_count:i32 | partition[]`. A single
// response carries independent per-partition outcomes (spec §1's
// partial-failure model), which is why the dispatcher walks this
// structure rather than treating the response as all-or-nothing.
type ProduceResponse struct {
	CorrelationID int32
	Topics        []ProduceTopicResult
}

// DecodeProduceResponse decodes a Produce v0 response body (after the
// stream framer has stripped the leading size field).
func DecodeProduceResponse(buf []byte) (*ProduceResponse, error) {
	c := newCursor(buf)

	correlationID, err := c.readInt32("correlation_id")
	if err != nil {
		return nil, err
	}
	topicCount, err := c.readCount("topic_count")
	if err != nil {
		return nil, err
	}

	resp := &ProduceResponse{CorrelationID: correlationID}
	for i := int32(0); i < topicCount; i++ {
		name, err := c.readString("topic.name")
		if err != nil {
			return nil, err
		}
		partCount, err := c.readCount("topic.partition_count")
		if err != nil {
			return nil, err
		}

		topic := ProduceTopicResult{Name: name}
		for j := int32(0); j < partCount; j++ {
			partitionID, err := c.readInt32("partition.partition_id")
			if err != nil {
				return nil, err
			}
			errorCode, err := c.readInt16("partition.error_code")
			if err != nil {
				return nil, err
			}
			offset, err := c.readInt64("partition.offset")
			if err != nil {
				return nil, err
			}
			topic.Partitions = append(topic.Partitions, ProducePartitionResult{
				PartitionID: partitionID,
				ErrorCode:   errorCode,
				Offset:      offset,
			})
		}
		resp.Topics = append(resp.Topics, topic)
	}

	return resp, nil
}
