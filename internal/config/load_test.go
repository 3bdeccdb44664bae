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

package config

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	f, err := ioutil.TempFile("", "dory-config-*.yml")
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalValidConfig = `
initialBrokers:
  broker:
    - host: broker1.example.com
      port: 9092
    - host: broker2.example.com
`

func TestLoadMinimalValidConfig(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.InitialBrokers.Brokers, 2)
	assert.Equal(t, "broker1.example.com", cfg.InitialBrokers.Brokers[0].Host)
	assert.Equal(t, 9092, cfg.InitialBrokers.Brokers[0].Port)
	assert.Equal(t, "broker2.example.com", cfg.InitialBrokers.Brokers[1].Host)
	assert.Equal(t, 9092, cfg.InitialBrokers.Brokers[1].Port, "port defaults to 9092 when omitted")

	assert.Equal(t, DefaultTopicPerTopic, cfg.Batching.DefaultTopicAction)
	assert.Equal(t, 100, cfg.Compression.SizeThresholdPercent)
}

func TestLoadRejectsEmptyInitialBrokers(t *testing.T) {
	path := writeTempConfig(t, `
batching:
  produceRequestDataLimit: 1048576
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialBrokers must not be empty")
}

func TestLoadRejectsSizeThresholdOver100(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig+`
compression:
  sizeThresholdPercent: 150
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sizeThresholdPercent")
}

func TestLoadRejectsDuplicateNamedConfig(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig+`
batching:
  namedConfigs:
    - name: fast
      messageCountLimit: 100
    - name: fast
      messageCountLimit: 200
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate batching named config")
}

func TestLoadRejectsUnresolvedNamedConfigReference(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig+`
batching:
  defaultTopic:
    action: perTopic
    config: missing
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references undefined named config")
}

func TestLoadRejectsInvalidDefaultTopicAction(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig+`
batching:
  defaultTopic:
    action: bogus
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perTopic|combinedTopics|disable")
}

func TestLoadRejectsInvalidCompressionType(t *testing.T) {
	path := writeTempConfig(t, minimalValidConfig+`
compression:
  namedConfigs:
    - name: heavy
      type: bogus
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none|gzip|snappy|lz4")
}

func TestLoadFullDocument(t *testing.T) {
	path := writeTempConfig(t, `
batching:
  namedConfigs:
    - name: fast
      timeLimitMs: 10
      messageCountLimit: 500
      byteLimit: 1048576
  produceRequestDataLimit: 1048576
  messageMaxBytes: 1000000
  combinedTopics:
    enable: true
    config: fast
  defaultTopic:
    action: combinedTopics
    config: fast
  topicConfigs:
    - topic: clicks
      config: fast
compression:
  namedConfigs:
    - name: light
      type: snappy
      minSize: 1024
    - name: heavy
      type: gzip
      minSize: 512
      level: 6
  sizeThresholdPercent: 90
  defaultTopic:
    config: light
  topicConfigs:
    - topic: clicks
      config: heavy
topicRateLimiting:
  namedConfigs:
    - name: unrestricted
      unlimited: true
    - name: throttled
      interval_ms: 1000
      maxCount: 200
  defaultTopic:
    config: unrestricted
  topicConfigs:
    - topic: clicks
      config: throttled
initialBrokers:
  broker:
    - host: broker1.example.com
      port: 9092
    - host: broker2.example.com
      port: 9093
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Batching.NamedConfigs, 1)
	assert.Equal(t, "fast", cfg.Batching.NamedConfigs[0].Name)
	assert.Equal(t, 500, cfg.Batching.NamedConfigs[0].Limits.MessageCountLimit)
	assert.True(t, cfg.Batching.CombinedTopicsEnable)
	assert.Equal(t, DefaultTopicCombinedTopics, cfg.Batching.DefaultTopicAction)
	require.Len(t, cfg.Batching.TopicConfigs, 1)
	assert.Equal(t, "clicks", cfg.Batching.TopicConfigs[0].Topic)

	require.Len(t, cfg.Compression.NamedConfigs, 2)
	assert.Equal(t, "gzip", cfg.Compression.NamedConfigs[1].Type)
	assert.True(t, cfg.Compression.NamedConfigs[1].HasLevel)
	assert.Equal(t, 6, cfg.Compression.NamedConfigs[1].Level)
	assert.Equal(t, 90, cfg.Compression.SizeThresholdPercent)

	require.Len(t, cfg.RateLimiting.NamedConfigs, 2)
	assert.True(t, cfg.RateLimiting.NamedConfigs[0].Unlimited)
	assert.Equal(t, 1000, cfg.RateLimiting.NamedConfigs[1].IntervalMs)

	require.Len(t, cfg.InitialBrokers.Brokers, 2)
	assert.Equal(t, 9093, cfg.InitialBrokers.Brokers[1].Port)
}

func TestLoadErrorsOnMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/dory.yml")
	require.Error(t, err)
}
