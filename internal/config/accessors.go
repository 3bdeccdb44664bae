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
	"github.com/pkg/errors"
)

// yamlMap is the shape yaml.v2 produces for a nested mapping node.
type yamlMap map[interface{}]interface{}

// asMap type-asserts v as a yamlMap, the same fail-fast style as
// gollum's core/config.go configReadMap, but returning an error instead
// of calling Fatalf: spec §7 treats every configuration problem as a
// result to report, not an exception to throw.
func asMap(key string, v interface{}) (yamlMap, error) {
	if v == nil {
		return yamlMap{}, nil
	}
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, errors.Errorf("config: %q is expected to be a key/value map", key)
	}
	return yamlMap(m), nil
}

func asSlice(key string, v interface{}) ([]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.([]interface{})
	if !ok {
		return nil, errors.Errorf("config: %q is expected to be an array", key)
	}
	return s, nil
}

func asString(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("config: %q is expected to be a string", key)
	}
	return s, nil
}

func asBool(key string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("config: %q is expected to be a boolean", key)
	}
	return b, nil
}

func asInt(key string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	default:
		return 0, errors.Errorf("config: %q is expected to be an integer", key)
	}
}

// optString reads a string field, returning def when the key is absent.
func optString(m yamlMap, key string, def string) (string, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	return asString(key, v)
}

// optInt reads an integer field, returning def when the key is absent.
func optInt(m yamlMap, key string, def int) (int, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	return asInt(key, v)
}

// optBool reads a boolean field, returning def when the key is absent.
func optBool(m yamlMap, key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	return asBool(key, v)
}

// reqString reads a required string field, erroring if absent or empty.
func reqString(m yamlMap, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.Errorf("config: %q is required", key)
	}
	s, err := asString(key, v)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.Errorf("config: %q must not be empty", key)
	}
	return s, nil
}
