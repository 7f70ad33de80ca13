// Copyright 2025 UMH Systems GmbH
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

// Package env reads SCM_* overrides from the process environment.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Prefix is prepended to every key looked up through this package.
const Prefix = "SCM_"

// Lookup is how the environment is read. Tests replace it with a map lookup.
type Lookup func(key string) (string, bool)

// Reader resolves keys below Prefix.
type Reader struct {
	lookup Lookup
}

// NewReader reads from the process environment when lookup is nil.
func NewReader(lookup Lookup) *Reader {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return &Reader{lookup: lookup}
}

// FromMap is a Lookup over a fixed set of variables.
func FromMap(vars map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]

		return v, ok
	}
}

func (r *Reader) raw(key string) (string, bool) {
	v, ok := r.lookup(Prefix + key)
	if !ok {
		return "", false
	}

	v = strings.TrimSpace(v)

	return v, v != ""
}

// String returns the value of SCM_<key> and whether it was set.
func (r *Reader) String(key string) (string, bool) {
	return r.raw(key)
}

// Int returns SCM_<key> as an integer. An unparsable value is an error.
func (r *Reader) Int(key string) (int, bool, error) {
	v, ok := r.raw(key)
	if !ok {
		return 0, false, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("environment variable %s%s must be an integer: %w", Prefix, key, err)
	}

	return n, true, nil
}

// Bool returns SCM_<key> as a boolean, accepting the usual yes/no spellings.
func (r *Reader) Bool(key string) (bool, bool, error) {
	v, ok := r.raw(key)
	if !ok {
		return false, false, nil
	}

	switch strings.ToLower(v) {
	case "true", "1", "yes", "y", "on":
		return true, true, nil
	case "false", "0", "no", "n", "off":
		return false, true, nil
	default:
		return false, false, fmt.Errorf("environment variable %s%s must be a boolean value", Prefix, key)
	}
}
