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

package update

import (
	"fmt"
	"sync"
)

// Registry collects the steps of all components. There is no global
// registry; whoever builds the engine passes one in.
type Registry struct {
	mu         sync.Mutex
	global     []Step
	repository []RepositoryStep
	seen       map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

func stepKey(kind, dataType, version string) string {
	return kind + "|" + dataType + "|" + version
}

// reserve checks that none of the keys is registered yet, the batch
// included, and only then marks all of them as seen.
func (r *Registry) reserve(keys []string, describe func(i int) error) error {
	batch := make(map[string]struct{}, len(keys))

	for i, key := range keys {
		_, registered := r.seen[key]
		_, repeated := batch[key]

		if registered || repeated {
			return describe(i)
		}

		batch[key] = struct{}{}
	}

	for _, key := range keys {
		r.seen[key] = struct{}{}
	}

	return nil
}

// Register adds global steps. Two steps for the same data type and version
// are rejected, and a rejected batch registers none of its steps.
func (r *Registry) Register(steps ...Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, len(steps))
	for i, s := range steps {
		keys[i] = stepKey("global", s.AffectedDataType(), s.TargetVersion().String())
	}

	if err := r.reserve(keys, func(i int) error {
		return fmt.Errorf("duplicate update step for %s to version %s", steps[i].AffectedDataType(), steps[i].TargetVersion())
	}); err != nil {
		return err
	}

	r.global = append(r.global, steps...)

	return nil
}

// RegisterRepositoryStep adds per repository steps with the same rules as Register.
func (r *Registry) RegisterRepositoryStep(steps ...RepositoryStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, len(steps))
	for i, s := range steps {
		keys[i] = stepKey("repository", s.AffectedDataType(), s.TargetVersion().String())
	}

	if err := r.reserve(keys, func(i int) error {
		return fmt.Errorf("duplicate repository update step for %s to version %s", steps[i].AffectedDataType(), steps[i].TargetVersion())
	}); err != nil {
		return err
	}

	r.repository = append(r.repository, steps...)

	return nil
}

func (r *Registry) snapshot() ([]Step, []RepositoryStep) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Step(nil), r.global...), append([]RepositoryStep(nil), r.repository...)
}
