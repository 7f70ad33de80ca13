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

package ctxrwmutex

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// CtxRWMutex is a context aware RWMutex built on a weighted semaphore.
// A reader takes one unit, a writer takes all of them, so up to `readers`
// readers proceed together and a writer excludes everyone.
type CtxRWMutex struct {
	sem     *semaphore.Weighted
	readers int64
}

func NewCtxRWMutex(readers int64) *CtxRWMutex {
	if readers < 1 {
		readers = 1
	}

	return &CtxRWMutex{
		sem:     semaphore.NewWeighted(readers),
		readers: readers,
	}
}

// RLock locks the mutex for reading.
func (m *CtxRWMutex) RLock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// RUnlock unlocks the mutex for reading.
func (m *CtxRWMutex) RUnlock() {
	m.sem.Release(1)
}

// Lock locks the mutex for writing.
func (m *CtxRWMutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, m.readers)
}

// Unlock unlocks the mutex for writing.
func (m *CtxRWMutex) Unlock() {
	m.sem.Release(m.readers)
}
