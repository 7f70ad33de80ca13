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

// Package memory provides an in-memory implementation of persistence.EntityStore.
//
// Documents are kept in encoded form, so every Load returns a fresh decoded
// copy and a caller mutating a loaded document never changes the stored one.
// It is meant for tests and tooling; nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// validateContext checks if the provided context is nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	return ctx.Err()
}

// Store is a thread-safe in-memory EntityStore.
type Store struct {
	mu    sync.RWMutex
	codec persistence.Codec
	docs  map[string][]byte
	saves map[string]int

	// SaveHook, when set, runs before a save is applied. A returned error
	// aborts the save and is handed to the caller.
	SaveHook func(storeType, name string) error
}

// NewStore creates an empty store encoding documents as JSON.
func NewStore() *Store {
	return &Store{
		codec: persistence.JSONCodec{},
		docs:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

func key(storeType, name string) string {
	return storeType + "/" + name
}

// Load implements persistence.EntityStore.
func (s *Store) Load(ctx context.Context, storeType, name string, into any) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	s.mu.RLock()
	data, ok := s.docs[key(storeType, name)]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if err := s.codec.Unmarshal(data, into); err != nil {
		return false, &standarderrors.StoreError{Op: "load", StoreType: storeType, Name: name, Err: err}
	}

	return true, nil
}

// Save implements persistence.EntityStore.
func (s *Store) Save(ctx context.Context, storeType, name string, doc any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if s.SaveHook != nil {
		if err := s.SaveHook(storeType, name); err != nil {
			return &standarderrors.StoreError{Op: "save", StoreType: storeType, Name: name, Err: err}
		}
	}

	data, err := s.codec.Marshal(doc)
	if err != nil {
		return &standarderrors.StoreError{Op: "save", StoreType: storeType, Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key(storeType, name)] = data
	s.saves[key(storeType, name)]++

	return nil
}

// Saves returns how many times the named document was written.
func (s *Store) Saves(storeType, name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.saves[key(storeType, name)]
}

// Raw returns the encoded document, or nil when it was never saved.
func (s *Store) Raw(storeType, name string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key(storeType, name)]
	if !ok {
		return nil
	}

	return append([]byte(nil), data...)
}
