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

package dao

import (
	"errors"
	"maps"
	"slices"
)

// Tx is the view of the document handed to an Atomic callback. Reads see the
// callback's own uncommitted changes.
type Tx[T Entity] struct {
	base    map[string]T
	writes  map[string]T
	deletes map[string]struct{}
}

func newTx[T Entity](base map[string]T) *Tx[T] {
	return &Tx[T]{
		base:    base,
		writes:  make(map[string]T),
		deletes: make(map[string]struct{}),
	}
}

func (tx *Tx[T]) lookup(id string) (T, bool) {
	if e, ok := tx.writes[id]; ok {
		return e, true
	}

	var zero T

	if _, ok := tx.deletes[id]; ok {
		return zero, false
	}

	e, ok := tx.base[id]

	return e, ok
}

// Contains reports whether id exists in the view.
func (tx *Tx[T]) Contains(id string) bool {
	_, ok := tx.lookup(id)

	return ok
}

// Get returns a copy of the entity with the given id.
func (tx *Tx[T]) Get(id string) (T, bool, error) {
	e, ok := tx.lookup(id)
	if !ok {
		return e, false, nil
	}

	c, err := clone(e)

	return c, err == nil, err
}

// Put inserts or replaces a copy of e.
func (tx *Tx[T]) Put(e T) error {
	id := e.GetID()
	if id == "" {
		return errors.New("entity has no id")
	}

	c, err := clone(e)
	if err != nil {
		return err
	}

	tx.writes[id] = c
	delete(tx.deletes, id)

	return nil
}

// Delete removes id and reports whether it existed.
func (tx *Tx[T]) Delete(id string) bool {
	if !tx.Contains(id) {
		return false
	}

	delete(tx.writes, id)

	if _, ok := tx.base[id]; ok {
		tx.deletes[id] = struct{}{}
	}

	return true
}

// Find returns a copy of the first entity, in id order, matching pred.
func (tx *Tx[T]) Find(pred func(T) bool) (T, bool) {
	for _, id := range tx.ids() {
		e, _ := tx.lookup(id)
		if pred(e) {
			if c, err := clone(e); err == nil {
				return c, true
			}
		}
	}

	var zero T

	return zero, false
}

func (tx *Tx[T]) ids() []string {
	ids := make([]string, 0, len(tx.base)+len(tx.writes))

	for id := range tx.base {
		if _, deleted := tx.deletes[id]; !deleted {
			if _, written := tx.writes[id]; !written {
				ids = append(ids, id)
			}
		}
	}

	ids = append(ids, slices.Collect(maps.Keys(tx.writes))...)
	slices.Sort(ids)

	return ids
}

func (tx *Tx[T]) dirty() bool {
	return len(tx.writes) > 0 || len(tx.deletes) > 0
}

// merged builds the next entity map. Unchanged entities are shared with the
// previous snapshot; they are never mutated in place.
func (tx *Tx[T]) merged() map[string]T {
	next := make(map[string]T, len(tx.base)+len(tx.writes))

	for id, e := range tx.base {
		if _, deleted := tx.deletes[id]; !deleted {
			next[id] = e
		}
	}

	maps.Copy(next, tx.writes)

	return next
}
