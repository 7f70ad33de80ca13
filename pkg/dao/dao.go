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

// Package dao keeps one document of entities in memory and persists it
// through a persistence.EntityStore on every change.
//
// # Reads never wait
//
// The current document is an immutable snapshot behind an atomic pointer.
// Get, GetAll and Contains load the pointer and deep copy what they return,
// so readers never block on a writer that is busy persisting.
//
// # One writer at a time
//
// Every mutation runs under a single context aware mutex: it validates
// against the current snapshot, builds the next one, saves it and only then
// publishes it. A failed save publishes nothing, so memory and disk never
// disagree. Two concurrent Add calls for the same ID therefore see each
// other and exactly one of them succeeds.
//
// # Isolation
//
// Entities are copied with go-deepcopy when they enter and when they leave
// the DAO. Mutating a value obtained from Get, or a value after passing it to
// Add, never changes stored state.
package dao

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/ctxutil/ctxmutex"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/metrics"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/sentry"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// Entity is anything with a stable identifier.
type Entity interface {
	GetID() string
}

type snapshot[T Entity] struct {
	creationTime int64
	lastModified int64
	entities     map[string]T
}

// Option configures a DocumentDAO.
type Option func(*options)

type options struct {
	kind        string
	now         func() time.Time
	lockTimeout time.Duration
}

// WithKind sets the entity name used in error messages, e.g. "repository".
func WithKind(kind string) Option {
	return func(o *options) { o.kind = kind }
}

// WithClock replaces time.Now for creation and modification times.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLockTimeout bounds how long a mutation waits for the mutation lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

// DocumentDAO stores all entities of one kind in a single document.
type DocumentDAO[T Entity] struct {
	store     persistence.EntityStore
	storeType string
	name      string
	opts      options
	log       *zap.SugaredLogger

	mu      *ctxmutex.CtxMutex
	current atomic.Pointer[snapshot[T]]
}

// New creates a DAO and loads the named document. An absent document starts
// empty with the current time as its creation time; it is first written on
// the first mutation.
func New[T Entity](ctx context.Context, store persistence.EntityStore, storeType, name string, opts ...Option) (*DocumentDAO[T], error) {
	o := options{
		kind:        name,
		now:         time.Now,
		lockTimeout: constants.StoreLockTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &DocumentDAO[T]{
		store:     store,
		storeType: storeType,
		name:      name,
		opts:      o,
		log:       logger.For(logger.ComponentDocumentDAO).With("store", name),
		mu:        ctxmutex.NewCtxMutex(),
	}

	var zero T
	if _, err := clone(zero); err != nil {
		return nil, fmt.Errorf("entities of store %s cannot be copied: %w", name, err)
	}

	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

func clone[T any](v T) (T, error) {
	var out T
	err := deepcopy.Copy(&out, &v)

	return out, err
}

func (d *DocumentDAO[T]) lock(ctx context.Context) error {
	lockCtx, cancel := context.WithTimeout(ctx, d.opts.lockTimeout)
	defer cancel()

	if err := d.mu.Lock(lockCtx); err != nil {
		return fmt.Errorf("failed to acquire lock for store %s: %w", d.name, err)
	}

	return nil
}

// Refresh replaces the in-memory document with the stored one. It is used
// after update steps rewrote the store behind the DAO's back.
func (d *DocumentDAO[T]) Refresh(ctx context.Context) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()

	var doc persistence.Document[T]

	found, err := d.store.Load(ctx, d.storeType, d.name, &doc)
	if err != nil {
		return err
	}

	if !found {
		now := d.opts.now().UnixMilli()
		doc = persistence.Document[T]{CreationTime: now, LastModified: now}
	}

	entities := make(map[string]T, len(doc.Entities))

	for key, e := range doc.Entities {
		id := e.GetID()
		if id == "" {
			d.log.Warnf("Ignoring %s without id stored under key %q", d.opts.kind, key)

			continue
		}

		entities[id] = e
	}

	d.current.Store(&snapshot[T]{
		creationTime: doc.CreationTime,
		lastModified: doc.LastModified,
		entities:     entities,
	})

	return nil
}

// Get returns a copy of the entity with the given id.
func (d *DocumentDAO[T]) Get(id string) (T, bool) {
	var zero T

	e, ok := d.current.Load().entities[id]
	if !ok {
		return zero, false
	}

	c, err := clone(e)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, d.log, "failed to deep copy %s %s: %v", d.opts.kind, id, err)

		return zero, false
	}

	return c, true
}

// GetAll returns copies of all entities ordered by id. The result is a
// snapshot and stays valid while other goroutines mutate the DAO.
func (d *DocumentDAO[T]) GetAll() []T {
	snap := d.current.Load()
	ids := slices.Sorted(maps.Keys(snap.entities))

	all := make([]T, 0, len(ids))

	for _, id := range ids {
		c, err := clone(snap.entities[id])
		if err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, d.log, "failed to deep copy %s %s: %v", d.opts.kind, id, err)

			continue
		}

		all = append(all, c)
	}

	return all
}

// Contains reports whether an entity with the given id exists.
func (d *DocumentDAO[T]) Contains(id string) bool {
	_, ok := d.current.Load().entities[id]

	return ok
}

// Len returns the number of entities.
func (d *DocumentDAO[T]) Len() int {
	return len(d.current.Load().entities)
}

// CreationTime is when the document was first created.
func (d *DocumentDAO[T]) CreationTime() time.Time {
	return time.UnixMilli(d.current.Load().creationTime)
}

// LastModified is when the document was last changed.
func (d *DocumentDAO[T]) LastModified() time.Time {
	return time.UnixMilli(d.current.Load().lastModified)
}

// Add stores a new entity.
func (d *DocumentDAO[T]) Add(ctx context.Context, e T) error {
	return d.Atomic(ctx, "add", func(tx *Tx[T]) error {
		if tx.Contains(e.GetID()) {
			return &standarderrors.AlreadyExistsError{Kind: d.opts.kind, ID: e.GetID()}
		}

		return tx.Put(e)
	})
}

// Modify replaces an existing entity.
func (d *DocumentDAO[T]) Modify(ctx context.Context, e T) error {
	return d.Atomic(ctx, "modify", func(tx *Tx[T]) error {
		if !tx.Contains(e.GetID()) {
			return &standarderrors.NotFoundError{Kind: d.opts.kind, ID: e.GetID()}
		}

		return tx.Put(e)
	})
}

// Delete removes an existing entity.
func (d *DocumentDAO[T]) Delete(ctx context.Context, e T) error {
	return d.DeleteByID(ctx, e.GetID())
}

// DeleteByID removes the entity with the given id.
func (d *DocumentDAO[T]) DeleteByID(ctx context.Context, id string) error {
	return d.Atomic(ctx, "delete", func(tx *Tx[T]) error {
		if !tx.Delete(id) {
			return &standarderrors.NotFoundError{Kind: d.opts.kind, ID: id}
		}

		return nil
	})
}

// Atomic runs fn under the mutation lock. Changes fn makes through tx are
// persisted and published together once fn returns nil. If fn fails, or the
// save fails, nothing changes. fn must not call back into the DAO's
// mutating methods.
func (d *DocumentDAO[T]) Atomic(ctx context.Context, op string, fn func(tx *Tx[T]) error) (err error) {
	defer func() {
		metrics.RecordDAOMutation(d.name, op, err)
	}()

	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()

	cur := d.current.Load()
	tx := newTx(cur.entities)

	if err := fn(tx); err != nil {
		return err
	}

	if !tx.dirty() {
		return nil
	}

	next := &snapshot[T]{
		creationTime: cur.creationTime,
		lastModified: max(d.opts.now().UnixMilli(), cur.lastModified),
		entities:     tx.merged(),
	}

	doc := persistence.Document[T]{
		CreationTime: next.creationTime,
		LastModified: next.lastModified,
		Entities:     next.entities,
	}

	// Once the lock is held the save runs to completion, so that what is on
	// disk and what is published never disagree.
	if err := d.store.Save(context.WithoutCancel(ctx), d.storeType, d.name, doc); err != nil {
		d.log.Errorf("Failed to persist %s after %s: %v", d.name, op, err)

		return err
	}

	d.current.Store(next)

	return nil
}
