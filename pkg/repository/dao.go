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

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/location"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// ErrArchived is returned when changing or deleting an archived repository.
var ErrArchived = errors.New("repository is archived")

// DAO stores repositories together with their locations.
type DAO struct {
	resolver *location.Resolver
	created  CreationListener
	now      func() time.Time
	log      *zap.SugaredLogger
}

// CreationListener is told about repositories created in the current
// format, so that repository update steps skip them.
type CreationListener interface {
	MarkRepositoryCurrent(ctx context.Context, repositoryID string) error
}

type Option func(*DAO)

func WithCreationListener(l CreationListener) Option {
	return func(d *DAO) { d.created = l }
}

// NewDAO wraps a resolver. Repositories that share a namespace and name,
// which older versions could produce, are renamed to <name>-<id>-DUPLICATE so
// each of them stays reachable.
func NewDAO(ctx context.Context, resolver *location.Resolver, opts ...Option) (*DAO, error) {
	d := &DAO{
		resolver: resolver,
		now:      time.Now,
		log:      logger.For(logger.ComponentRepositoryDAO),
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := d.renameDuplicates(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *DAO) renameDuplicates(ctx context.Context) error {
	seen := make(map[models.NamespaceAndName]string)

	for _, repo := range d.resolver.Repositories() {
		nn := repo.NamespaceAndName()

		first, dup := seen[nn]
		if !dup {
			seen[nn] = repo.ID

			continue
		}

		renamed := repo
		renamed.Name = fmt.Sprintf("%s-%s-DUPLICATE", repo.Name, repo.ID)

		d.log.Warnf("Repository %s uses the same name as repository %s, renaming it to %s",
			repo.ID, first, renamed.NamespaceAndName())

		if err := d.resolver.UpdateSnapshot(ctx, renamed); err != nil {
			return fmt.Errorf("failed to rename duplicate repository %s: %w", repo.ID, err)
		}
	}

	return nil
}

// Add registers a new repository and creates its directory.
func (d *DAO) Add(ctx context.Context, repo models.Repository) error {
	if err := repo.Validate(); err != nil {
		return err
	}

	now := d.now().UnixMilli()
	if repo.CreationDate == 0 {
		repo.CreationDate = now
	}

	repo.LastModified = now

	if _, err := d.resolver.Create(ctx, repo); err != nil {
		return err
	}

	if d.created != nil {
		if err := d.created.MarkRepositoryCurrent(ctx, repo.ID); err != nil {
			return fmt.Errorf("repository %s was created but its format version could not be recorded: %w", repo.ID, err)
		}
	}

	return nil
}

// Modify replaces a stored repository. An archived repository can only be
// changed by unarchiving it.
func (d *DAO) Modify(ctx context.Context, repo models.Repository) error {
	if err := repo.Validate(); err != nil {
		return err
	}

	now := d.now().UnixMilli()

	return d.resolver.ModifySnapshot(ctx, repo.ID, func(stored models.Repository) (models.Repository, error) {
		if stored.ID == "" {
			return models.Repository{}, &standarderrors.NotFoundError{Kind: "repository", ID: repo.ID}
		}

		if stored.Archived && repo.Archived {
			return models.Repository{}, fmt.Errorf("cannot modify %s: %w", stored.NamespaceAndName(), ErrArchived)
		}

		repo.CreationDate = stored.CreationDate
		repo.LastModified = now

		return repo, nil
	})
}

// Delete forgets a repository. Its directory stays on disk.
func (d *DAO) Delete(ctx context.Context, repo models.Repository) error {
	return d.resolver.OnRepositoryDeleted(ctx, repo.ID, func(stored models.Repository) error {
		if stored.ID == "" {
			return &standarderrors.NotFoundError{Kind: "repository", ID: repo.ID}
		}

		if stored.Archived {
			return fmt.Errorf("cannot delete %s: %w", stored.NamespaceAndName(), ErrArchived)
		}

		return nil
	})
}

// Get returns the repository with the given id.
func (d *DAO) Get(id string) (models.Repository, bool) {
	p, ok := d.resolver.Get(id)
	if !ok || !p.HasRepository() {
		return models.Repository{}, false
	}

	return p.Repository, true
}

// GetByNamespaceAndName looks a repository up by its human facing name.
func (d *DAO) GetByNamespaceAndName(namespace, name string) (models.Repository, bool) {
	nn := models.NamespaceAndName{Namespace: namespace, Name: name}

	for _, repo := range d.resolver.Repositories() {
		if repo.NamespaceAndName() == nn {
			return repo, true
		}
	}

	return models.Repository{}, false
}

// GetAll returns all repositories ordered by id.
func (d *DAO) GetAll() []models.Repository {
	return d.resolver.Repositories()
}

// Contains reports whether a repository with the given id exists.
func (d *DAO) Contains(id string) bool {
	_, ok := d.Get(id)

	return ok
}

// Path returns the directory of a repository.
func (d *DAO) Path(id string) (string, bool) {
	if !d.Contains(id) {
		return "", false
	}

	return d.resolver.Location(id)
}

// ForEachRepository calls fn with the id of every repository and stops at the first error.
func (d *DAO) ForEachRepository(ctx context.Context, fn func(id string) error) error {
	for _, repo := range d.resolver.Repositories() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(repo.ID); err != nil {
			return err
		}
	}

	return nil
}
