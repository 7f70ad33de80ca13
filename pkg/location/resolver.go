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

// Package location assigns every repository a directory and remembers it.
//
// Paths are persisted in the "repository-paths" store, relative to the base
// directory when they live below it so the whole base directory can be moved.
// The default location of a new repository is repositories/<id>.
package location

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/scmstore/pkg/constants"
	"github.com/united-manufacturing-hub/scmstore/pkg/dao"
	"github.com/united-manufacturing-hub/scmstore/pkg/logger"
	"github.com/united-manufacturing-hub/scmstore/pkg/models"
	"github.com/united-manufacturing-hub/scmstore/pkg/persistence"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

// RepositoryPath is the persisted location of one repository together with
// the last known state of the repository itself.
type RepositoryPath struct {
	ID         string            `json:"id"         yaml:"id"`
	Path       string            `json:"path"       yaml:"path"`
	Repository models.Repository `json:"repository" yaml:"repository"`
}

func (p RepositoryPath) GetID() string {
	return p.ID
}

// HasRepository reports whether a repository was registered for the path,
// as opposed to a path that was only allocated.
func (p RepositoryPath) HasRepository() bool {
	return p.Repository.ID != ""
}

// InitialLocation returns the path, relative to the base directory, a new
// repository is placed at.
type InitialLocation func(id string) string

// DefaultInitialLocation places repositories at repositories/<id>.
func DefaultInitialLocation(id string) string {
	return filepath.Join(constants.RepositoriesDirectoryName, id)
}

// MaintenanceListener is told when a repository's files are being relocated.
type MaintenanceListener interface {
	OnMaintenance(repositoryID string, active bool)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithInitialLocation replaces the default placement of new repositories.
func WithInitialLocation(fn InitialLocation) Option {
	return func(r *Resolver) { r.initial = fn }
}

// WithMaintenanceListener registers a listener for ModifyLocation.
func WithMaintenanceListener(l MaintenanceListener) Option {
	return func(r *Resolver) { r.listeners = append(r.listeners, l) }
}

// WithDAOOptions passes options to the underlying document DAO.
func WithDAOOptions(opts ...dao.Option) Option {
	return func(r *Resolver) { r.daoOpts = append(r.daoOpts, opts...) }
}

// Resolver maps repository ids to directories.
type Resolver struct {
	baseDir   string
	fs        filesystem.Service
	paths     *dao.DocumentDAO[RepositoryPath]
	initial   InitialLocation
	listeners []MaintenanceListener
	daoOpts   []dao.Option
	log       *zap.SugaredLogger
}

// NewResolver loads the persisted locations.
func NewResolver(ctx context.Context, baseDir string, store persistence.EntityStore, fs filesystem.Service, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		baseDir: filepath.Clean(baseDir),
		fs:      fs,
		initial: DefaultInitialLocation,
		log:     logger.For(logger.ComponentLocationResolver),
	}

	for _, opt := range opts {
		opt(r)
	}

	paths, err := dao.New[RepositoryPath](ctx, store, constants.StoreTypeConfigurationEntry, constants.StoreRepositoryPaths,
		append([]dao.Option{dao.WithKind("repository path")}, r.daoOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository paths: %w", err)
	}

	r.paths = paths

	return r, nil
}

// BaseDirectory is the directory relative paths are resolved against.
func (r *Resolver) BaseDirectory() string {
	return r.baseDir
}

// absolute resolves a stored path against the base directory.
func (r *Resolver) absolute(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(r.baseDir, p)
}

// relative turns a path below the base directory into the stored form.
func (r *Resolver) relative(p string) string {
	abs := r.absolute(p)

	rel, err := filepath.Rel(r.baseDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}

	return rel
}

// checkCollision fails if path is already used by a record other than id.
func (r *Resolver) checkCollision(tx *dao.Tx[RepositoryPath], id, path string) error {
	abs := r.absolute(path)

	other, found := tx.Find(func(p RepositoryPath) bool {
		return p.ID != id && r.absolute(p.Path) == abs
	})
	if found {
		return &standarderrors.PathCollisionError{Path: abs, ID: id, OtherID: other.ID}
	}

	return nil
}

// Resolve returns the directory of a repository, allocating and creating the
// default one if the id has none yet. Concurrent calls for the same id get
// the same path and create a single record.
func (r *Resolver) Resolve(ctx context.Context, id string) (string, error) {
	if err := models.ValidateID(id); err != nil {
		return "", err
	}

	if p, ok := r.paths.Get(id); ok {
		return r.absolute(p.Path), nil
	}

	var resolved string

	err := r.paths.Atomic(ctx, "resolve", func(tx *dao.Tx[RepositoryPath]) error {
		existing, ok, err := tx.Get(id)
		if err != nil {
			return err
		}

		if ok {
			resolved = existing.Path

			return nil
		}

		rel := r.initial(id)
		if err := r.checkCollision(tx, id, rel); err != nil {
			return err
		}

		if err := r.fs.EnsureDirectory(ctx, r.absolute(rel)); err != nil {
			return err
		}

		resolved = rel

		return tx.Put(RepositoryPath{ID: id, Path: r.relative(rel)})
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve location of repository %s: %w", id, err)
	}

	return r.absolute(resolved), nil
}

// Create allocates the default location for a new repository and records
// the repository with it. The id and the namespace/name pair must be unused.
func (r *Resolver) Create(ctx context.Context, repo models.Repository) (string, error) {
	if err := models.ValidateID(repo.ID); err != nil {
		return "", err
	}

	var created string

	err := r.paths.Atomic(ctx, "create", func(tx *dao.Tx[RepositoryPath]) error {
		if tx.Contains(repo.ID) {
			return &standarderrors.AlreadyExistsError{Kind: "repository", ID: repo.ID}
		}

		if err := checkNamespaceAndName(tx, repo); err != nil {
			return err
		}

		rel := r.initial(repo.ID)
		if err := r.checkCollision(tx, repo.ID, rel); err != nil {
			return err
		}

		abs := r.absolute(rel)
		if err := r.ensureEmptyDirectory(ctx, abs); err != nil {
			return err
		}

		created = abs

		return tx.Put(RepositoryPath{ID: repo.ID, Path: r.relative(rel), Repository: repo})
	})
	if err != nil {
		return "", err
	}

	r.log.Debugf("Created location %s for repository %s", created, repo.NamespaceAndName())

	return created, nil
}

func checkNamespaceAndName(tx *dao.Tx[RepositoryPath], repo models.Repository) error {
	nn := repo.NamespaceAndName()

	if _, taken := tx.Find(func(p RepositoryPath) bool {
		return p.ID != repo.ID && p.HasRepository() && p.Repository.NamespaceAndName() == nn
	}); taken {
		return &standarderrors.AlreadyExistsError{Kind: "repository", ID: nn.String()}
	}

	return nil
}

// ensureEmptyDirectory creates dir, refusing to adopt one that already has content.
func (r *Resolver) ensureEmptyDirectory(ctx context.Context, dir string) error {
	exists, err := r.fs.PathExists(ctx, dir)
	if err != nil {
		return err
	}

	if exists {
		entries, err := r.fs.ReadDir(ctx, dir)
		if err != nil {
			return err
		}

		if len(entries) > 0 {
			return fmt.Errorf("repository directory %s already exists and is not empty", dir)
		}

		return nil
	}

	return r.fs.EnsureDirectory(ctx, dir)
}

// SetLocation records an explicit path for a repository. Registering the same
// repository at the same path again only refreshes the stored snapshot.
func (r *Resolver) SetLocation(ctx context.Context, repo models.Repository, path string) error {
	if err := models.ValidateID(repo.ID); err != nil {
		return err
	}

	return r.paths.Atomic(ctx, "set-location", func(tx *dao.Tx[RepositoryPath]) error {
		existing, ok, err := tx.Get(repo.ID)
		if err != nil {
			return err
		}

		if ok && r.absolute(existing.Path) != r.absolute(path) {
			return &standarderrors.AlreadyExistsError{Kind: "repository", ID: repo.ID}
		}

		if err := checkNamespaceAndName(tx, repo); err != nil {
			return err
		}

		if err := r.checkCollision(tx, repo.ID, path); err != nil {
			return err
		}

		return tx.Put(RepositoryPath{ID: repo.ID, Path: r.relative(path), Repository: repo})
	})
}

// UpdateSnapshot replaces the stored repository of an existing location.
func (r *Resolver) UpdateSnapshot(ctx context.Context, repo models.Repository) error {
	return r.ModifySnapshot(ctx, repo.ID, func(models.Repository) (models.Repository, error) {
		return repo, nil
	})
}

// ModifySnapshot builds the new snapshot of a repository from the stored one
// while the location records are locked, so fn decides on current data. The
// stored repository is the zero value for locations without a snapshot.
func (r *Resolver) ModifySnapshot(ctx context.Context, id string, fn func(stored models.Repository) (models.Repository, error)) error {
	return r.paths.Atomic(ctx, "update", func(tx *dao.Tx[RepositoryPath]) error {
		existing, ok, err := tx.Get(id)
		if err != nil {
			return err
		}

		if !ok {
			return &standarderrors.NotFoundError{Kind: "repository", ID: id}
		}

		repo, err := fn(existing.Repository)
		if err != nil {
			return err
		}

		if repo.ID != id {
			return fmt.Errorf("snapshot of repository %s cannot change its id to %s", id, repo.ID)
		}

		if err := checkNamespaceAndName(tx, repo); err != nil {
			return err
		}

		existing.Repository = repo

		return tx.Put(existing)
	})
}

// Get returns the location record of a repository.
func (r *Resolver) Get(id string) (RepositoryPath, bool) {
	return r.paths.Get(id)
}

// Location returns the absolute directory of a known repository without allocating.
func (r *Resolver) Location(id string) (string, bool) {
	p, ok := r.paths.Get(id)
	if !ok {
		return "", false
	}

	return r.absolute(p.Path), true
}

// ForExistingDirectory maps a directory back to the repository stored there.
// Relative paths are taken relative to the base directory.
func (r *Resolver) ForExistingDirectory(path string) (string, bool) {
	abs := r.absolute(path)

	for _, p := range r.paths.GetAll() {
		if r.absolute(p.Path) == abs {
			return p.ID, true
		}
	}

	return "", false
}

// ForAllLocations calls fn with every repository id and its absolute directory.
func (r *Resolver) ForAllLocations(fn func(id, path string)) {
	for _, p := range r.paths.GetAll() {
		fn(p.ID, r.absolute(p.Path))
	}
}

// Repositories returns the snapshots of all registered repositories.
func (r *Resolver) Repositories() []models.Repository {
	all := r.paths.GetAll()
	repos := make([]models.Repository, 0, len(all))

	for _, p := range all {
		if p.HasRepository() {
			repos = append(repos, p.Repository)
		}
	}

	return repos
}

// OnRepositoryDeleted forgets the location of a repository. Its directory is
// left on disk; see RemoveDirectory.
// Guards run under the same lock as the removal with the stored repository
// and can veto it.
func (r *Resolver) OnRepositoryDeleted(ctx context.Context, id string, guards ...func(stored models.Repository) error) error {
	if len(guards) == 0 {
		return r.paths.DeleteByID(ctx, id)
	}

	return r.paths.Atomic(ctx, "delete", func(tx *dao.Tx[RepositoryPath]) error {
		existing, ok, err := tx.Get(id)
		if err != nil {
			return err
		}

		if !ok {
			return &standarderrors.NotFoundError{Kind: "repository", ID: id}
		}

		for _, guard := range guards {
			if err := guard(existing.Repository); err != nil {
				return err
			}
		}

		tx.Delete(id)

		return nil
	})
}

// RemoveDirectory deletes a repository directory that no record points to anymore.
func (r *Resolver) RemoveDirectory(ctx context.Context, path string) error {
	abs := r.absolute(path)

	if id, used := r.ForExistingDirectory(abs); used {
		return fmt.Errorf("directory %s still belongs to repository %s", abs, id)
	}

	if abs == r.baseDir || !strings.HasPrefix(abs, r.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s outside of %s", abs, r.baseDir)
	}

	return r.fs.RemoveAll(ctx, abs)
}

// Refresh reloads the persisted locations.
func (r *Resolver) Refresh(ctx context.Context) error {
	return r.paths.Refresh(ctx)
}
