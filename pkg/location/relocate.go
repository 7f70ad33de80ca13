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

package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/united-manufacturing-hub/scmstore/pkg/dao"
	"github.com/united-manufacturing-hub/scmstore/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/scmstore/pkg/standarderrors"
)

func (r *Resolver) maintenance(id string, active bool) {
	for _, l := range r.listeners {
		l.OnMaintenance(id, active)
	}
}

// ModifyLocation relocates the files of a repository to newPath and records
// the new path. With keepOld the old directory is copied and kept, otherwise
// it is moved. If recording the new path fails the files are put back.
func (r *Resolver) ModifyLocation(ctx context.Context, id, newPath string, keepOld bool) error {
	current, ok := r.paths.Get(id)
	if !ok {
		return &standarderrors.NotFoundError{Kind: "repository", ID: id}
	}

	oldAbs, newAbs := r.absolute(current.Path), r.absolute(newPath)
	if oldAbs == newAbs {
		return nil
	}

	if other, used := r.ForExistingDirectory(newAbs); used {
		return &standarderrors.PathCollisionError{Path: newAbs, ID: id, OtherID: other}
	}

	exists, err := r.fs.PathExists(ctx, newAbs)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf("cannot relocate repository %s: %s already exists", id, newAbs)
	}

	r.maintenance(id, true)
	defer r.maintenance(id, false)

	if keepOld {
		_, err = filesystem.CopyDirectory(ctx, r.fs, oldAbs, newAbs, filesystem.CopyOptions{})
	} else {
		_, err = filesystem.MoveDirectory(ctx, r.fs, oldAbs, newAbs, filesystem.CopyOptions{})
	}

	if err != nil {
		return fmt.Errorf("failed to relocate repository %s: %w", id, err)
	}

	err = r.paths.Atomic(ctx, "modify-location", func(tx *dao.Tx[RepositoryPath]) error {
		rec, ok, err := tx.Get(id)
		if err != nil {
			return err
		}

		if !ok {
			return &standarderrors.NotFoundError{Kind: "repository", ID: id}
		}

		if err := r.checkCollision(tx, id, newAbs); err != nil {
			return err
		}

		rec.Path = r.relative(newAbs)

		return tx.Put(rec)
	})
	if err == nil {
		r.log.Infof("Relocated repository %s from %s to %s", id, oldAbs, newAbs)

		return nil
	}

	rollbackCtx := context.WithoutCancel(ctx)

	var rollbackErr error
	if keepOld {
		rollbackErr = r.fs.RemoveAll(rollbackCtx, newAbs)
	} else {
		_, rollbackErr = filesystem.MoveDirectory(rollbackCtx, r.fs, newAbs, oldAbs, filesystem.CopyOptions{})
	}

	if rollbackErr != nil {
		return errors.Join(err, fmt.Errorf("could not restore %s: %w", oldAbs, rollbackErr))
	}

	return err
}
