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

package standarderrors

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned by stores that were shut down.
var ErrStoreClosed = errors.New("store closed")

// AlreadyExistsError is returned when an entity with the same identity is already stored.
type AlreadyExistsError struct {
	Kind string
	ID   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with id %q already exists", e.Kind, e.ID)
}

// NotFoundError is returned when an entity to modify or delete is absent.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %q not found", e.Kind, e.ID)
}

// PathCollisionError means a repository path would be shared by two repositories.
type PathCollisionError struct {
	Path    string
	ID      string
	OtherID string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("path %s for repository %s is already used by repository %s", e.Path, e.ID, e.OtherID)
}

// UpdateError wraps the failure of a single update step.
type UpdateError struct {
	DataType     string
	Version      string
	RepositoryID string
	Step         string
	Err          error
}

func (e *UpdateError) Error() string {
	msg := fmt.Sprintf("could not execute update for type %s to version %s", e.DataType, e.Version)
	if e.RepositoryID != "" {
		msg += " for repository " + e.RepositoryID
	}

	if e.Step != "" {
		msg += " in " + e.Step
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// StoreError is a read, write or serialization failure of a persisted document.
type StoreError struct {
	Op        string
	StoreType string
	Name      string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s/%s: %v", e.Op, e.StoreType, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsAlreadyExists reports whether err contains an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError

	return errors.As(err, &target)
}

// IsNotFound reports whether err contains a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError

	return errors.As(err, &target)
}
