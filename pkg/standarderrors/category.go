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
	"net/http"
)

// Category tells a caller what to do with an error.
type Category int

const (
	// CategoryRecoverable errors are caused by the caller (duplicate or missing
	// entities) and are returned to the client unchanged.
	CategoryRecoverable Category = iota

	// CategoryInternal errors are unexpected IO or serialization failures.
	CategoryInternal

	// CategoryFatal errors leave the data directory in a state the server must
	// not run on. Startup aborts on them.
	CategoryFatal
)

func (c Category) String() string {
	switch c {
	case CategoryRecoverable:
		return "recoverable"
	case CategoryFatal:
		return "fatal"
	default:
		return "internal"
	}
}

// Categorize classifies err by its concrete type.
func Categorize(err error) Category {
	var (
		exists    *AlreadyExistsError
		notFound  *NotFoundError
		collision *PathCollisionError
		update    *UpdateError
	)

	switch {
	case errors.As(err, &update), errors.As(err, &collision):
		return CategoryFatal
	case errors.As(err, &exists), errors.As(err, &notFound):
		return CategoryRecoverable
	default:
		return CategoryInternal
	}
}

// IsRecoverable reports whether err is a caller error.
func IsRecoverable(err error) bool {
	return err != nil && Categorize(err) == CategoryRecoverable
}

// HTTPStatus maps err to the status code an HTTP layer should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsAlreadyExists(err):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUpdateFailed  = 3
	ExitPathCollision = 4
)

// ExitCode maps err to the exit status of the server process.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		update    *UpdateError
		collision *PathCollisionError
	)

	switch {
	case errors.As(err, &update):
		return ExitUpdateFailed
	case errors.As(err, &collision):
		return ExitPathCollision
	default:
		return ExitFailure
	}
}
