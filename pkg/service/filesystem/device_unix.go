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

//go:build unix

package filesystem

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// deviceOf returns the device id of path or of its nearest existing parent.
func deviceOf(path string) (uint64, error) {
	p := filepath.Clean(path)

	for {
		var st unix.Stat_t

		err := unix.Stat(p, &st)
		if err == nil {
			return uint64(st.Dev), nil //nolint:unconvert // Dev is int32 on darwin
		}

		if !errors.Is(err, unix.ENOENT) {
			return 0, &os.PathError{Op: "stat", Path: p, Err: err}
		}

		parent := filepath.Dir(p)
		if parent == p {
			return 0, &os.PathError{Op: "stat", Path: path, Err: err}
		}

		p = parent
	}
}

func sameDevice(a, b string) (bool, error) {
	da, err := deviceOf(a)
	if err != nil {
		return false, err
	}

	db, err := deviceOf(b)
	if err != nil {
		return false, err
	}

	return da == db, nil
}

// IsCrossDevice reports whether err is the EXDEV error of a rename across mounts.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
