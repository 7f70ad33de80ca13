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

// Package persistence defines how whole documents of entities are loaded and
// saved.
//
// # Documents, not rows
//
// A store name maps to exactly one document holding every entity of one kind
// together with the document's creation and last modification time. Callers
// always load or save the complete document. There are no partial updates and
// no queries; the DAO layer keeps the document in memory and rewrites it on
// every mutation.
//
// # Formats
//
// The serialization format is a Codec chosen by configuration. JSON and YAML
// are available, either of them optionally wrapped in zstd framing. The file
// extension follows the codec so stores written with different settings never
// shadow each other.
//
// # Implementations
//
//   - persistence/file: one file per store below <base>/config, replaced
//     atomically on every save.
//   - persistence/memory: encoded documents in a map, for tests and tooling.
package persistence

import "context"

// EntityStore loads and saves whole documents addressed by store type and name.
//
// Load decodes the stored document into `into` and reports whether one existed.
// A missing document is not an error. Save replaces the stored document
// atomically: readers observe either the old or the new document, never a
// mixture.
type EntityStore interface {
	Load(ctx context.Context, storeType, name string, into any) (bool, error)
	Save(ctx context.Context, storeType, name string, doc any) error
}

// Document is the persisted form of every DAO.
// Times are milliseconds since the Unix epoch.
type Document[T any] struct {
	CreationTime int64        `json:"creationTime" yaml:"creationTime"`
	LastModified int64        `json:"lastModified" yaml:"lastModified"`
	Entities     map[string]T `json:"entities"     yaml:"entities"`
}
