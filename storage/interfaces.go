// Copyright 2025 Poiesic Systems
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


package storage

import "context"

// Store persists an index snapshot as a matched pair of artifacts: the
// serialized vectors and the serialized metadata sequence.
//
// Implementations must write both artifacts so that a crash part-way leaves
// either the previous pair or a pair Load can recognise as inconsistent.
type Store interface {
	// Save replaces the persisted pair with snap. The manifest checksums of
	// snap are filled in from the encoded artifacts.
	Save(ctx context.Context, snap *Snapshot) error

	// Load reads and verifies the persisted pair.
	// Returns core.ErrMissingStore if one or both artifacts are absent and
	// core.ErrInconsistentStore if they do not form a matched pair.
	Load(ctx context.Context) (*Snapshot, error)

	// Exists reports whether both artifacts are present. It does not verify them.
	Exists() (bool, error)

	// Location describes where the store lives, for logs and CLI output.
	Location() string

	// Close releases resources held by the store.
	Close() error
}
