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


// Package storage defines how a built index is persisted.
//
// A persisted index is a matched pair of artifacts:
//
//   - the index artifact: a magic prefix, a MUS-encoded Manifest and the
//     vectors as fixed-width float32 values
//   - the metadata artifact: the gob-encoded metadata records, one per vector
//
// The manifest carries the embedding model identity, the dimension, the
// record count and a checksum of each artifact body. Decode uses these to
// recognise a pair written by two different builds, or a pair left behind
// by a crash part-way through a save, and reports it as
// core.ErrInconsistentStore.
//
// # Backends
//
// Store implementations live in subpackages:
//
//	store := file.NewStore(dir)               // two files in a directory
//	store, err := badger.NewStore(path, false) // embedded KV store
//
// Both return the Store interface. Callers save with:
//
//	snap, err := storage.NewSnapshot(embedder.ModelID(), idx.Dimension(), vectors, records)
//	err = store.Save(ctx, snap)
//
// and load with:
//
//	snap, err := store.Load(ctx)
//	if errors.Is(err, core.ErrMissingStore) {
//	    // build
//	}
//	if err := snap.Manifest.CheckModel(embedder.ModelID(), embedder.Dimension()); err != nil {
//	    // the store was built with another model
//	}
package storage
