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


package core

import "errors"

// Configuration errors
var (
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidChunkConfig indicates chunk length or overlap are not usable.
	// Overlap must be smaller than the maximum length or chunking never advances.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	// ErrInvalidTopK indicates a non-positive top-k.
	ErrInvalidTopK = errors.New("top_k must be greater than 0")
)

// Index errors
var (
	// ErrDimensionMismatch indicates vectors whose dimension differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrPairingMismatch indicates a different number of vectors and metadata records.
	ErrPairingMismatch = errors.New("vector and metadata counts differ")
)

// Persistence errors
var (
	// ErrMissingStore indicates one or both persisted artifacts are absent.
	ErrMissingStore = errors.New("persisted store not found")

	// ErrInconsistentStore indicates the persisted artifacts exist but do not
	// form a matched pair (count, checksum or decode failure).
	ErrInconsistentStore = errors.New("persisted store is inconsistent")

	// ErrModelMismatch indicates the store was built with a different embedding model.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// Source errors
var (
	// ErrSourceLoad indicates a single source document could not be parsed.
	ErrSourceLoad = errors.New("source load failed")

	// ErrUnsupportedFormat indicates no loader is registered for a file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrSourceFormatMismatch indicates file content that does not match its extension.
	ErrSourceFormatMismatch = errors.New("file content does not match extension")
)

// Service errors
var (
	// ErrEmbeddingService indicates the embedding model failed.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrSynthesisService indicates the remote answer model failed.
	ErrSynthesisService = errors.New("synthesis service failed")
)
