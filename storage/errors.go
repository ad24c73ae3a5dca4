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

import "errors"

var (
	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrBadMagic indicates an index artifact that does not start with the expected magic bytes.
	ErrBadMagic = errors.New("not an index artifact")

	// ErrUnsupportedVersion indicates an index artifact written by an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported artifact version")

	// ErrChecksumMismatch indicates artifact contents that do not match the manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
