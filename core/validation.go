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

import "fmt"

// ValidateChunkParams checks chunk length and overlap.
//
// Validation rules:
//   - maxLength must be positive
//   - overlap must be positive
//   - overlap must be smaller than maxLength
func ValidateChunkParams(maxLength, overlap int) error {
	if maxLength <= 0 {
		return fmt.Errorf("%w: max length %d must be positive", ErrInvalidChunkConfig, maxLength)
	}
	if overlap <= 0 {
		return fmt.Errorf("%w: overlap %d must be positive", ErrInvalidChunkConfig, overlap)
	}
	if overlap >= maxLength {
		return fmt.Errorf("%w: overlap %d must be smaller than max length %d", ErrInvalidChunkConfig, overlap, maxLength)
	}
	return nil
}

// ValidateTopK checks that topK is positive.
func ValidateTopK(topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	return nil
}

// ValidateVectors checks that every vector has the given dimension.
// A dimension of 0 adopts the dimension of the first vector.
// Returns the effective dimension.
func ValidateVectors(vectors [][]float32, dim int) (int, error) {
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
			if dim == 0 {
				return 0, fmt.Errorf("%w: vector %d is empty", ErrDimensionMismatch, i)
			}
		}
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return dim, nil
}
