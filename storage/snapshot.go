package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docrag/core"
)

// FormatVersion is the current index artifact format.
const FormatVersion = 1

// Manifest describes a persisted snapshot. It is stored in the header of
// the index artifact.
type Manifest struct {
	Version          int
	ModelID          string
	Dimension        int
	Count            int
	VectorChecksum   string
	MetadataChecksum string
	BuildID          string
	CreatedAt        time.Time
}

// Snapshot is the full contents of an index: vectors and their metadata
// records in insertion order.
type Snapshot struct {
	Manifest Manifest
	Vectors  [][]float32
	Records  []core.Metadata
}

// NewSnapshot validates the pairing of vectors and records and returns a
// snapshot with a fresh build ID. Checksums are filled in by Encode.
func NewSnapshot(modelID string, dim int, vectors [][]float32, records []core.Metadata) (*Snapshot, error) {
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("%w: %d vectors, %d records", core.ErrPairingMismatch, len(vectors), len(records))
	}
	if _, err := core.ValidateVectors(vectors, dim); err != nil {
		return nil, err
	}

	return &Snapshot{
		Manifest: Manifest{
			Version:   FormatVersion,
			ModelID:   modelID,
			Dimension: dim,
			Count:     len(vectors),
			BuildID:   uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		},
		Vectors: vectors,
		Records: records,
	}, nil
}

// CheckModel returns core.ErrModelMismatch if the snapshot was built with a
// different embedding model or dimension than the live embedder. A
// dimension of 0 on either side (not yet known) is not compared.
func (m Manifest) CheckModel(modelID string, dim int) error {
	if m.ModelID != modelID {
		return fmt.Errorf("%w: store built with %q, embedder is %q", core.ErrModelMismatch, m.ModelID, modelID)
	}
	if dim != 0 && m.Dimension != 0 && m.Dimension != dim {
		return fmt.Errorf("%w: store has dimension %d, embedder produces %d", core.ErrModelMismatch, m.Dimension, dim)
	}
	return nil
}
