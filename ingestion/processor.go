package ingestion

import (
	"context"

	"github.com/poiesic/docrag/core"
)

// processor turns a batch of passages into one vector per passage.
type processor interface {
	// process returns vectors in the same order as passages.
	process(ctx context.Context, passages []core.Passage) ([][]float32, error)
}
