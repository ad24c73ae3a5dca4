//go:build !cgo

package fastembed

import (
	"context"

	"github.com/poiesic/docrag/ai"
)

// Embedder is a stub for builds without cgo. Construction always fails.
type Embedder struct{}

func newEmbedder(_ *ai.Config) (*Embedder, error) {
	return nil, ErrNotAvailable
}

// NewEmbedder returns ErrNotAvailable when cgo is not available.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return nil, ErrNotAvailable
}

// EmbedText returns ErrNotAvailable.
func (e *Embedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrNotAvailable
}

// EmbedTexts returns ErrNotAvailable.
func (e *Embedder) EmbedTexts(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrNotAvailable
}

// Dimension returns 0.
func (e *Embedder) Dimension() int { return 0 }

// ModelID returns "".
func (e *Embedder) ModelID() string { return "" }

// Close is a no-op.
func (e *Embedder) Close() error { return nil }
