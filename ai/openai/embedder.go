package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder  embeddings.Embedder
	modelID   string
	dimension atomic.Int64
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(tokenOrNone(config.EmbeddingAPIKey)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.BatchSize),
	)
	if err != nil {
		return nil, err
	}

	e := &Embedder{
		embedder: embedder,
		modelID:  config.ModelID(),
		logger:   slog.Default().With("component", "openai-embedder"),
	}
	e.dimension.Store(int64(config.EmbeddingDimension))
	return e, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, ai.PrepareInputs(texts))
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrEmbeddingService, len(texts), len(vectors))
	}

	if err := e.checkDimension(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// checkDimension learns the dimension on first use and rejects responses
// that disagree with it afterwards.
func (e *Embedder) checkDimension(vectors [][]float32) error {
	dim, err := core.ValidateVectors(vectors, int(e.dimension.Load()))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	e.dimension.CompareAndSwap(0, int64(dim))
	return nil
}

// Dimension returns the vector dimension, or 0 if it is not yet known.
func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

// ModelID returns the configured model identity.
func (e *Embedder) ModelID() string {
	return e.modelID
}
