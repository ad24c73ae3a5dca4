package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
)

type embeddingProcessor struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(embedder ai.Embedder, logger *slog.Logger) (processor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

func (ep *embeddingProcessor) process(ctx context.Context, passages []core.Passage) ([][]float32, error) {
	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}

	ep.logger.Debug("generating embeddings for passages", "passages", len(texts))
	vectors, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return nil, err
	}

	if len(vectors) != len(passages) {
		return nil, fmt.Errorf("%w: %w: expected %d, received %d",
			core.ErrEmbeddingService, ErrEmbeddingCountMismatch, len(passages), len(vectors))
	}
	return vectors, nil
}
