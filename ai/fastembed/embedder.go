//go:build cgo

package fastembed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
)

var embeddingModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
}

// Embedder implements ai.Embedder with a locally loaded ONNX model.
// The model is loaded once by the constructor and released by Close.
type Embedder struct {
	model     *fastembed.FlagEmbedding
	modelID   string
	dimension int
	batchSize int
	mu        sync.Mutex
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	name := CanonicalModelName(config.EmbeddingModel)
	model, ok := embeddingModels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, config.EmbeddingModel)
	}

	cacheDir := config.ModelCacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", core.ErrEmbeddingService, name, err)
	}

	logger := slog.Default().With("component", "fastembed-embedder")
	logger.Info("embedding model loaded", "model", name, "cache_dir", cacheDir)

	return &Embedder{
		model:     flagEmbed,
		modelID:   ai.BackendFastEmbed + ":" + name,
		dimension: modelDimensions[name],
		batchSize: config.BatchSize,
		logger:    logger,
	}, nil
}

// NewEmbedder loads the configured model and returns it as an ai.Embedder.
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, ErrClosed)
	}

	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	vectors, err := e.model.Embed(ai.PrepareInputs(texts), e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrEmbeddingService, len(texts), len(vectors))
	}
	return vectors, nil
}

// Dimension returns the vector dimension of the loaded model.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// ModelID returns the model identity.
func (e *Embedder) ModelID() string {
	return e.modelID
}

// Close releases the ONNX session. It is safe to call more than once.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
