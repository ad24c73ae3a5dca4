package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/chunker"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/source"
	"github.com/poiesic/docrag/storage"
)

// Source yields the documents to index. *source.Directory implements it.
type Source interface {
	Load(ctx context.Context) ([]core.SourceDocument, *source.Report, error)
}

// Pipeline chunks, embeds and indexes documents.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  ai.Embedder
	pool      *ants.Pool
	proc      processor
	batchSize int
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many embedding batches run concurrently.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many passages are embedded per call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d must be positive", core.ErrInvalidConfig, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithProgress reports embedding progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline. The caller owns the embedder; Release
// frees only the pipeline's worker pool.
func NewPipeline(ch *chunker.Chunker, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if ch == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunker:   ch,
		embedder:  embedder,
		pool:      pool,
		batchSize: ai.DefaultBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	proc, err := newEmbeddingProcessor(embedder, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.proc = proc

	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Result describes a completed build.
type Result struct {
	Documents int
	Passages  int
	Dimension int
	Skipped   []source.Skipped
	BuildID   string
	Duration  time.Duration
	// Manifest describes the saved snapshot. It is only set by Build.
	Manifest storage.Manifest
}

// Build loads documents from src, indexes them into idx and saves the
// index to store.
func (p *Pipeline) Build(ctx context.Context, src Source, idx *index.Flat, store storage.Store) (*Result, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	start := time.Now()

	docs, report, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	result, err := p.Index(ctx, docs, idx)
	if err != nil {
		return nil, err
	}
	if report != nil {
		result.Skipped = report.Skipped
	}

	snap, err := Snapshot(idx, p.embedder)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}
	result.BuildID = snap.Manifest.BuildID
	result.Manifest = snap.Manifest
	result.Duration = time.Since(start)

	p.logger.Info("index built",
		"documents", result.Documents,
		"passages", result.Passages,
		"skipped_files", len(result.Skipped),
		"build_id", result.BuildID,
		"location", store.Location(),
		"duration", result.Duration)
	return result, nil
}

// Index chunks and embeds docs and appends the result to idx. Nothing is
// appended if any step fails.
func (p *Pipeline) Index(ctx context.Context, docs []core.SourceDocument, idx *index.Flat) (*Result, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	start := time.Now()

	passages, err := p.chunker.Chunk(docs)
	if err != nil {
		return nil, err
	}
	p.logger.Info("chunked documents", "documents", len(docs), "passages", len(passages))

	vectors, err := p.embed(ctx, passages)
	if err != nil {
		return nil, err
	}

	records := make([]core.Metadata, len(passages))
	for i, passage := range passages {
		records[i] = passage.Record()
	}
	if err := idx.Add(vectors, records); err != nil {
		return nil, err
	}

	return &Result{
		Documents: len(docs),
		Passages:  len(passages),
		Dimension: idx.Dimension(),
		Duration:  time.Since(start),
	}, nil
}

// embed runs the embedding processor over passages in batches on the pool.
// The returned vectors are in passage order.
func (p *Pipeline) embed(ctx context.Context, passages []core.Passage) ([][]float32, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := (len(passages) + p.batchSize - 1) / p.batchSize
	results := make([][][]float32, batches)
	errs := make([]error, batches)

	progress := newEmbedProgress(p.progress, batches, len(passages))

	var wg sync.WaitGroup
	for b := range batches {
		lo := b * p.batchSize
		hi := min(lo+p.batchSize, len(passages))

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[b] = err
				return
			}
			vectors, err := p.proc.process(ctx, passages[lo:hi])
			if err != nil {
				errs[b] = err
				cancel()
				return
			}
			results[b] = vectors
			progress.batchDone(len(vectors))
		})
		if submitErr != nil {
			wg.Done()
			errs[b] = submitErr
			cancel()
			break
		}
	}
	wg.Wait()
	summary := progress.done()

	if err := firstError(errs); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(passages))
	for _, batch := range results {
		vectors = append(vectors, batch...)
	}
	p.logger.Debug("embedded passages", "passages", summary.Passages, "batches", summary.Batches, "elapsed", summary.Elapsed)
	return vectors, nil
}

// firstError returns the first error that is not a cancellation caused by
// another batch failing, falling back to the first error of any kind.
func firstError(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// Snapshot captures idx as a storage snapshot tagged with the embedder's
// model identity.
func Snapshot(idx *index.Flat, embedder ai.Embedder) (*storage.Snapshot, error) {
	dim, vectors, records := idx.Contents()
	if dim == 0 {
		dim = embedder.Dimension()
	}
	return storage.NewSnapshot(embedder.ModelID(), dim, vectors, records)
}
