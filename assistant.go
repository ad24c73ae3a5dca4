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


package docrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/fastembed"
	"github.com/poiesic/docrag/ai/openai"
	"github.com/poiesic/docrag/chunker"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/retry"
	"github.com/poiesic/docrag/search"
	"github.com/poiesic/docrag/source"
	"github.com/poiesic/docrag/storage"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/poiesic/docrag/storage/file"
)

// Origin records how the live index was obtained.
type Origin string

const (
	OriginLoaded Origin = "loaded"
	OriginBuilt  Origin = "built"
)

// Assistant owns the embedder, the index, the store and the query engine.
// It loads a persisted index when a valid one exists and builds one from
// the source directory otherwise.
type Assistant struct {
	cfg      *config.Config
	provider ai.AIProvider
	store    storage.Store
	source   ingestion.Source
	monitor  search.QueryMonitor
	progress io.Writer
	logger   *slog.Logger

	// mu guards the fields below, which Rebuild replaces.
	mu       sync.RWMutex
	idx      *index.Flat
	engine   *search.Engine
	manifest storage.Manifest
	origin   Origin
	build    *ingestion.Result
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider          ai.AIProvider
	store             storage.Store
	source            ingestion.Source
	monitor           search.QueryMonitor
	forceRebuild      bool
	rebuildOnMismatch bool
	progress          io.Writer
	logger            *slog.Logger
}

// WithProvider uses provider instead of the one selected by the embedding
// backend. The Assistant takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithStore uses store instead of the one selected by the store backend.
// The Assistant takes ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSource replaces the source directory walk used by the build path.
func WithSource(src ingestion.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithMonitor attaches a query monitor to the engine.
func WithMonitor(monitor search.QueryMonitor) Option {
	return func(o *options) {
		o.monitor = monitor
	}
}

// WithForceRebuild builds a new index even if a valid one is persisted.
func WithForceRebuild() Option {
	return func(o *options) {
		o.forceRebuild = true
	}
}

// WithRebuildOnModelMismatch rebuilds instead of failing when the persisted
// index was made with a different embedding model.
func WithRebuildOnModelMismatch() Option {
	return func(o *options) {
		o.rebuildOnMismatch = true
	}
}

// WithProgress writes embedding progress to w during builds.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open prepares an Assistant from cfg. A nil cfg uses config.Default().
//
// If the store holds a valid index built with the configured embedding
// model it is loaded. A missing or inconsistent store triggers a build
// from the source directory, which is then saved. A store built with a
// different model returns core.ErrModelMismatch unless
// WithRebuildOnModelMismatch is given.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Assistant, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Assistant{
		cfg:      cfg,
		source:   o.source,
		monitor:  o.monitor,
		progress: o.progress,
		logger:   o.logger.With("component", "assistant"),
	}

	var err error
	a.provider = o.provider
	if a.provider == nil {
		if a.provider, err = NewProvider(cfg.AIConfig()); err != nil {
			return nil, err
		}
	}
	a.store = o.store
	if a.store == nil {
		if a.store, err = OpenStore(cfg.Store); err != nil {
			a.provider.Close()
			return nil, err
		}
	}

	if err := a.loadOrBuild(ctx, o.forceRebuild, o.rebuildOnMismatch); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewProvider selects the AI provider for cfg.EmbeddingBackend.
func NewProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	switch cfg.EmbeddingBackend {
	case ai.BackendOpenAI:
		return openai.NewProvider(cfg)
	default:
		return fastembed.NewProvider(cfg)
	}
}

// OpenStore opens the store selected by cfg.Backend at cfg.Dir.
func OpenStore(cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return file.NewStore(cfg.Dir), nil
	case config.BackendBadger:
		return badger.NewStore(cfg.Dir, false)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", core.ErrInvalidConfig, cfg.Backend)
	}
}

func (a *Assistant) loadOrBuild(ctx context.Context, force, rebuildOnMismatch bool) error {
	if force {
		a.logger.Info("rebuild requested", "location", a.store.Location())
		return a.rebuild(ctx)
	}

	snap, err := a.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrMissingStore):
		a.logger.Info("no persisted index, building", "location", a.store.Location())
		return a.rebuild(ctx)
	case errors.Is(err, core.ErrInconsistentStore):
		a.logger.Warn("persisted index is inconsistent, rebuilding", "location", a.store.Location(), "err", err)
		return a.rebuild(ctx)
	default:
		return err
	}

	embedder := a.provider.Embedder()
	if err := snap.Manifest.CheckModel(embedder.ModelID(), embedder.Dimension()); err != nil {
		if !rebuildOnMismatch {
			return err
		}
		a.logger.Warn("persisted index uses another embedding model, rebuilding", "err", err)
		return a.rebuild(ctx)
	}

	idx, err := index.Restore(snap.Manifest.Dimension, snap.Vectors, snap.Records)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrInconsistentStore, err)
	}
	engine, err := a.newEngine(idx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.idx, a.engine, a.manifest, a.origin, a.build = idx, engine, snap.Manifest, OriginLoaded, nil
	a.mu.Unlock()

	a.logger.Info("loaded persisted index",
		"passages", idx.Len(),
		"build_id", snap.Manifest.BuildID,
		"location", a.store.Location())
	return nil
}

// Rebuild discards the live index, builds a new one from the source
// directory and saves it. Queries keep using the old index until the new
// one is saved.
func (a *Assistant) Rebuild(ctx context.Context) (*ingestion.Result, error) {
	if err := a.rebuild(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.build, nil
}

func (a *Assistant) rebuild(ctx context.Context) error {
	ch, err := chunker.New(a.cfg.Chunk.MaxLength, a.cfg.Chunk.Overlap)
	if err != nil {
		return err
	}

	embedder := a.provider.Embedder()
	pipeline, err := ingestion.NewPipeline(ch, embedder,
		ingestion.WithBatchSize(a.cfg.Embedding.BatchSize),
		ingestion.WithProgress(a.progress),
		ingestion.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	src := a.source
	if src == nil {
		src, err = source.NewDirectory(a.cfg.Source.Dir,
			source.WithWorkers(a.cfg.Source.Workers),
			source.WithLogger(a.logger))
		if err != nil {
			return err
		}
	}

	idx := index.New()
	result, err := pipeline.Build(ctx, src, idx, a.store)
	if err != nil {
		return err
	}
	engine, err := a.newEngine(idx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.idx, a.engine, a.manifest, a.origin, a.build = idx, engine, result.Manifest, OriginBuilt, result
	a.mu.Unlock()

	return nil
}

func (a *Assistant) newEngine(idx *index.Flat) (*search.Engine, error) {
	opts := []search.Option{
		search.WithSynthesizer(a.provider.Synthesizer()),
		search.WithDefaultTopK(a.cfg.Query.TopK),
		search.WithLogger(a.logger),
	}
	if a.cfg.Query.PromptTemplate != "" {
		opts = append(opts, search.WithPromptTemplate(a.cfg.Query.PromptTemplate))
	}
	if a.monitor != nil {
		opts = append(opts, search.WithMonitor(a.monitor))
	}
	return search.NewEngine(a.provider.Embedder(), idx, opts...)
}

func (a *Assistant) current() *search.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// DefaultTopK returns the configured number of passages per query.
func (a *Assistant) DefaultTopK() int {
	return a.cfg.Query.TopK
}

// Search returns the topK passages nearest to query.
func (a *Assistant) Search(ctx context.Context, query string, topK int) ([]core.SearchHit, error) {
	engine := a.current()
	var hits []core.SearchHit
	err := a.withRetry(ctx, func() error {
		var err error
		hits, err = engine.Retrieve(ctx, query, topK)
		return err
	})
	return hits, err
}

// Ask retrieves topK passages and has the synthesizer answer query from
// them. Embedding and synthesis failures are retried with backoff. The
// whole call is bounded by the synthesis timeout when one is configured.
func (a *Assistant) Ask(ctx context.Context, query string, topK int) (*search.Answer, error) {
	if timeout := a.cfg.Synthesis.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	engine := a.current()
	var answer *search.Answer
	err := a.withRetry(ctx, func() error {
		var err error
		answer, err = engine.Answer(ctx, query, topK)
		return err
	})
	return answer, err
}

func (a *Assistant) withRetry(ctx context.Context, op func() error) error {
	return retry.RetryWithBackoff(ctx, op, a.cfg.Retry.MaxAttempts, a.cfg.Retry.BaseDelay,
		retry.WithRetryIf(isServiceError),
		retry.WithLogger(a.logger))
}

func isServiceError(err error) bool {
	return errors.Is(err, core.ErrEmbeddingService) || errors.Is(err, core.ErrSynthesisService)
}

// Stats describes the live index.
type Stats struct {
	Origin    Origin
	Location  string
	ModelID   string
	Dimension int
	Passages  int
	BuildID   string
	CreatedAt time.Time
}

// Stats returns a description of the live index.
func (a *Assistant) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Stats{
		Origin:    a.origin,
		Location:  a.store.Location(),
		ModelID:   a.manifest.ModelID,
		Dimension: a.manifest.Dimension,
		Passages:  a.idx.Len(),
		BuildID:   a.manifest.BuildID,
		CreatedAt: a.manifest.CreatedAt,
	}
}

// Close releases the AI provider and the store.
func (a *Assistant) Close() error {
	var errs []error
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
