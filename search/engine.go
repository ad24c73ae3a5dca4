package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index"
)

// Defaults for a new Engine.
const (
	DefaultTopK      = 5
	DefaultDelimiter = "\n\n"
)

var defaultPrompt = template.Must(ParsePromptTemplate(DefaultPromptTemplate))

// Engine runs retrieval queries against an index.
// It is safe for concurrent use if its embedder and synthesizer are.
type Engine struct {
	embedder    ai.Embedder
	index       *index.Flat
	synthesizer ai.Synthesizer
	defaultTopK int
	delimiter   string
	prompt      *template.Template
	noResult    string
	monitor     QueryMonitor
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithSynthesizer sets the answer synthesizer used by Answer.
func WithSynthesizer(synthesizer ai.Synthesizer) Option {
	return func(e *Engine) error {
		e.synthesizer = synthesizer
		return nil
	}
}

// WithDefaultTopK sets the number of passages callers should retrieve when
// they have no preference.
func WithDefaultTopK(k int) Option {
	return func(e *Engine) error {
		if err := core.ValidateTopK(k); err != nil {
			return err
		}
		e.defaultTopK = k
		return nil
	}
}

// WithDelimiter sets the separator placed between passages in the context.
func WithDelimiter(delimiter string) Option {
	return func(e *Engine) error {
		e.delimiter = delimiter
		return nil
	}
}

// WithPromptTemplate sets the text/template used to build the synthesis
// prompt from .Query and .Context.
func WithPromptTemplate(text string) Option {
	return func(e *Engine) error {
		tmpl, err := ParsePromptTemplate(text)
		if err != nil {
			return err
		}
		e.prompt = tmpl
		return nil
	}
}

// WithNoResultAnswer sets the reply used when nothing is retrieved.
func WithNoResultAnswer(text string) Option {
	return func(e *Engine) error {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: no-result answer must not be empty", core.ErrInvalidConfig)
		}
		e.noResult = text
		return nil
	}
}

// WithMonitor sets the query monitor.
func WithMonitor(monitor QueryMonitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a query engine over idx. The embedder must be the one
// the index was built with.
func NewEngine(embedder ai.Embedder, idx *index.Flat, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	e := &Engine{
		embedder:    embedder,
		index:       idx,
		defaultTopK: DefaultTopK,
		delimiter:   DefaultDelimiter,
		prompt:      defaultPrompt,
		noResult:    DefaultNoResultAnswer,
		monitor:     &noopMonitor{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")

	return e, nil
}

// DefaultTopK returns the configured default number of passages.
func (e *Engine) DefaultTopK() int {
	return e.defaultTopK
}

// Answer is the result of a query.
type Answer struct {
	Query string
	// Text is the synthesized answer, or the no-result reply.
	Text string
	// Hits are the retrieved passages in ranked order.
	Hits []core.SearchHit
	// Context is the text handed to the synthesizer.
	Context string
	// Sentinel is set when nothing was retrieved and Text is the no-result reply.
	Sentinel bool
}

// Retrieve embeds query and returns up to topK hits ordered by ascending
// squared distance. An empty index yields no hits.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]core.SearchHit, error) {
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}
	e.monitor.Start(query)
	return e.retrieve(ctx, query, topK)
}

func (e *Engine) retrieve(ctx context.Context, query string, topK int) ([]core.SearchHit, error) {
	vector, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		e.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, wrapService(core.ErrEmbeddingService, err)
	}
	e.monitor.AfterEmbedding(query, len(vector))

	hits, err := e.index.Search(vector, topK)
	if err != nil {
		e.logger.Error("error searching index", "err", err)
		return nil, err
	}
	e.monitor.AfterSearch(query, hits)

	e.logger.Debug("retrieved passages", "query", query, "top_k", topK, "hits", len(hits))
	return hits, nil
}

// Context joins the texts of hits in ranked order. Hits without text are
// skipped.
func (e *Engine) Context(hits []core.SearchHit) string {
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		if text := hit.Text(); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, e.delimiter)
}

// Answer retrieves up to topK passages and asks the synthesizer to answer
// query from them. If nothing is retrieved the synthesizer is not called
// and the no-result reply is returned with Sentinel set.
func (e *Engine) Answer(ctx context.Context, query string, topK int) (*Answer, error) {
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}

	e.monitor.Start(query)

	hits, err := e.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Query: query, Hits: hits, Context: e.Context(hits)}
	if answer.Context == "" {
		answer.Text = e.noResult
		answer.Sentinel = true
		e.logger.Info("no relevant passages", "query", query)
		e.monitor.Finish(answer)
		return answer, nil
	}

	if e.synthesizer == nil {
		return nil, ErrSynthesizerRequired
	}

	prompt, err := renderPrompt(e.prompt, query, answer.Context)
	if err != nil {
		return nil, err
	}
	e.monitor.BeforeSynthesis(query, prompt)

	text, err := e.synthesizer.Synthesize(ctx, prompt)
	if err != nil {
		e.logger.Error("error synthesizing answer", "query", query, "err", err)
		return nil, wrapService(core.ErrSynthesisService, err)
	}
	answer.Text = text

	e.monitor.Finish(answer)
	return answer, nil
}

// wrapService tags err with kind unless it already carries it or is a
// context error.
func wrapService(kind, err error) error {
	if errors.Is(err, kind) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
