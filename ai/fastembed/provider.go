package fastembed

import (
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/openai"
)

// Provider implements ai.AIProvider with local embeddings and an
// OpenAI-compatible answer synthesizer.
type Provider struct {
	embedder    *Embedder
	synthesizer ai.Synthesizer
	logger      *slog.Logger
}

// NewProvider loads the local embedding model and connects the synthesizer.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	synthesizer, err := openai.NewSynthesizer(config)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		embedder:    embedder,
		synthesizer: synthesizer,
		logger:      slog.Default().With("component", "fastembed-provider"),
	}, nil
}

// Embedder returns the local embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Synthesizer returns the answer synthesis service.
func (p *Provider) Synthesizer() ai.Synthesizer {
	return p.synthesizer
}

// Close releases the loaded model.
func (p *Provider) Close() error {
	p.logger.Debug("closing fastembed provider")
	return p.embedder.Close()
}
