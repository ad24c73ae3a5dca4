package ai

import "context"

// Embedder generates vector embeddings from text for nearest-neighbor search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// An empty string still yields a vector of Dimension() elements.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of the vectors produced by the model.
	// Remote backends that were not told their dimension report 0 until the
	// first successful call.
	Dimension() int

	// ModelID identifies the model. Vectors produced under different model
	// IDs are not comparable.
	ModelID() string
}

// Synthesizer turns a prompt that embeds a query and retrieved context into
// a natural-language answer.
type Synthesizer interface {
	// Synthesize sends the prompt to the language model and returns its reply.
	Synthesize(ctx context.Context, prompt string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider is constructed once per process and owns the loaded model.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Synthesizer returns the answer synthesis service.
	Synthesizer() Synthesizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
