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


package ai

import (
	"errors"
	"strings"
)

// Embedding backends.
const (
	// BackendFastEmbed runs the sentence-transformer locally through ONNX.
	BackendFastEmbed = "fastembed"
	// BackendOpenAI calls an OpenAI-compatible embeddings endpoint.
	BackendOpenAI = "openai"
)

// Defaults for the local embedding model and the hosted answer model.
const (
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultSynthesisHost  = "https://api.groq.com/openai/v1"
	DefaultSynthesisModel = "llama-3.1-8b-instant"
	DefaultBatchSize      = 64
	DefaultTemperature    = 0.2
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingBackend selects the embedder implementation: "fastembed" or "openai".
	EmbeddingBackend string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// It fixes the vector dimension and must match between build and query.
	EmbeddingModel string

	// EmbeddingHost is the base URL for the embedding service API.
	// Only used by the "openai" backend.
	EmbeddingHost string

	// EmbeddingAPIKey authenticates against EmbeddingHost. Empty for local servers.
	EmbeddingAPIKey string

	// EmbeddingDimension declares the vector dimension of a remote model.
	// Zero means it is learned from the first response.
	EmbeddingDimension int

	// ModelCacheDir is where the local backend stores downloaded model files.
	ModelCacheDir string

	// BatchSize is the number of texts sent to the embedder per call.
	BatchSize int

	// SynthesisHost is the base URL of the OpenAI-compatible chat API.
	SynthesisHost string

	// SynthesisModel is the chat model used to compose answers.
	SynthesisModel string

	// SynthesisAPIKey authenticates against SynthesisHost.
	SynthesisAPIKey string

	// Temperature is the sampling temperature for answer synthesis.
	Temperature float64

	// MaxTokens caps the answer length. Zero uses the provider default.
	MaxTokens int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingBackend sets the embedding backend.
func WithEmbeddingBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBackend = backend
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingAPIKey sets the embedding service API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithEmbeddingDimension declares the dimension of a remote embedding model.
func WithEmbeddingDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimension = dim
	}
}

// WithModelCacheDir sets the local model cache directory.
func WithModelCacheDir(dir string) ConfigOption {
	return func(c *Config) {
		c.ModelCacheDir = dir
	}
}

// WithBatchSize sets the embedding batch size.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithSynthesisHost sets the chat service host URL.
func WithSynthesisHost(host string) ConfigOption {
	return func(c *Config) {
		c.SynthesisHost = host
	}
}

// WithSynthesisModel sets the chat model identifier.
func WithSynthesisModel(model string) ConfigOption {
	return func(c *Config) {
		c.SynthesisModel = model
	}
}

// WithSynthesisAPIKey sets the chat service API key.
func WithSynthesisAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.SynthesisAPIKey = key
	}
}

// WithTemperature sets the sampling temperature for answer synthesis.
func WithTemperature(temperature float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithMaxTokens caps the length of synthesized answers.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// DefaultConfig returns a Config that embeds locally with all-MiniLM-L6-v2
// and synthesizes answers with a Groq-hosted Llama model.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingBackend: BackendFastEmbed,
		EmbeddingModel:   DefaultEmbeddingModel,
		EmbeddingHost:    "http://localhost:11434/v1",
		BatchSize:        DefaultBatchSize,
		SynthesisHost:    DefaultSynthesisHost,
		SynthesisModel:   DefaultSynthesisModel,
		Temperature:      DefaultTemperature,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingBackend(BackendOpenAI),
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ModelID returns the identity recorded with persisted indexes. It combines
// backend and model because the same model name served by different runtimes
// need not produce identical vectors.
func (c *Config) ModelID() string {
	return c.EmbeddingBackend + ":" + c.EmbeddingModel
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which OpenAI-compatible APIs require.
func (c *Config) Normalize() {
	c.EmbeddingBackend = strings.ToLower(strings.TrimSpace(c.EmbeddingBackend))
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.SynthesisHost = normalizeHost(c.SynthesisHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.EmbeddingBackend {
	case BackendFastEmbed:
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required for the openai backend")
		}
	default:
		return errors.New("ai config: EmbeddingBackend must be fastembed or openai")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.EmbeddingDimension < 0 {
		return errors.New("ai config: EmbeddingDimension must not be negative")
	}
	if c.BatchSize <= 0 {
		return errors.New("ai config: BatchSize must be greater than 0")
	}
	if c.SynthesisHost == "" {
		return errors.New("ai config: SynthesisHost is required")
	}
	if c.SynthesisModel == "" {
		return errors.New("ai config: SynthesisModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return errors.New("ai config: MaxTokens must not be negative")
	}
	return nil
}
