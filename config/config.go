// Package config loads the application configuration.
//
// Values are resolved in this order, later sources winning:
//  1. Defaults (Default)
//  2. The YAML config file
//  3. Variables from a .env file, if present
//  4. DOCRAG_* environment variables
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix:
//
//	DOCRAG_STORE_DIR        -> store.dir
//	DOCRAG_QUERY_TOP_K      -> query.top_k
//	DOCRAG_SYNTHESIS_API_KEY -> synthesis.api_key
//
// GROQ_API_KEY is used for synthesis.api_key when that key is unset.
package config

import (
	"fmt"
	"time"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/chunker"
	"github.com/poiesic/docrag/core"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config is the application configuration.
type Config struct {
	Store     StoreConfig     `koanf:"store" yaml:"store"`
	Source    SourceConfig    `koanf:"source" yaml:"source"`
	Chunk     ChunkConfig     `koanf:"chunk" yaml:"chunk"`
	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Synthesis SynthesisConfig `koanf:"synthesis" yaml:"synthesis"`
	Query     QueryConfig     `koanf:"query" yaml:"query"`
	Retry     RetryConfig     `koanf:"retry" yaml:"retry"`
}

// StoreConfig locates the persisted index.
type StoreConfig struct {
	Dir     string `koanf:"dir" yaml:"dir"`
	Backend string `koanf:"backend" yaml:"backend"`
}

// SourceConfig locates the documents to index.
type SourceConfig struct {
	Dir     string `koanf:"dir" yaml:"dir"`
	Workers int    `koanf:"workers" yaml:"workers"`
}

// ChunkConfig sets passage length and overlap, in characters.
type ChunkConfig struct {
	MaxLength int `koanf:"max_length" yaml:"max_length"`
	Overlap   int `koanf:"overlap" yaml:"overlap"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Backend   string `koanf:"backend" yaml:"backend"`
	Model     string `koanf:"model" yaml:"model"`
	Host      string `koanf:"host" yaml:"host,omitempty"`
	APIKey    string `koanf:"api_key" yaml:"api_key,omitempty"`
	Dimension int    `koanf:"dimension" yaml:"dimension,omitempty"`
	CacheDir  string `koanf:"cache_dir" yaml:"cache_dir,omitempty"`
	BatchSize int    `koanf:"batch_size" yaml:"batch_size"`
}

// SynthesisConfig selects the hosted answer model.
type SynthesisConfig struct {
	Host        string        `koanf:"host" yaml:"host"`
	Model       string        `koanf:"model" yaml:"model"`
	APIKey      string        `koanf:"api_key" yaml:"api_key,omitempty"`
	Temperature float64       `koanf:"temperature" yaml:"temperature"`
	MaxTokens   int           `koanf:"max_tokens" yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	TopK           int    `koanf:"top_k" yaml:"top_k"`
	PromptTemplate string `koanf:"prompt_template" yaml:"prompt_template,omitempty"`
}

// RetryConfig controls retries of embedding and synthesis calls made while
// answering queries.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" yaml:"base_delay"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:     "docrag_store",
			Backend: BackendFile,
		},
		Source: SourceConfig{
			Dir:     "data",
			Workers: 4,
		},
		Chunk: ChunkConfig{
			MaxLength: chunker.DefaultMaxLength,
			Overlap:   chunker.DefaultOverlap,
		},
		Embedding: EmbeddingConfig{
			Backend:   ai.BackendFastEmbed,
			Model:     ai.DefaultEmbeddingModel,
			BatchSize: ai.DefaultBatchSize,
		},
		Synthesis: SynthesisConfig{
			Host:        ai.DefaultSynthesisHost,
			Model:       ai.DefaultSynthesisModel,
			Temperature: ai.DefaultTemperature,
			Timeout:     2 * time.Minute,
		},
		Query: QueryConfig{
			TopK: 5,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
	}
}

// AIConfig converts the embedding and synthesis sections to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingBackend(c.Embedding.Backend),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
		ai.WithEmbeddingDimension(c.Embedding.Dimension),
		ai.WithModelCacheDir(c.Embedding.CacheDir),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithSynthesisHost(c.Synthesis.Host),
		ai.WithSynthesisModel(c.Synthesis.Model),
		ai.WithSynthesisAPIKey(c.Synthesis.APIKey),
		ai.WithTemperature(c.Synthesis.Temperature),
		ai.WithMaxTokens(c.Synthesis.MaxTokens),
	}
	if c.Embedding.Host != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.Embedding.Host))
	}
	return ai.NewConfig(opts...)
}

// Validate checks the configuration. Errors wrap core.ErrInvalidConfig,
// core.ErrInvalidChunkConfig or core.ErrInvalidTopK.
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("%w: store.dir is required", core.ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case BackendFile, BackendBadger:
	default:
		return fmt.Errorf("%w: store.backend must be %q or %q, got %q",
			core.ErrInvalidConfig, BackendFile, BackendBadger, c.Store.Backend)
	}
	if c.Source.Dir == "" {
		return fmt.Errorf("%w: source.dir is required", core.ErrInvalidConfig)
	}
	if c.Source.Workers < 1 {
		return fmt.Errorf("%w: source.workers must be positive", core.ErrInvalidConfig)
	}
	if err := core.ValidateChunkParams(c.Chunk.MaxLength, c.Chunk.Overlap); err != nil {
		return err
	}
	if err := core.ValidateTopK(c.Query.TopK); err != nil {
		return err
	}
	if c.Synthesis.Timeout < 0 {
		return fmt.Errorf("%w: synthesis.timeout must not be negative", core.ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be positive", core.ErrInvalidConfig)
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("%w: retry.base_delay must not be negative", core.ErrInvalidConfig)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
	}
	return nil
}
