package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Defaults for locating configuration.
const (
	DefaultConfigFile = "docrag.yaml"
	DefaultEnvFile    = ".env"
	EnvPrefix         = "DOCRAG_"

	maxConfigFileSize = 1024 * 1024
)

type loadSettings struct {
	envFile   string
	envPrefix string
}

// LoadOption configures Load.
type LoadOption func(*loadSettings)

// WithEnvFile sets the .env file to read. An empty path disables it.
func WithEnvFile(path string) LoadOption {
	return func(s *loadSettings) {
		s.envFile = path
	}
}

// WithEnvPrefix sets the prefix of environment overrides.
func WithEnvPrefix(prefix string) LoadOption {
	return func(s *loadSettings) {
		s.envPrefix = prefix
	}
}

// Load builds the configuration from defaults, the YAML file at path, the
// .env file and the environment, then validates it.
//
// With an empty path, DefaultConfigFile in the working directory is used if
// it exists. A path that is given explicitly must exist.
func Load(path string, opts ...LoadOption) (*Config, error) {
	s := loadSettings{envFile: DefaultEnvFile, envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&s)
	}

	if s.envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(s.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", s.envFile, err)
		}
	}

	k := koanf.New(".")

	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	prefix := s.envPrefix
	if err := k.Load(env.Provider(prefix, ".", func(key string) string {
		return envKey(prefix, key)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Synthesis.APIKey == "" {
		cfg.Synthesis.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps PREFIX_SECTION_FIELD_NAME to section.field_name.
func envKey(prefix, key string) string {
	lower := strings.ToLower(strings.TrimPrefix(key, prefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Marshal renders cfg as YAML. Durations are written in their string form.
// API keys are never written.
func Marshal(cfg *Config) ([]byte, error) {
	out := *cfg
	out.Embedding.APIKey = ""
	out.Synthesis.APIKey = ""
	return yamlv3.Marshal(yamlConfig{Config: &out})
}

// Write saves cfg as YAML to path, creating parent directories. An existing
// file is only replaced when overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// yamlConfig wraps Config so durations marshal as "1s" instead of
// nanosecond integers.
type yamlConfig struct {
	*Config
}

func (y yamlConfig) MarshalYAML() (any, error) {
	type synthesis struct {
		Host        string  `yaml:"host"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens,omitempty"`
		Timeout     string  `yaml:"timeout"`
	}
	type retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
	}
	c := y.Config
	return struct {
		Store     StoreConfig     `yaml:"store"`
		Source    SourceConfig    `yaml:"source"`
		Chunk     ChunkConfig     `yaml:"chunk"`
		Embedding EmbeddingConfig `yaml:"embedding"`
		Synthesis synthesis       `yaml:"synthesis"`
		Query     QueryConfig     `yaml:"query"`
		Retry     retry           `yaml:"retry"`
	}{
		Store:     c.Store,
		Source:    c.Source,
		Chunk:     c.Chunk,
		Embedding: c.Embedding,
		Synthesis: synthesis{
			Host:        c.Synthesis.Host,
			Model:       c.Synthesis.Model,
			Temperature: c.Synthesis.Temperature,
			MaxTokens:   c.Synthesis.MaxTokens,
			Timeout:     formatDuration(c.Synthesis.Timeout),
		},
		Query: c.Query,
		Retry: retry{
			MaxAttempts: c.Retry.MaxAttempts,
			BaseDelay:   formatDuration(c.Retry.BaseDelay),
		},
	}, nil
}

func formatDuration(d time.Duration) string {
	return d.String()
}
