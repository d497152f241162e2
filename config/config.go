package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/viant/vecindex/storage"
)

// Config holds the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Indexes   []IndexConfig   `yaml:"indexes" toml:"indexes"`
	Ingest    IngestConfig    `yaml:"ingest,omitempty" toml:"ingest"`
	Storage   storage.Config  `yaml:"storage,omitempty" toml:"storage"`
	Logging   LoggingConfig   `yaml:"logging,omitempty" toml:"logging"`
	Watch     WatchConfig     `yaml:"watch,omitempty" toml:"watch"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path to the SQLite database file holding documents, vectors and
	// index snapshots. Default: ~/.vecindex/vecindex.db
	Path      string `yaml:"path,omitempty" toml:"path"`
	DatasetID string `yaml:"dataset_id,omitempty" toml:"dataset_id"`
	// VectorStore is "sqlite" (default), "badger" or "memory".
	VectorStore string `yaml:"vector_store,omitempty" toml:"vector_store"`
	VectorTable string `yaml:"vector_table,omitempty" toml:"vector_table"`
	BadgerDir   string `yaml:"badger_dir,omitempty" toml:"badger_dir"`
	// Shadow and log tables of the SQLite document source.
	ShadowTable string `yaml:"shadow_table,omitempty" toml:"shadow_table"`
	LogTable    string `yaml:"log_table,omitempty" toml:"log_table"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider" toml:"provider"` // "openai" or any OpenAI-compatible endpoint
	APIKey   string `yaml:"api_key,omitempty" toml:"api_key"`
	// APIKeyEnv names the environment variable read when APIKey is empty.
	APIKeyEnv  string   `yaml:"api_key_env,omitempty" toml:"api_key_env"`
	BaseURL    string   `yaml:"base_url,omitempty" toml:"base_url"`
	Model      string   `yaml:"model" toml:"model"`
	Version    string   `yaml:"version,omitempty" toml:"version"`
	Dimensions int      `yaml:"dimensions" toml:"dimensions"`
	Timeout    Duration `yaml:"timeout,omitempty" toml:"timeout"`
	// RatePerSecond throttles embedding requests; zero disables throttling.
	RatePerSecond float64 `yaml:"rate_per_second,omitempty" toml:"rate_per_second"`
	Burst         int     `yaml:"burst,omitempty" toml:"burst"`
}

// IndexConfig declares a named vector index.
type IndexConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Metric string `yaml:"metric,omitempty" toml:"metric"`
	Kind   string `yaml:"kind,omitempty" toml:"kind"`
	// StaleReads serves the previous structure while rebuilding.
	StaleReads bool `yaml:"stale_reads,omitempty" toml:"stale_reads"`
	// Options are "key=value" structure tunables, e.g. "hnsw_m=16".
	Options []string `yaml:"options,omitempty" toml:"options"`
}

// IngestConfig tunes the ingest pipeline.
type IngestConfig struct {
	Keys           []string `yaml:"keys,omitempty" toml:"keys"`
	Workers        int      `yaml:"workers,omitempty" toml:"workers"`
	QueueSize      int      `yaml:"queue_size,omitempty" toml:"queue_size"`
	MaxChunkSize   int      `yaml:"max_chunk_size,omitempty" toml:"max_chunk_size"`
	MaxAttempts    int      `yaml:"max_attempts,omitempty" toml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff,omitempty" toml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff,omitempty" toml:"max_backoff"`
	CallTimeout    Duration `yaml:"call_timeout,omitempty" toml:"call_timeout"`
	PollInterval   Duration `yaml:"poll_interval,omitempty" toml:"poll_interval"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug | info | warn | error
	Format string `yaml:"format,omitempty" toml:"format"` // text | json
}

// WatchConfig exposes a directory tree as a document source.
type WatchConfig struct {
	Root        string   `yaml:"root,omitempty" toml:"root"`
	Include     []string `yaml:"include,omitempty" toml:"include"`
	Exclude     []string `yaml:"exclude,omitempty" toml:"exclude"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty" toml:"max_file_size"`
}

// DefaultPath returns ~/.vecindex/config.yaml.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vecindex", "config.yaml")
	}
	return filepath.Join(homeDir, ".vecindex", "config.yaml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFromFile(DefaultPath())
}

// LoadFromFile loads configuration from a specific file. Files ending in
// .toml are parsed as TOML, everything else as YAML.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RequestedPath: path, DefaultPath: DefaultPath()}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return Parse(data, format)
}

// Parse decodes data in the given format ("yaml" or "toml"), applies
// defaults and validates the result.
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no
// indexes declared.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// NotFoundError is returned when the config file is missing.
type NotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s (default location: %s)", e.RequestedPath, e.DefaultPath)
}

// IsNotFound reports whether err is a missing config file.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	var rest string
	switch {
	case path == "~" || path == "$HOME":
	case strings.HasPrefix(path, "~/"):
		rest = path[2:]
	case strings.HasPrefix(path, "$HOME/"):
		rest = path[6:]
	default:
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, rest)
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "~/.vecindex/vecindex.db"
	}
	c.Database.Path = expandPath(c.Database.Path)
	if c.Database.VectorStore == "" {
		c.Database.VectorStore = "sqlite"
	}
	if c.Database.VectorTable == "" {
		c.Database.VectorTable = "vec_vectors"
	}
	if c.Database.BadgerDir == "" {
		c.Database.BadgerDir = filepath.Join(filepath.Dir(c.Database.Path), "badger")
	}
	c.Database.BadgerDir = expandPath(c.Database.BadgerDir)
	if c.Database.ShadowTable == "" {
		c.Database.ShadowTable = "vec_documents"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.APIKeyEnv == "" {
		c.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.RatePerSecond > 0 && c.Embedding.Burst == 0 {
		c.Embedding.Burst = 1
	}

	for i := range c.Indexes {
		if c.Indexes[i].Metric == "" {
			c.Indexes[i].Metric = "cosine"
		}
		if c.Indexes[i].Kind == "" {
			c.Indexes[i].Kind = "auto"
		}
	}

	if c.Storage.Kind == "" {
		c.Storage.Kind = "local"
	}
	if c.Storage.Kind == "local" && c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(filepath.Dir(c.Database.Path), "snapshots")
	}
	c.Storage.Dir = expandPath(c.Storage.Dir)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Watch.Root != "" {
		c.Watch.Root = expandPath(c.Watch.Root)
	}
}
