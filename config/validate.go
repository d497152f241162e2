package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vector"
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Database.VectorStore {
	case "sqlite", "badger", "memory":
	default:
		add("database.vector_store: unknown store %q", c.Database.VectorStore)
	}

	if c.Embedding.Provider != "openai" {
		add("embedding.provider: unsupported provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		add("embedding.dimensions: must not be negative")
	}
	if c.Embedding.RatePerSecond < 0 {
		add("embedding.rate_per_second: must not be negative")
	}

	seen := make(map[string]bool, len(c.Indexes))
	for i, ix := range c.Indexes {
		name := strings.TrimSpace(ix.Name)
		if name == "" {
			add("indexes[%d].name: required", i)
			continue
		}
		if seen[name] {
			add("indexes[%d].name: duplicate index %q", i, name)
		}
		seen[name] = true
		metric, err := vector.ParseMetric(ix.Metric)
		if err != nil {
			add("indexes[%d].metric: %w", i, err)
		}
		kind, err := vec.ParseKind(ix.Kind)
		if err != nil {
			add("indexes[%d].kind: %w", i, err)
		}
		if kind == vec.KindCover && metric == vector.Dot {
			add("indexes[%d]: cover index does not support the dot metric", i)
		}
	}

	in := c.Ingest
	for name, v := range map[string]int{
		"workers":        in.Workers,
		"queue_size":     in.QueueSize,
		"max_chunk_size": in.MaxChunkSize,
		"max_attempts":   in.MaxAttempts,
	} {
		if v < 0 {
			add("ingest.%s: must not be negative", name)
		}
	}

	switch c.Storage.Kind {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			add("storage.bucket: required for s3 storage")
		}
	default:
		add("storage.kind: unknown kind %q", c.Storage.Kind)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		add("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format: unknown format %q", c.Logging.Format)
	}

	for _, p := range append(append([]string{}, c.Watch.Include...), c.Watch.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			add("watch: invalid pattern %q", p)
		}
	}
	return errors.Join(errs...)
}
