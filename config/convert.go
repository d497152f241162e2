package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/ingest"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vector"
)

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Logger builds a slog logger writing to w.
func (l LoggingConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Embedder builds the configured embedding provider, throttled when a rate
// is set.
func (e EmbeddingConfig) Embedder() (embed.Embedder, error) {
	key := e.APIKey
	if key == "" && e.APIKeyEnv != "" {
		key = os.Getenv(e.APIKeyEnv)
	}
	if key == "" && e.BaseURL == "" {
		return nil, fmt.Errorf("embedding: api key not set (api_key or $%s)", e.APIKeyEnv)
	}
	opts := []embed.Option{
		embed.WithModel(e.Model),
		embed.WithDimension(e.Dimensions),
	}
	if e.Version != "" {
		opts = append(opts, embed.WithVersion(e.Version))
	}
	if e.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(e.BaseURL))
	}
	if e.Timeout > 0 {
		opts = append(opts, embed.WithTimeout(e.Timeout.Std()))
	}
	var out embed.Embedder = embed.NewOpenAI(key, opts...)
	if e.RatePerSecond > 0 {
		out = embed.NewLimited(out, e.RatePerSecond, e.Burst)
	}
	return out, nil
}

// Identifier returns the identifier the configured embedder reports,
// without constructing a client.
func (e EmbeddingConfig) Identifier() string {
	return embed.Identifier(e.Provider, e.Model, e.Version)
}

// Meta returns the index metadata and options declared by ix for indexes
// built with embedder.
func (ix IndexConfig) Meta(embedder string, logger *slog.Logger) (vec.Meta, vec.Options, error) {
	metric, err := vector.ParseMetric(ix.Metric)
	if err != nil {
		return vec.Meta{}, vec.Options{}, err
	}
	kind, opts := vec.ParseOptions(ix.Options)
	declared, err := vec.ParseKind(ix.Kind)
	if err != nil {
		return vec.Meta{}, vec.Options{}, err
	}
	if declared != vec.KindAuto {
		kind = declared
	}
	opts.AllowStaleReads = opts.AllowStaleReads || ix.StaleReads
	opts.Logger = logger
	return vec.Meta{Name: ix.Name, Embedder: embedder, Metric: metric, Kind: kind}, opts, nil
}

// Pipeline converts the ingest section to an ingest.Config. Zero values
// are left for the pipeline defaults.
func (in IngestConfig) Pipeline(logger *slog.Logger) ingest.Config {
	return ingest.Config{
		Keys:           in.Keys,
		Workers:        in.Workers,
		QueueSize:      in.QueueSize,
		MaxChunkSize:   in.MaxChunkSize,
		MaxAttempts:    in.MaxAttempts,
		InitialBackoff: in.InitialBackoff.Std(),
		MaxBackoff:     in.MaxBackoff.Std(),
		CallTimeout:    in.CallTimeout.Std(),
		PollInterval:   in.PollInterval.Std(),
		Logger:         logger,
	}
}

// WatcherOptions converts the watch section for source.NewWatcher.
func (w WatchConfig) WatcherOptions(logger *slog.Logger) source.WatcherOptions {
	return source.WatcherOptions{
		Root:        w.Root,
		Include:     w.Include,
		Exclude:     w.Exclude,
		MaxFileSize: w.MaxFileSize,
		Logger:      logger,
	}
}
