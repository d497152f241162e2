package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vector"
)

// DefaultN is the result count used when a request does not set N.
const DefaultN = 10

var (
	// ErrInvalidRequest is returned for requests with neither or both of
	// Text and Vector.
	ErrInvalidRequest = errors.New("query: invalid request")
)

// Request describes a similarity query. Exactly one of Text and Vector must
// be set.
type Request struct {
	Index  string
	Text   string
	Vector []float32
	// N is the number of results; zero means DefaultN.
	N int
	// Metric overrides the index metric; a different metric runs an exact
	// scan.
	Metric vector.Metric
	// Exact bypasses approximate structures.
	Exact bool
	// Embedder, when set, must match the identifier the index was built
	// with, for callers that embedded Vector themselves.
	Embedder string
}

// Result is a ranked hit joined with its document. Document is nil when the
// source no longer has the document or no source is configured.
type Result struct {
	ID       string
	Key      string
	Parent   string
	Score    float64
	Document *source.Document
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder registers an embedder under its identifier.
func WithEmbedder(e embed.Embedder) Option {
	return func(en *Engine) { en.embedders[e.Identifier()] = e }
}

// WithSource sets the document source joined with hits of the named index.
func WithSource(indexName string, src source.Source) Option {
	return func(en *Engine) { en.sources[indexName] = src }
}

// WithDefaultSource sets the source used for indexes without their own.
func WithDefaultSource(src source.Source) Option {
	return func(en *Engine) { en.fallback = src }
}

// WithEmbedTimeout bounds the query embedding call.
func WithEmbedTimeout(d time.Duration) Option {
	return func(en *Engine) { en.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) { en.logger = l }
}

// Engine runs queries. It never mutates indexes.
type Engine struct {
	registry *vec.Registry
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	embedders map[string]embed.Embedder
	sources   map[string]source.Source
	fallback  source.Source
}

// New creates an Engine over the indexes of registry.
func New(registry *vec.Registry, opts ...Option) *Engine {
	en := &Engine{
		registry:  registry,
		timeout:   30 * time.Second,
		logger:    slog.Default(),
		embedders: make(map[string]embed.Embedder),
		sources:   make(map[string]source.Source),
	}
	for _, opt := range opts {
		opt(en)
	}
	en.logger = en.logger.With("component", "query")
	return en
}

// RegisterEmbedder adds an embedder after construction.
func (en *Engine) RegisterEmbedder(e embed.Embedder) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.embedders[e.Identifier()] = e
}

// RegisterSource sets the source joined with hits of the named index.
func (en *Engine) RegisterSource(indexName string, src source.Source) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.sources[indexName] = src
}

func (en *Engine) lookup(indexName, embedder string) (embed.Embedder, source.Source) {
	en.mu.RLock()
	defer en.mu.RUnlock()
	src, ok := en.sources[indexName]
	if !ok {
		src = en.fallback
	}
	return en.embedders[embedder], src
}

// Query embeds the request text when needed, searches the index and joins
// the ranked hits with their documents. Any search or join failure aborts
// the query; partial rankings are never returned.
func (en *Engine) Query(ctx context.Context, req Request) ([]Result, error) {
	if (req.Text == "") == (len(req.Vector) == 0) {
		return nil, fmt.Errorf("%w: exactly one of text and vector is required", ErrInvalidRequest)
	}
	ix, err := en.registry.Get(req.Index)
	if err != nil {
		return nil, err
	}
	meta := ix.Meta()
	if req.Embedder != "" && req.Embedder != meta.Embedder {
		return nil, fmt.Errorf("query: index %s was built with %q, request uses %q: %w",
			meta.Name, meta.Embedder, req.Embedder, embed.ErrEmbeddingVersionMismatch)
	}
	emb, src := en.lookup(meta.Name, meta.Embedder)

	q := req.Vector
	if req.Text != "" {
		if emb == nil {
			return nil, fmt.Errorf("query: no embedder %q registered for index %s: %w",
				meta.Embedder, meta.Name, embed.ErrEmbeddingVersionMismatch)
		}
		callCtx, cancel := context.WithTimeout(ctx, en.timeout)
		q, err = embed.Embed(callCtx, emb, req.Text)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("query: embed: %w", err)
		}
	}

	n := req.N
	if n <= 0 {
		n = DefaultN
	}
	hits, err := ix.SearchWith(ctx, q, n, vec.SearchOptions{Metric: req.Metric, Exact: req.Exact})
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{ID: h.ID, Key: h.Key, Parent: h.Parent, Score: h.Score}
	}
	if src == nil {
		return results, nil
	}
	docs := make(map[string]*source.Document, len(hits))
	for i := range results {
		id := results[i].ID
		doc, seen := docs[id]
		if !seen {
			if doc, err = fetch(ctx, src, id); err != nil {
				return nil, fmt.Errorf("query: join %s: %w", id, err)
			}
			if doc == nil {
				en.logger.Debug("document missing from source", "index", meta.Name, "id", id)
			}
			docs[id] = doc
		}
		results[i].Document = doc
	}
	return results, nil
}

func fetch(ctx context.Context, src source.Source, id string) (*source.Document, error) {
	doc, err := src.FetchFull(ctx, id)
	if errors.Is(err, source.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
