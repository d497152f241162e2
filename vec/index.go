package vec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/index/bruteforce"
	"github.com/viant/vecindex/vector"
)

// Meta describes a vector index.
type Meta struct {
	Name string
	// Embedder is the "provider/model@version" identifier of the embedder
	// the indexed vectors were produced with.
	Embedder  string
	Metric    vector.Metric
	Kind      Kind
	Dimension int
	CreatedAt time.Time
}

func (m *Meta) normalize() error {
	if m.Name == "" {
		return errors.New("vec: index name is required")
	}
	if m.Metric == "" {
		m.Metric = vector.Cosine
	}
	if err := m.Metric.Validate(); err != nil {
		return err
	}
	k, err := ParseKind(string(m.Kind))
	if err != nil {
		return err
	}
	m.Kind = k
	if m.Dimension < 0 {
		return fmt.Errorf("vec: negative dimension %d", m.Dimension)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

type op struct {
	remove bool
	entry  index.Entry
}

// Index is a named vector index with a lifecycle state machine. It is safe
// for concurrent use: searches run in parallel under a read lock while
// writes and structure swaps take the write lock.
type Index struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	meta     Meta
	state    State
	current  index.Index
	resolved Kind
	building bool
	pending  string
	journal  []op
	reason   string
	builtAt  time.Time
}

// New creates an Unbuilt index. An empty metric means cosine and an empty
// kind means auto.
func New(meta Meta, opts Options) (*Index, error) {
	if err := meta.normalize(); err != nil {
		return nil, err
	}
	if meta.Kind == KindCover && meta.Metric == vector.Dot {
		return nil, fmt.Errorf("vec: %s: %w: cover tree cannot serve %s", meta.Name, index.ErrUnsupportedMetric, meta.Metric)
	}
	return &Index{
		opts:   opts,
		logger: opts.logger().With("index", meta.Name),
		meta:   meta,
	}, nil
}

// Name returns the index name.
func (ix *Index) Name() string { return ix.meta.Name }

// Meta returns a copy of the index metadata.
func (ix *Index) Meta() Meta {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.meta
}

// State returns the current lifecycle state.
func (ix *Index) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// StaleReason returns the reason recorded by the last MarkStale.
func (ix *Index) StaleReason() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.reason
}

// Kind returns the concrete structure kind of the published structure, or
// the configured kind before the first build.
func (ix *Index) Kind() Kind {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.resolved != "" {
		return ix.resolved
	}
	return ix.meta.Kind
}

// BuiltAt returns when the published structure was swapped in.
func (ix *Index) BuiltAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.builtAt
}

// Len returns the number of entries in the published structure.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return 0
	}
	return ix.current.Len()
}

// Build rebuilds the index from the records in store that belong to the
// current embedder. Records labelled with another embedder are skipped;
// unlabelled records are taken as is.
func (ix *Index) Build(ctx context.Context, store vector.Store) error {
	embedder := ix.Meta().Embedder
	return ix.build(ctx, embedder, ix.storeLoader(store, embedder))
}

// Reembed rebuilds the index from store after its vectors were recomputed
// with a different embedder. Only records of that embedder are loaded; the
// identifier and dimension are replaced on success.
func (ix *Index) Reembed(ctx context.Context, store vector.Store, embedder string) error {
	return ix.build(ctx, embedder, ix.storeLoader(store, embedder))
}

// BuildEntries rebuilds the index from entries.
func (ix *Index) BuildEntries(ctx context.Context, entries []index.Entry) error {
	return ix.build(ctx, ix.Meta().Embedder, func(context.Context) ([]index.Entry, error) {
		return entries, nil
	})
}

func (ix *Index) storeLoader(store vector.Store, embedder string) func(context.Context) ([]index.Entry, error) {
	return func(ctx context.Context) ([]index.Entry, error) {
		var entries []index.Entry
		skipped := 0
		for rec, err := range store.Iterate(ctx) {
			if err != nil {
				return nil, err
			}
			if rec.Embedder != "" && rec.Embedder != embedder {
				skipped++
				continue
			}
			entries = append(entries, index.Entry{ID: rec.ID, Key: rec.Key, Parent: rec.Parent, Vector: rec.Vector})
		}
		if skipped > 0 {
			ix.logger.Warn("skipped records of another embedder", "embedder", embedder, "skipped", skipped)
		}
		return entries, nil
	}
}

func (ix *Index) build(ctx context.Context, embedder string, load func(context.Context) ([]index.Entry, error)) error {
	ix.mu.Lock()
	if ix.building {
		ix.mu.Unlock()
		return fmt.Errorf("vec: %s: %w", ix.meta.Name, ErrBuildInProgress)
	}
	prev := ix.state
	ix.building = true
	ix.pending = embedder
	ix.journal = nil
	if ix.current == nil {
		ix.state = Building
	} else {
		ix.state = Rebuilding
	}
	dim := ix.meta.Dimension
	if embedder != ix.meta.Embedder {
		dim = 0
	}
	phase := ix.state
	ix.mu.Unlock()

	started := time.Now()
	ix.logger.Info("build started", "state", phase.String(), "embedder", embedder)
	next, kind, err := ix.construct(ctx, dim, load)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	journal := ix.journal
	ix.journal = nil
	ix.building = false
	ix.pending = ""
	if err != nil {
		ix.state = prev
		ix.logger.Warn("build failed", "error", err, "state", prev.String())
		return fmt.Errorf("vec: build %s: %w", ix.meta.Name, err)
	}
	for _, o := range journal {
		if err := apply(next, o); err != nil {
			ix.logger.Warn("drop journaled write", "id", o.entry.ID, "key", o.entry.Key, "error", err)
		}
	}
	ix.current = next
	ix.resolved = kind
	ix.meta.Embedder = embedder
	if d := next.Dimension(); d > 0 {
		ix.meta.Dimension = d
	}
	ix.state = Ready
	ix.reason = ""
	ix.builtAt = time.Now().UTC()
	ix.logger.Info("build finished",
		"kind", string(kind),
		"entries", next.Len(),
		"replayed", len(journal),
		"elapsed", time.Since(started))
	return nil
}

// construct loads entries and builds a new structure without holding the
// lock.
func (ix *Index) construct(ctx context.Context, dim int, load func(context.Context) ([]index.Entry, error)) (index.Index, Kind, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	entries, err := load(ctx)
	if err != nil {
		return nil, "", err
	}
	entries = index.Dedup(entries)
	if dim, err = index.Validate(ix.meta.Metric, dim, entries); err != nil {
		return nil, "", err
	}
	kind := ResolveKind(ix.meta.Kind, ix.meta.Metric, len(entries), dim)
	next, err := ix.opts.newStructure(kind, ix.meta.Metric)
	if err != nil {
		return nil, "", err
	}
	if err := next.Build(entries); err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return next, kind, nil
}

func apply(target index.Index, o op) error {
	if o.remove {
		return target.Remove(o.entry.ID, o.entry.Key)
	}
	return target.Upsert(o.entry)
}

// Upsert inserts or replaces an entry produced by the named embedder.
//
// Before the first build the call is a no-op: the vector store is the source
// of truth and the first build picks the entry up. During a build the write
// is journaled for the new structure and, under stale reads, also applied to
// the published one. A Ready or Stale index rejects vectors from a different
// embedder with embed.ErrEmbeddingVersionMismatch and becomes Stale.
func (ix *Index) Upsert(embedder string, e index.Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.checkEntryLocked(e); err != nil {
		return err
	}
	switch {
	case ix.building:
		if embedder != ix.pending {
			return ix.mismatchLocked(embedder, ix.pending)
		}
		ix.journal = append(ix.journal, op{entry: e})
		if ix.current != nil && embedder == ix.meta.Embedder {
			if err := ix.current.Upsert(e); err != nil {
				ix.logger.Warn("upsert into published structure", "id", e.ID, "key", e.Key, "error", err)
			}
		}
		return nil
	case ix.state == Unbuilt:
		return nil
	}
	if embedder != ix.meta.Embedder {
		ix.markStaleLocked(fmt.Sprintf("received vectors from %s", embedder))
		return ix.mismatchLocked(embedder, ix.meta.Embedder)
	}
	if err := ix.current.Upsert(e); err != nil {
		return fmt.Errorf("vec: %s: %w", ix.meta.Name, err)
	}
	if ix.meta.Dimension == 0 {
		ix.meta.Dimension = len(e.Vector)
	}
	return nil
}

func (ix *Index) checkEntryLocked(e index.Entry) error {
	dim := ix.meta.Dimension
	if ix.building && ix.pending != ix.meta.Embedder {
		dim = 0
	}
	if _, err := index.Validate(ix.meta.Metric, dim, []index.Entry{e}); err != nil {
		return fmt.Errorf("vec: %s: %w", ix.meta.Name, err)
	}
	return nil
}

func (ix *Index) mismatchLocked(got, want string) error {
	return fmt.Errorf("vec: %s: %w: got %q, want %q", ix.meta.Name, embed.ErrEmbeddingVersionMismatch, got, want)
}

// Remove deletes an entry; missing entries are a no-op.
func (ix *Index) Remove(id, key string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	switch {
	case ix.building:
		ix.journal = append(ix.journal, op{remove: true, entry: index.Entry{ID: id, Key: key}})
		if ix.current != nil {
			if err := ix.current.Remove(id, key); err != nil {
				ix.logger.Warn("remove from published structure", "id", id, "key", key, "error", err)
			}
		}
		return nil
	case ix.current == nil:
		return nil
	}
	if err := ix.current.Remove(id, key); err != nil {
		return fmt.Errorf("vec: %s: %w", ix.meta.Name, err)
	}
	return nil
}

// MarkStale flags a Ready index as out of date with its upstream schema or
// embedding model. Searches keep being served until the next build.
func (ix *Index) MarkStale(reason string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.markStaleLocked(reason)
}

func (ix *Index) markStaleLocked(reason string) {
	if ix.state != Ready {
		return
	}
	ix.state = Stale
	ix.reason = reason
	ix.logger.Warn("index marked stale", "reason", reason)
}

// SearchOptions refine a search.
type SearchOptions struct {
	// Metric overrides the index metric; a different metric is served by an
	// exact scan.
	Metric vector.Metric
	// Exact bypasses the structure and scans every entry.
	Exact bool
}

// Search returns the k best entries for query under metric (empty means the
// index metric). k <= 0 returns every entry.
func (ix *Index) Search(ctx context.Context, query []float32, k int, metric vector.Metric) ([]index.Hit, error) {
	return ix.SearchWith(ctx, query, k, SearchOptions{Metric: metric})
}

// SearchExact is Search with an exhaustive scan.
func (ix *Index) SearchExact(ctx context.Context, query []float32, k int, metric vector.Metric) ([]index.Hit, error) {
	return ix.SearchWith(ctx, query, k, SearchOptions{Metric: metric, Exact: true})
}

// SearchWith runs a search under the read lock.
func (ix *Index) SearchWith(ctx context.Context, query []float32, k int, opts SearchOptions) ([]index.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	cur, err := ix.readableLocked()
	if err != nil {
		return nil, err
	}
	metric := opts.Metric
	if metric == "" {
		metric = ix.meta.Metric
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if err := vector.CheckDimension(query, ix.meta.Dimension); err != nil {
		return nil, fmt.Errorf("vec: %s: %w", ix.meta.Name, err)
	}
	var hits []index.Hit
	if opts.Exact || metric != cur.Metric() {
		hits, err = bruteforce.Scan(cur.Entries(), query, k, metric)
	} else {
		hits, err = cur.Search(query, k)
	}
	if err != nil {
		return nil, fmt.Errorf("vec: %s: %w", ix.meta.Name, err)
	}
	return hits, nil
}

func (ix *Index) readableLocked() (index.Index, error) {
	if ix.state.Readable() {
		return ix.current, nil
	}
	if ix.opts.AllowStaleReads && ix.current != nil {
		return ix.current, nil
	}
	return nil, fmt.Errorf("vec: %s is %s: %w", ix.meta.Name, ix.state, ErrIndexNotReady)
}
