package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vector"
)

// ErrEmptyText is reported for documents whose configured field is missing
// or empty. It matches vector.ErrNotFound under errors.Is.
var ErrEmptyText = fmt.Errorf("ingest: field %w", vector.ErrNotFound)

// DocumentChanged announces a change of one field of one document.
type DocumentChanged struct {
	ID      string
	Key     string
	Content string
	Parent  string
	Deleted bool
}

// Events expands documents into one event per configured key.
func Events(docs []source.Document, keys []string) []DocumentChanged {
	out := make([]DocumentChanged, 0, len(docs)*len(keys))
	for _, doc := range docs {
		for _, key := range keys {
			ev := DocumentChanged{ID: doc.ID, Key: key, Parent: doc.Parent, Deleted: doc.Deleted}
			if !doc.Deleted {
				ev.Content, _ = doc.Text(key)
			}
			out = append(out, ev)
		}
	}
	return out
}

// Index is the part of a vector index the pipeline writes to.
type Index interface {
	Upsert(embedder string, e index.Entry) error
	Remove(id, key string) error
}

// Indexes writes every change to each index in turn. Errors from
// individual indexes are joined; the remaining indexes are still written.
type Indexes []Index

func (m Indexes) Upsert(embedder string, e index.Entry) error {
	var errs []error
	for _, ix := range m {
		if err := ix.Upsert(embedder, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Indexes) Remove(id, key string) error {
	var errs []error
	for _, ix := range m {
		if err := ix.Remove(id, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Failure records a document that could not be indexed.
type Failure struct {
	ID  string
	Key string
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.ID, f.Key, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report summarizes one Ingest call.
type Report struct {
	RunID   string
	Indexed int
	Deleted int
	Failed  []Failure
	Elapsed time.Duration
}

// Err joins every failure, or returns nil when all documents succeeded.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Pipeline embeds changed documents and writes them to a store and index.
type Pipeline struct {
	store    vector.Store
	idx      Index
	embedder embed.Embedder
	cfg      Config
	logger   *slog.Logger
}

// NewPipeline validates its collaborators and applies config defaults.
func NewPipeline(store vector.Store, idx Index, embedder embed.Embedder, cfg Config) (*Pipeline, error) {
	if store == nil || idx == nil || embedder == nil {
		return nil, errors.New("ingest: store, index and embedder are required")
	}
	cfg.applyDefaults()
	return &Pipeline{
		store:    store,
		idx:      idx,
		embedder: embedder,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "ingest", "embedder", embedder.Identifier()),
	}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

type run struct {
	mu     sync.Mutex
	report Report
	done   int
	notify func(int)
}

func (r *run) indexed() { r.finish(func(rep *Report) { rep.Indexed++ }) }
func (r *run) deleted() { r.finish(func(rep *Report) { rep.Deleted++ }) }

func (r *run) failed(ev DocumentChanged, err error) {
	r.finish(func(rep *Report) { rep.Failed = append(rep.Failed, Failure{ID: ev.ID, Key: ev.Key, Err: err}) })
}

func (r *run) finish(update func(*Report)) {
	r.mu.Lock()
	update(&r.report)
	r.done++
	done := r.done
	r.mu.Unlock()
	if r.notify != nil {
		r.notify(done)
	}
}

// Ingest processes events and waits for all of them. Events for the same
// (ID, Key) are applied in order. The returned error is non-nil only when
// ctx ends before every event was processed; per-document failures are in
// the report.
func (p *Pipeline) Ingest(ctx context.Context, events []DocumentChanged) (*Report, error) {
	started := time.Now()
	r := &run{report: Report{RunID: uuid.NewString()}, notify: p.cfg.OnProgress}
	logger := p.logger.With("run", r.report.RunID)

	workers := min(p.cfg.Workers, max(len(events), 1))
	depth := max(p.cfg.QueueSize/workers, 1)
	queues := make([]chan DocumentChanged, workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan DocumentChanged, depth)
		wg.Add(1)
		go func(q <-chan DocumentChanged) {
			defer wg.Done()
			p.work(ctx, q, r, logger)
		}(queues[i])
	}

	var err error
feed:
	for _, ev := range events {
		select {
		case queues[route(ev, workers)] <- ev:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	for _, q := range queues {
		close(q)
	}
	wg.Wait()

	r.report.Elapsed = time.Since(started)
	logger.Info("ingest finished",
		"indexed", r.report.Indexed,
		"deleted", r.report.Deleted,
		"failed", len(r.report.Failed),
		"elapsed", r.report.Elapsed)
	if err == nil {
		err = ctx.Err()
	}
	return &r.report, err
}

func route(ev DocumentChanged, n int) int {
	h := fnv.New32a()
	h.Write([]byte(ev.ID))
	h.Write([]byte{0})
	h.Write([]byte(ev.Key))
	return int(h.Sum32() % uint32(n))
}

// work drains q, grouping consecutive upserts into chunks. A delete flushes
// the pending chunk first so per-key ordering holds.
func (p *Pipeline) work(ctx context.Context, q <-chan DocumentChanged, r *run, logger *slog.Logger) {
	chunk := make([]DocumentChanged, 0, p.cfg.MaxChunkSize)
	flush := func() {
		if len(chunk) > 0 {
			p.upsertChunk(ctx, chunk, r, logger)
			chunk = chunk[:0]
		}
	}
	for {
		ev, ok := <-q
		if !ok {
			flush()
			return
		}
		if ctx.Err() != nil {
			r.failed(ev, ctx.Err())
			continue
		}
		if ev.Deleted {
			flush()
			p.remove(ctx, ev, r, logger)
			continue
		}
		chunk = append(chunk, ev)
		if len(chunk) >= p.cfg.MaxChunkSize || len(q) == 0 {
			flush()
		}
	}
}

func (p *Pipeline) remove(ctx context.Context, ev DocumentChanged, r *run, logger *slog.Logger) {
	if err := p.store.Delete(ctx, ev.ID, ev.Key); err != nil {
		logger.Warn("delete from store", "id", ev.ID, "key", ev.Key, "error", err)
		r.failed(ev, err)
		return
	}
	if err := p.idx.Remove(ev.ID, ev.Key); err != nil {
		logger.Warn("remove from index", "id", ev.ID, "key", ev.Key, "error", err)
		r.failed(ev, err)
		return
	}
	r.deleted()
}

func (p *Pipeline) upsertChunk(ctx context.Context, chunk []DocumentChanged, r *run, logger *slog.Logger) {
	pending := make([]DocumentChanged, 0, len(chunk))
	for _, ev := range chunk {
		if ev.Content == "" {
			p.dropEmpty(ctx, ev, r, logger)
			continue
		}
		pending = append(pending, ev)
	}
	if len(pending) == 0 {
		return
	}
	if len(pending) > 1 {
		texts := make([]string, len(pending))
		for i, ev := range pending {
			texts[i] = ev.Content
		}
		vecs, err := p.embedOnce(ctx, texts)
		if err == nil {
			for i, ev := range pending {
				p.write(ctx, ev, vecs[i], r, logger)
			}
			return
		}
		if ctx.Err() != nil {
			for _, ev := range pending {
				r.failed(ev, ctx.Err())
			}
			return
		}
		logger.Debug("batch embedding failed, embedding documents one by one", "size", len(pending), "error", err)
	}
	for _, ev := range pending {
		vec, err := p.embedWithRetry(ctx, ev, logger)
		if err != nil {
			logger.Warn("embedding failed", "id", ev.ID, "key", ev.Key, "error", err)
			r.failed(ev, err)
			continue
		}
		p.write(ctx, ev, vec, r, logger)
	}
}

// dropEmpty removes the entry of a document whose field was emptied, so a
// previous vector does not outlive its content, and reports ErrEmptyText.
func (p *Pipeline) dropEmpty(ctx context.Context, ev DocumentChanged, r *run, logger *slog.Logger) {
	err := p.store.Delete(ctx, ev.ID, ev.Key)
	if err == nil {
		err = p.idx.Remove(ev.ID, ev.Key)
	}
	if err != nil {
		logger.Warn("remove emptied field", "id", ev.ID, "key", ev.Key, "error", err)
		r.failed(ev, errors.Join(ErrEmptyText, err))
		return
	}
	r.failed(ev, ErrEmptyText)
}

func (p *Pipeline) write(ctx context.Context, ev DocumentChanged, vec []float32, r *run, logger *slog.Logger) {
	rec := vector.Record{ID: ev.ID, Key: ev.Key, Parent: ev.Parent, Vector: vec, Embedder: p.embedder.Identifier()}
	if err := p.store.Put(ctx, rec); err != nil {
		logger.Warn("store put", "id", ev.ID, "key", ev.Key, "error", err)
		r.failed(ev, err)
		return
	}
	entry := index.Entry{ID: ev.ID, Key: ev.Key, Parent: ev.Parent, Vector: vec}
	if err := p.idx.Upsert(p.embedder.Identifier(), entry); err != nil {
		logger.Warn("index upsert", "id", ev.ID, "key", ev.Key, "error", err)
		r.failed(ev, err)
		return
	}
	r.indexed()
}

// embedOnce makes a single bounded embedding call.
func (p *Pipeline) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	if p.cfg.Limiter != nil {
		if err := p.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	vecs, err := p.embedder.EmbedBatch(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, &embed.ProviderError{
			Provider: p.embedder.Identifier(),
			Err:      fmt.Errorf("returned %d vectors for %d texts", len(vecs), len(texts)),
		}
	}
	return vecs, nil
}

// embedWithRetry embeds one document, retrying transient failures with
// exponential backoff.
func (p *Pipeline) embedWithRetry(ctx context.Context, ev DocumentChanged, logger *slog.Logger) ([]float32, error) {
	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		var vecs [][]float32
		vecs, err = p.embedOnce(ctx, []string{ev.Content})
		if err == nil {
			return vecs[0], nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !embed.IsTransient(err) {
			return nil, err
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}
		delay := p.cfg.backoff(attempt)
		logger.Debug("retrying embedding", "id", ev.ID, "key", ev.Key, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("ingest: gave up after %d attempts: %w", p.cfg.MaxAttempts, err)
}
