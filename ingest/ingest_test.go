package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/ingest"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vector"
)

const embedderID = "local/len@1"

// lengthEmbedder maps text to [len(text), 1] and fails on demand.
type lengthEmbedder struct {
	mu       sync.Mutex
	calls    map[string]int
	failWith func(text string, call int) error
	block    map[string]bool
}

func newLengthEmbedder() *lengthEmbedder {
	return &lengthEmbedder{calls: map[string]int{}, block: map[string]bool{}}
}

func (l *lengthEmbedder) embedder() embed.Embedder {
	return embed.FromFunc(embedderID, 2, func(ctx context.Context, text string) ([]float32, error) {
		l.mu.Lock()
		l.calls[text]++
		call := l.calls[text]
		block := l.block[text]
		l.mu.Unlock()
		if block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		if l.failWith != nil {
			if err := l.failWith(text, call); err != nil {
				return nil, err
			}
		}
		return []float32{float32(len(text)), 1}, nil
	})
}

func (l *lengthEmbedder) callsFor(text string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[text]
}

func newTarget(t *testing.T) (*vector.Memory, *vec.Index) {
	t.Helper()
	store := vector.NewMemory(0)
	idx, err := vec.New(vec.Meta{Name: "docs", Embedder: embedderID}, vec.Options{})
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), store))
	return store, idx
}

func fastConfig() ingest.Config {
	return ingest.Config{
		Workers:        3,
		MaxChunkSize:   4,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		CallTimeout:    time.Second,
	}
}

func changed(ids ...string) []ingest.DocumentChanged {
	out := make([]ingest.DocumentChanged, len(ids))
	for i, id := range ids {
		out[i] = ingest.DocumentChanged{ID: id, Key: "content", Content: "text of " + id}
	}
	return out
}

func TestPipeline_OneFailureKeepsOthers(t *testing.T) {
	ctx := context.Background()
	store, idx := newTarget(t)
	emb := newLengthEmbedder()
	emb.failWith = func(text string, _ int) error {
		if text == "text of d3" {
			return &embed.ProviderError{Provider: "test", StatusCode: 400, Err: errors.New("bad input")}
		}
		return nil
	}
	p, err := ingest.NewPipeline(store, idx, emb.embedder(), fastConfig())
	require.NoError(t, err)

	report, err := p.Ingest(ctx, changed("d1", "d2", "d3", "d4", "d5", "d6"))
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 5, report.Indexed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "d3", report.Failed[0].ID)
	assert.Error(t, report.Err())
	// fatal errors are not retried: one chunk call at most, then one single call
	assert.LessOrEqual(t, emb.callsFor("text of d3"), 2)

	assert.Equal(t, 5, store.Len())
	_, err = store.Get(ctx, "d3", "content")
	assert.ErrorIs(t, err, vector.ErrNotFound)

	hits, err := idx.Search(ctx, []float32{9, 1}, 0, "")
	require.NoError(t, err)
	assert.Len(t, hits, 5)
	for _, h := range hits {
		assert.NotEqual(t, "d3", h.ID)
	}
}

func TestPipeline_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	store, idx := newTarget(t)
	emb := newLengthEmbedder()
	emb.failWith = func(text string, call int) error {
		switch {
		case text == "flaky" && call <= 2:
			return &embed.ProviderError{Provider: "test", StatusCode: 429, Transient: true, Err: errors.New("slow down")}
		case text == "down":
			return &embed.ProviderError{Provider: "test", StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
		}
		return nil
	}
	cfg := fastConfig()
	cfg.Workers = 1
	cfg.MaxChunkSize = 1
	p, err := ingest.NewPipeline(store, idx, emb.embedder(), cfg)
	require.NoError(t, err)

	report, err := p.Ingest(ctx, []ingest.DocumentChanged{
		{ID: "f", Key: "content", Content: "flaky"},
		{ID: "d", Key: "content", Content: "down"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "d", report.Failed[0].ID)
	assert.True(t, embed.IsTransient(report.Failed[0].Err))
	assert.Equal(t, 3, emb.callsFor("flaky"))
	assert.Equal(t, 3, emb.callsFor("down"))
}

func TestPipeline_TimeoutIsRetryableFailure(t *testing.T) {
	ctx := context.Background()
	store, idx := newTarget(t)
	emb := newLengthEmbedder()
	emb.block["hang"] = true
	cfg := fastConfig()
	cfg.MaxChunkSize = 1
	cfg.CallTimeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2
	p, err := ingest.NewPipeline(store, idx, emb.embedder(), cfg)
	require.NoError(t, err)

	report, err := p.Ingest(ctx, []ingest.DocumentChanged{
		{ID: "slow", Key: "content", Content: "hang"},
		{ID: "fast", Key: "content", Content: "quick"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, context.DeadlineExceeded)
	assert.Equal(t, 2, emb.callsFor("hang"))
}

func TestPipeline_DeleteAndMissingField(t *testing.T) {
	ctx := context.Background()
	store, idx := newTarget(t)
	emb := newLengthEmbedder()
	var progress []int
	var mu sync.Mutex
	cfg := fastConfig()
	cfg.OnProgress = func(done int) {
		mu.Lock()
		progress = append(progress, done)
		mu.Unlock()
	}
	p, err := ingest.NewPipeline(store, idx, emb.embedder(), cfg)
	require.NoError(t, err)

	_, err = p.Ingest(ctx, changed("a", "b"))
	require.NoError(t, err)

	report, err := p.Ingest(ctx, []ingest.DocumentChanged{
		{ID: "a", Key: "content", Deleted: true},
		{ID: "c", Key: "content"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, vector.ErrNotFound)

	hits, err := idx.Search(ctx, []float32{1, 0}, 0, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
	_, err = store.Get(ctx, "a", "content")
	assert.ErrorIs(t, err, vector.ErrNotFound)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, progress, 4)
}

func TestPipeline_Cancelled(t *testing.T) {
	store, idx := newTarget(t)
	p, err := ingest.NewPipeline(store, idx, newLengthEmbedder().embedder(), fastConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Ingest(ctx, changed("a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestEvents(t *testing.T) {
	docs := []source.Document{
		{ID: "1", Parent: "p", Fields: map[string]any{"title": "t", "body": "b"}},
		{ID: "2", Deleted: true},
	}
	events := ingest.Events(docs, []string{"title", "body"})
	require.Len(t, events, 4)
	assert.Equal(t, ingest.DocumentChanged{ID: "1", Key: "title", Content: "t", Parent: "p"}, events[0])
	assert.Equal(t, "b", events[1].Content)
	assert.True(t, events[2].Deleted)
	assert.Equal(t, "body", events[3].Key)
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	_, err := ingest.NewPipeline(nil, nil, nil, ingest.Config{})
	assert.Error(t, err)
}

func TestIndexes_FanOut(t *testing.T) {
	ctx := context.Background()
	store, first := newTarget(t)
	second, err := vec.New(vec.Meta{Name: "other", Embedder: embedderID, Metric: vector.Euclidean}, vec.Options{})
	require.NoError(t, err)
	require.NoError(t, second.Build(ctx, store))
	stale, err := vec.New(vec.Meta{Name: "stale", Embedder: "local/len@0"}, vec.Options{})
	require.NoError(t, err)
	require.NoError(t, stale.Build(ctx, store))

	p, err := ingest.NewPipeline(store, ingest.Indexes{first, second}, newLengthEmbedder().embedder(), fastConfig())
	require.NoError(t, err)
	report, err := p.Ingest(ctx, changed("d1", "d2"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 2, second.Len())

	targets := ingest.Indexes{first, stale}
	err = targets.Upsert(embedderID, index.Entry{ID: "d3", Key: "content", Vector: []float32{1, 1}})
	assert.ErrorIs(t, err, embed.ErrEmbeddingVersionMismatch)
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, vec.Stale, stale.State())

	require.NoError(t, ingest.Indexes{first, second}.Remove("d1", "content"))
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 1, second.Len())
}

func TestPipeline_EmptiedFieldDropsVector(t *testing.T) {
	ctx := context.Background()
	store, idx := newTarget(t)
	p, err := ingest.NewPipeline(store, idx, newLengthEmbedder().embedder(), fastConfig())
	require.NoError(t, err)

	_, err = p.Ingest(ctx, changed("a", "b"))
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	report, err := p.Ingest(ctx, []ingest.DocumentChanged{{ID: "a", Key: "content"}})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, ingest.ErrEmptyText)

	assert.Equal(t, 1, idx.Len())
	_, err = store.Get(ctx, "a", "content")
	assert.ErrorIs(t, err, vector.ErrNotFound)
}

func TestPipeline_OtherEmbedderStaysOutOfRebuild(t *testing.T) {
	ctx := context.Background()
	store, idx := newTarget(t)
	p, err := ingest.NewPipeline(store, idx, newLengthEmbedder().embedder(), fastConfig())
	require.NoError(t, err)
	_, err = p.Ingest(ctx, changed("x"))
	require.NoError(t, err)

	other := embed.FromFunc("local/other@1", 2, func(context.Context, string) ([]float32, error) {
		return []float32{100, 1}, nil
	})
	q, err := ingest.NewPipeline(store, idx, other, fastConfig())
	require.NoError(t, err)
	report, err := q.Ingest(ctx, changed("y"))
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, embed.ErrEmbeddingVersionMismatch)
	assert.Equal(t, vec.Stale, idx.State())

	rec, err := store.Get(ctx, "y", "content")
	require.NoError(t, err)
	assert.Equal(t, "local/other@1", rec.Embedder)

	require.NoError(t, idx.Build(ctx, store))
	assert.Equal(t, vec.Ready, idx.State())
	assert.Equal(t, embedderID, idx.Meta().Embedder)
	hits, err := idx.Search(ctx, []float32{100, 1}, 0, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].ID)

	require.NoError(t, idx.Reembed(ctx, store, "local/other@1"))
	hits, err = idx.Search(ctx, []float32{100, 1}, 0, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "y", hits[0].ID)
}
