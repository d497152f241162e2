package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vector"
)

const embedderID = "local/axis@1"

// axisEmbedder maps a few words onto fixed 2-d vectors.
func axisEmbedder(id string) embed.Embedder {
	return embed.FromFunc(id, 2, func(_ context.Context, text string) ([]float32, error) {
		switch text {
		case "east":
			return []float32{1, 0}, nil
		case "north":
			return []float32{0, 1}, nil
		}
		return nil, errors.New("unknown word")
	})
}

func newFixture(t *testing.T) (*vec.Registry, *source.Memory) {
	t.Helper()
	reg := vec.NewRegistry()
	ix, err := reg.Create(vec.Meta{Name: "docs", Embedder: embedderID, Metric: vector.Cosine, Kind: vec.KindBrute}, vec.Options{})
	require.NoError(t, err)
	require.NoError(t, ix.BuildEntries(context.Background(), []index.Entry{
		{ID: "a", Key: "content", Parent: "p1", Vector: []float32{1, 0}},
		{ID: "b", Key: "content", Parent: "p1", Vector: []float32{0, 1}},
		{ID: "c", Key: "content", Parent: "p2", Vector: []float32{0.9, 0.1}},
	}))
	src := source.NewMemory(
		source.Document{ID: "a", Fields: map[string]any{"content": "alpha"}},
		source.Document{ID: "b", Fields: map[string]any{"content": "beta"}},
	)
	return reg, src
}

func TestQueryText(t *testing.T) {
	reg, src := newFixture(t)
	en := New(reg, WithEmbedder(axisEmbedder(embedderID)), WithSource("docs", src))

	results, err := en.Query(context.Background(), Request{Index: "docs", Text: "east", N: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "p2", results[1].Parent)

	require.NotNil(t, results[0].Document)
	text, ok := results[0].Document.Text("content")
	assert.True(t, ok)
	assert.Equal(t, "alpha", text)
	// c is indexed but gone from the source.
	assert.Nil(t, results[1].Document)
}

func TestQueryVector(t *testing.T) {
	reg, _ := newFixture(t)
	en := New(reg)

	results, err := en.Query(context.Background(), Request{Index: "docs", Vector: []float32{0, 1}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].ID)
	assert.Nil(t, results[0].Document)
}

func TestQueryMetricOverride(t *testing.T) {
	reg, _ := newFixture(t)
	en := New(reg)

	results, err := en.Query(context.Background(), Request{Index: "docs", Vector: []float32{1, 0}, N: 1, Metric: vector.Dot})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestQueryEmbedderMismatch(t *testing.T) {
	reg, _ := newFixture(t)

	en := New(reg, WithEmbedder(axisEmbedder("local/axis@2")))
	_, err := en.Query(context.Background(), Request{Index: "docs", Text: "east"})
	assert.ErrorIs(t, err, embed.ErrEmbeddingVersionMismatch)

	_, err = en.Query(context.Background(), Request{Index: "docs", Vector: []float32{1, 0}, Embedder: "local/axis@2"})
	assert.ErrorIs(t, err, embed.ErrEmbeddingVersionMismatch)
}

func TestQueryErrors(t *testing.T) {
	reg, _ := newFixture(t)
	en := New(reg, WithEmbedder(axisEmbedder(embedderID)))
	ctx := context.Background()

	_, err := en.Query(ctx, Request{Index: "docs"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = en.Query(ctx, Request{Index: "docs", Text: "east", Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = en.Query(ctx, Request{Index: "missing", Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, vector.ErrNotFound)

	_, err = en.Query(ctx, Request{Index: "docs", Vector: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)

	_, err = en.Query(ctx, Request{Index: "docs", Text: "south"})
	assert.Error(t, err)
}

func TestQueryNotReady(t *testing.T) {
	reg := vec.NewRegistry()
	_, err := reg.Create(vec.Meta{Name: "empty", Embedder: embedderID}, vec.Options{})
	require.NoError(t, err)

	en := New(reg)
	_, err = en.Query(context.Background(), Request{Index: "empty", Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, vec.ErrIndexNotReady)
}

type failingSource struct{ source.Source }

func (failingSource) FetchFull(context.Context, string) (source.Document, error) {
	return source.Document{}, errors.New("connection reset")
}

func TestQueryJoinFailureAborts(t *testing.T) {
	reg, _ := newFixture(t)
	en := New(reg, WithDefaultSource(failingSource{}))

	results, err := en.Query(context.Background(), Request{Index: "docs", Vector: []float32{1, 0}})
	assert.Error(t, err)
	assert.Nil(t, results)
}
