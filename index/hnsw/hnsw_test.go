package hnsw

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/index/bruteforce"
	"github.com/viant/vecindex/vector"
)

func randomEntries(rng *rand.Rand, n, dim int) []index.Entry {
	out := make([]index.Entry, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = index.Entry{ID: fmt.Sprintf("doc-%04d", i), Key: "content", Vector: v}
	}
	return out
}

func randomQuery(rng *rand.Rand, dim int) []float32 {
	q := make([]float32, dim)
	for j := range q {
		q[j] = rng.Float32()*2 - 1
	}
	return q
}

func TestRecallAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	entries := randomEntries(rng, 1000, 16)

	h, err := New(vector.Cosine, Config{})
	require.NoError(t, err)
	require.NoError(t, h.Build(entries))
	bf, err := bruteforce.New(vector.Cosine)
	require.NoError(t, err)
	require.NoError(t, bf.Build(entries))

	const k, queries = 10, 50
	found := 0
	for q := 0; q < queries; q++ {
		query := randomQuery(rng, 16)
		want, err := bf.Search(query, k)
		require.NoError(t, err)
		got, err := h.Search(query, k)
		require.NoError(t, err)
		require.Len(t, got, k)
		truth := map[string]bool{}
		for _, w := range want {
			truth[w.ID] = true
		}
		for _, g := range got {
			if truth[g.ID] {
				found++
			}
		}
	}
	recall := float64(found) / float64(k*queries)
	require.GreaterOrEqual(t, recall, 0.9, "recall@10 = %.3f", recall)
}

func TestBuildIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	entries := randomEntries(rng, 300, 8)
	shuffled := append([]index.Entry(nil), entries...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a, _ := New(vector.Euclidean, Config{EfSearch: 10})
	b, _ := New(vector.Euclidean, Config{EfSearch: 10})
	require.NoError(t, a.Build(entries))
	require.NoError(t, b.Build(shuffled))
	for q := 0; q < 20; q++ {
		query := randomQuery(rng, 8)
		ra, err := a.Search(query, 5)
		require.NoError(t, err)
		rb, err := b.Search(query, 5)
		require.NoError(t, err)
		require.Equal(t, ra, rb)
	}
}

func TestStructureRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	entries := randomEntries(rng, 200, 8)
	h, _ := New(vector.Dot, Config{M: 8, EfSearch: 8})
	require.NoError(t, h.Build(entries[:150]))
	for _, e := range entries[150:] {
		require.NoError(t, h.Upsert(e))
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, h.Remove(entries[i*3].ID, entries[i*3].Key))
	}

	sorted := h.Entries()
	index.SortEntries(sorted)
	data, err := h.MarshalStructure(sorted)
	require.NoError(t, err)

	restored, _ := New(vector.Dot, Config{M: 8, EfSearch: 8})
	require.NoError(t, restored.RestoreStructure(sorted, data))
	require.Equal(t, h.Len(), restored.Len())
	for q := 0; q < 20; q++ {
		query := randomQuery(rng, 8)
		want, err := h.Search(query, 5)
		require.NoError(t, err)
		got, err := restored.Search(query, 5)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	require.ErrorIs(t, restored.RestoreStructure(sorted, data[:len(data)-2]), index.ErrCorruptSnapshot)
}

func TestRemoveNeverReturned(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	entries := randomEntries(rng, 100, 4)
	h, _ := New(vector.Cosine, Config{})
	require.NoError(t, h.Build(entries))
	require.NoError(t, h.Upsert(index.Entry{ID: "target", Key: "content", Vector: []float32{1, 1, 1, 1}}))
	require.NoError(t, h.Remove("target", "content"))
	require.NoError(t, h.Remove("target", "content"))

	hits, err := h.Search([]float32{1, 1, 1, 1}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 100)
	for _, hit := range hits {
		require.NotEqual(t, "target", hit.ID)
	}
}
