package bruteforce

import (
	"fmt"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/vector"
)

// Index is an exact scan over every entry. Magnitudes are cached so cosine
// scoring costs one dot product per entry.
type Index struct {
	metric  vector.Metric
	dim     int
	entries []index.Entry
	mags    []float64
	pos     map[[2]string]int
}

// New creates an empty brute-force index for metric.
func New(metric vector.Metric) (*Index, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	return &Index{metric: metric, pos: map[[2]string]int{}}, nil
}

// Build loads entries and precomputes magnitudes.
func (i *Index) Build(entries []index.Entry) error {
	entries = index.Dedup(entries)
	dim, err := index.Validate(i.metric, 0, entries)
	if err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	i.dim = dim
	i.entries = make([]index.Entry, len(entries))
	i.mags = make([]float64, len(entries))
	i.pos = make(map[[2]string]int, len(entries))
	for j, e := range entries {
		i.entries[j] = e
		i.mags[j] = vector.Magnitude(e.Vector)
		i.pos[[2]string{e.ID, e.Key}] = j
	}
	return nil
}

func (i *Index) Upsert(e index.Entry) error {
	if _, err := index.Validate(i.metric, i.dim, []index.Entry{e}); err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	if i.dim == 0 {
		i.dim = len(e.Vector)
	}
	k := [2]string{e.ID, e.Key}
	if j, ok := i.pos[k]; ok {
		i.entries[j] = e
		i.mags[j] = vector.Magnitude(e.Vector)
		return nil
	}
	i.pos[k] = len(i.entries)
	i.entries = append(i.entries, e)
	i.mags = append(i.mags, vector.Magnitude(e.Vector))
	return nil
}

// Remove swaps the last entry into the removed slot.
func (i *Index) Remove(id, key string) error {
	k := [2]string{id, key}
	j, ok := i.pos[k]
	if !ok {
		return nil
	}
	last := len(i.entries) - 1
	if j != last {
		i.entries[j] = i.entries[last]
		i.mags[j] = i.mags[last]
		i.pos[[2]string{i.entries[j].ID, i.entries[j].Key}] = j
	}
	i.entries[last] = index.Entry{}
	i.entries = i.entries[:last]
	i.mags = i.mags[:last]
	delete(i.pos, k)
	return nil
}

// Search returns the top-k entries by the index metric.
func (i *Index) Search(query []float32, k int) ([]index.Hit, error) {
	if len(i.entries) == 0 {
		return nil, nil
	}
	if err := vector.CheckDimension(query, i.dim); err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	if err := i.metric.CheckVector(query); err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	qm := vector.Magnitude(query)
	hits := make([]index.Hit, 0, len(i.entries))
	for j, e := range i.entries {
		s, err := i.metric.ScoreWithNorms(query, e.Vector, qm, i.mags[j])
		if err != nil {
			return nil, fmt.Errorf("bruteforce: %w", err)
		}
		hits = append(hits, e.Hit(s))
	}
	return index.TopK(hits, k), nil
}

func (i *Index) Entries() []index.Entry {
	return append([]index.Entry(nil), i.entries...)
}

func (i *Index) Len() int { return len(i.entries) }

func (i *Index) Dimension() int { return i.dim }

func (i *Index) Metric() vector.Metric { return i.metric }

// Scan scores entries against query under metric without building an
// index. It is the exact fallback used when a query asks for a metric other
// than the one an index was built with.
func Scan(entries []index.Entry, query []float32, k int, metric vector.Metric) ([]index.Hit, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if err := metric.CheckVector(query); err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	qm := vector.Magnitude(query)
	hits := make([]index.Hit, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != len(query) {
			return nil, fmt.Errorf("bruteforce: %w", vector.DimensionError(len(query), len(e.Vector)))
		}
		s, err := metric.ScoreWithNorms(query, e.Vector, qm, vector.Magnitude(e.Vector))
		if err != nil {
			return nil, fmt.Errorf("bruteforce: %w", err)
		}
		hits = append(hits, e.Hit(s))
	}
	return index.TopK(hits, k), nil
}

var _ index.Index = (*Index)(nil)
