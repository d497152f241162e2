package index

import (
	"errors"
	"sort"

	"github.com/viant/vecindex/vector"
)

// ErrUnsupportedMetric is returned when an index implementation cannot serve
// the requested metric.
var ErrUnsupportedMetric = errors.New("index: unsupported metric")

// Entry is a single indexed vector, identified by (ID, Key).
type Entry struct {
	ID     string
	Key    string
	Parent string
	Vector []float32
}

// Hit is a scored search result.
type Hit struct {
	ID     string
	Key    string
	Parent string
	Score  float64
}

// Index defines a vector index with full and incremental maintenance.
// Implementations are not safe for concurrent mutation; callers serialize
// writers and may run concurrent Search calls only while no writer is active
// (vec.Index does this).
type Index interface {
	// Build replaces the index content with entries.
	Build(entries []Entry) error

	// Upsert inserts or replaces the entry keyed by (e.ID, e.Key).
	Upsert(e Entry) error

	// Remove deletes the entry keyed by (id, key); absent keys are a no-op.
	Remove(id, key string) error

	// Search returns up to k hits ordered by Less. k <= 0 returns every entry.
	Search(query []float32, k int) ([]Hit, error)

	// Entries returns the live entries in no particular order. Vectors are
	// shared with the index and must not be modified.
	Entries() []Entry

	Len() int
	Dimension() int
	Metric() vector.Metric
}

// Structured is implemented by indexes whose search structure depends on
// insertion history and therefore cannot be rebuilt bit-for-bit from entries.
// The structure is encoded relative to the (ID, Key) ordering of entries.
type Structured interface {
	MarshalStructure(sorted []Entry) ([]byte, error)
	RestoreStructure(sorted []Entry, data []byte) error
}

// Less orders hits by score descending, then ID and Key ascending.
func Less(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Key < b.Key
}

// SortHits sorts hits in place by Less.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return Less(hits[i], hits[j]) })
}

// TopK sorts hits and truncates them to k (k <= 0 keeps all).
func TopK(hits []Hit, k int) []Hit {
	SortHits(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// SortEntries orders entries by (ID, Key).
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ID != entries[j].ID {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Key < entries[j].Key
	})
}

// Validate checks entries for a common dimension and metric validity and
// returns that dimension (0 for an empty set). Duplicated (ID, Key) pairs
// keep the last occurrence, matching Upsert semantics.
func Validate(metric vector.Metric, dim int, entries []Entry) (int, error) {
	for _, e := range entries {
		if err := vector.CheckDimension(e.Vector, dim); err != nil {
			return 0, err
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if err := metric.CheckVector(e.Vector); err != nil {
			return 0, err
		}
	}
	return dim, nil
}

// Dedup returns entries with duplicated (ID, Key) pairs collapsed to their
// last occurrence, preserving first-seen order.
func Dedup(entries []Entry) []Entry {
	pos := make(map[[2]string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := [2]string{e.ID, e.Key}
		if i, ok := pos[k]; ok {
			out[i] = e
			continue
		}
		pos[k] = len(out)
		out = append(out, e)
	}
	return out
}

// Hit returns the hit for e with the given score.
func (e Entry) Hit(score float64) Hit {
	return Hit{ID: e.ID, Key: e.Key, Parent: e.Parent, Score: score}
}
