package vector

import (
	"context"
	"iter"
)

// Record is a single stored vector. A document contributes one Record per
// embedded field; (ID, Key) is unique within a store.
type Record struct {
	// ID is the logical document identifier.
	ID string
	// Key names the embedded field (e.g. "content").
	Key string
	// Parent optionally references an enclosing document.
	Parent string
	// Vector is the embedding for the field.
	Vector []float32
	// Embedder identifies the embedder that produced Vector. Empty means
	// unlabelled.
	Embedder string
}

// Store is the durable vector store contract. Implementations are safe for
// concurrent use.
type Store interface {
	// Put inserts or replaces the record keyed by (rec.ID, rec.Key). The first
	// successful Put fixes the store dimension when none was configured.
	Put(ctx context.Context, rec Record) error

	// Get returns the record for (id, key) or ErrNotFound.
	Get(ctx context.Context, id, key string) (Record, error)

	// Delete removes the record for (id, key). Deleting an absent pair is
	// not an error.
	Delete(ctx context.Context, id, key string) error

	// Iterate yields every record ordered by (ID, Key). The sequence is lazy
	// and may be ranged over again for a fresh pass. Callers must not write
	// to the store while ranging.
	Iterate(ctx context.Context) iter.Seq2[Record, error]

	// Dimension returns the established dimension, or 0 when none is fixed.
	Dimension() int

	// Close releases resources held by the store.
	Close() error
}

// Collect drains s.Iterate into a slice.
func Collect(ctx context.Context, s Store) ([]Record, error) {
	var out []Record
	for rec, err := range s.Iterate(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
