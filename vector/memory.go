package vector

import (
	"context"
	"iter"
	"sort"
	"sync"
)

type recordKey struct {
	id  string
	key string
}

// Memory is an in-process Store. It is used by tests and by indexes that
// do not need durability.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	records map[recordKey]Record
}

// NewMemory creates an empty in-memory store. A zero dim lets the first Put
// establish the dimension.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim, records: make(map[recordKey]Record)}
}

func (m *Memory) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := CheckDimension(rec.Vector, m.dim); err != nil {
		return err
	}
	if m.dim == 0 {
		m.dim = len(rec.Vector)
	}
	rec.Vector = cloneVector(rec.Vector)
	m.records[recordKey{rec.ID, rec.Key}] = rec
	return nil
}

func (m *Memory) Get(ctx context.Context, id, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[recordKey{id, key}]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Vector = cloneVector(rec.Vector)
	return rec, nil
}

func (m *Memory) Delete(ctx context.Context, id, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.records, recordKey{id, key})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Iterate(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		m.mu.RLock()
		keys := make([]recordKey, 0, len(m.records))
		for k := range m.records {
			keys = append(keys, k)
		}
		m.mu.RUnlock()
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].id != keys[j].id {
				return keys[i].id < keys[j].id
			}
			return keys[i].key < keys[j].key
		})
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			m.mu.RLock()
			rec, ok := m.records[k]
			m.mu.RUnlock()
			if !ok {
				continue
			}
			rec.Vector = cloneVector(rec.Vector)
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (m *Memory) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
