package source

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory is an in-process document source with a sequence-numbered change
// log. The cursor is the decimal sequence of the last change seen.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
	seq  uint64
	log  []change
}

type change struct {
	seq uint64
	id  string
}

var _ Source = (*Memory)(nil)

// NewMemory returns a Memory source seeded with docs.
func NewMemory(docs ...Document) *Memory {
	m := &Memory{docs: make(map[string]Document)}
	for _, d := range docs {
		m.Put(d)
	}
	return m
}

// Put inserts or replaces a document.
func (m *Memory) Put(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc = doc.Clone()
	doc.Deleted = false
	m.docs[doc.ID] = doc
	m.appendLocked(doc.ID)
}

// Delete removes a document; subsequent change feeds report a tombstone.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return
	}
	delete(m.docs, id)
	m.appendLocked(id)
}

func (m *Memory) appendLocked(id string) {
	m.seq++
	m.log = append(m.log, change{seq: m.seq, id: id})
}

// FetchChanged reports every document touched after since, once, in change
// order of their latest modification.
func (m *Memory) FetchChanged(ctx context.Context, since Cursor) ([]Document, Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, since, err
	}
	var from uint64
	if since != "" {
		v, err := strconv.ParseUint(string(since), 10, 64)
		if err != nil {
			return nil, since, fmt.Errorf("source: invalid cursor %q: %w", since, err)
		}
		from = v
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[string]uint64)
	var order []string
	for _, c := range m.log {
		if c.seq <= from {
			continue
		}
		if _, seen := latest[c.id]; !seen {
			order = append(order, c.id)
		}
		latest[c.id] = c.seq
	}
	out := make([]Document, 0, len(order))
	for _, id := range order {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc.Clone())
		} else {
			out = append(out, Document{ID: id, Deleted: true})
		}
	}
	next := since
	if m.seq > from {
		next = Cursor(strconv.FormatUint(m.seq, 10))
	}
	return out, next, nil
}

// FetchFull returns the current version of a document.
func (m *Memory) FetchFull(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc.Clone(), nil
}
