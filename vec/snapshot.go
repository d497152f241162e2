package vec

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/storage"
)

// Snapshot captures the published structure and metadata. It fails with
// ErrIndexNotReady when nothing has been built yet.
func (ix *Index) Snapshot() (*index.Snapshot, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return nil, fmt.Errorf("vec: snapshot %s (%s): %w", ix.meta.Name, ix.state, ErrIndexNotReady)
	}
	entries := ix.current.Entries()
	index.SortEntries(entries)
	snap := &index.Snapshot{
		Header: index.Header{
			Name:      ix.meta.Name,
			Kind:      string(ix.resolved),
			Metric:    ix.meta.Metric,
			Embedder:  ix.meta.Embedder,
			Dimension: ix.meta.Dimension,
			CreatedAt: ix.meta.CreatedAt,
			Count:     len(entries),
		},
		Entries: entries,
	}
	if s, ok := ix.current.(index.Structured); ok {
		data, err := s.MarshalStructure(entries)
		if err != nil {
			return nil, fmt.Errorf("vec: snapshot %s: %w", ix.meta.Name, err)
		}
		snap.Structure = data
	}
	return snap, nil
}

// MarshalBinary encodes the index snapshot.
func (ix *Index) MarshalBinary() ([]byte, error) {
	snap, err := ix.Snapshot()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := index.WriteSnapshot(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore creates a Ready index from a snapshot. Structured kinds restore
// their exact search structure; the others are rebuilt from the entries.
func Restore(snap *index.Snapshot, opts Options) (*Index, error) {
	if snap == nil {
		return nil, errors.New("vec: nil snapshot")
	}
	kind, err := ParseKind(snap.Kind)
	if err != nil {
		return nil, err
	}
	if kind == KindAuto {
		kind = ResolveKind(kind, snap.Metric, len(snap.Entries), snap.Dimension)
	}
	ix, err := New(Meta{
		Name:      snap.Name,
		Embedder:  snap.Embedder,
		Metric:    snap.Metric,
		Kind:      kind,
		Dimension: snap.Dimension,
		CreatedAt: snap.CreatedAt,
	}, opts)
	if err != nil {
		return nil, err
	}
	structure, err := opts.newStructure(kind, snap.Metric)
	if err != nil {
		return nil, err
	}
	s, structured := structure.(index.Structured)
	if structured && len(snap.Structure) > 0 {
		sorted := append([]index.Entry(nil), snap.Entries...)
		index.SortEntries(sorted)
		err = s.RestoreStructure(sorted, snap.Structure)
	} else {
		err = structure.Build(snap.Entries)
	}
	if err != nil {
		return nil, fmt.Errorf("vec: restore %s: %w", snap.Name, err)
	}
	ix.current = structure
	ix.resolved = kind
	ix.state = Ready
	ix.builtAt = snap.CreatedAt
	return ix, nil
}

// UnmarshalIndex decodes bytes produced by MarshalBinary.
func UnmarshalIndex(data []byte, opts Options) (*Index, error) {
	snap, err := index.ReadSnapshot(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Restore(snap, opts)
}

// SaveTo writes the index snapshot to path in fs.
func (ix *Index) SaveTo(ctx context.Context, fs storage.FileStore, path string) error {
	snap, err := ix.Snapshot()
	if err != nil {
		return err
	}
	w, err := fs.Write(ctx, path)
	if err != nil {
		return fmt.Errorf("vec: save %s: %w", ix.meta.Name, err)
	}
	if err := index.WriteSnapshot(w, snap); err != nil {
		_ = storage.Abort(w)
		return fmt.Errorf("vec: save %s: %w", ix.meta.Name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("vec: save %s: %w", ix.meta.Name, err)
	}
	ix.logger.Info("snapshot saved", "path", path, "entries", snap.Count)
	return nil
}

// LoadFrom restores an index from the snapshot at path in fs.
func LoadFrom(ctx context.Context, fs storage.FileStore, path string, opts Options) (*Index, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("vec: load %s: %w", path, err)
	}
	defer r.Close()
	snap, err := index.ReadSnapshot(r)
	if err != nil {
		return nil, fmt.Errorf("vec: load %s: %w", path, err)
	}
	return Restore(snap, opts)
}
