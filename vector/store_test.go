package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/viant/vecindex/engine"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	db, err := engine.Open(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	sqlStore, err := NewSQLiteStore(ctx, db, "", 0)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	bStore, err := NewBadgerStore(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerStore failed: %v", err)
	}
	t.Cleanup(func() { _ = bStore.Close() })

	return map[string]Store{
		"memory": NewMemory(0),
		"sqlite": sqlStore,
		"badger": bStore,
	}
}

// TestStore_Contract runs the same put/get/delete/iterate scenario against
// every Store implementation.
func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			recs := []Record{
				{ID: "b", Key: "content", Vector: []float32{0, 1}},
				{ID: "a", Key: "title", Vector: []float32{1, 1}},
				{ID: "a", Key: "content", Parent: "root", Vector: []float32{1, 0}, Embedder: "openai/small@1"},
			}
			for _, r := range recs {
				if err := store.Put(ctx, r); err != nil {
					t.Fatalf("Put(%s/%s) failed: %v", r.ID, r.Key, err)
				}
			}
			if got := store.Dimension(); got != 2 {
				t.Fatalf("Dimension() = %d, want 2", got)
			}

			got, err := store.Get(ctx, "a", "content")
			if err != nil {
				t.Fatalf("Get(a/content) failed: %v", err)
			}
			if got.Parent != "root" || got.Embedder != "openai/small@1" || len(got.Vector) != 2 || got.Vector[0] != 1 {
				t.Fatalf("Get(a/content) = %+v", got)
			}

			// Replace keeps a single record per (id, key).
			if err := store.Put(ctx, Record{ID: "b", Key: "content", Vector: []float32{0.5, 0.5}}); err != nil {
				t.Fatalf("Put replace failed: %v", err)
			}

			err = store.Put(ctx, Record{ID: "c", Key: "content", Vector: []float32{1, 2, 3}})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("Put with wrong dim err = %v, want ErrDimensionMismatch", err)
			}

			all, err := Collect(ctx, store)
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			var order []string
			for _, r := range all {
				order = append(order, r.ID+"/"+r.Key)
			}
			want := []string{"a/content", "a/title", "b/content"}
			if len(order) != len(want) {
				t.Fatalf("Iterate order = %v, want %v", order, want)
			}
			for i := range want {
				if order[i] != want[i] {
					t.Fatalf("Iterate order = %v, want %v", order, want)
				}
			}
			if all[0].Embedder != "openai/small@1" || all[2].Embedder != "" {
				t.Fatalf("Iterate embedders = %q, %q", all[0].Embedder, all[2].Embedder)
			}
			if all[2].Vector[0] != 0.5 {
				t.Fatalf("replaced vector = %v, want [0.5 0.5]", all[2].Vector)
			}

			if err := store.Delete(ctx, "a", "title"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := store.Delete(ctx, "a", "title"); err != nil {
				t.Fatalf("second Delete failed: %v", err)
			}
			if _, err := store.Get(ctx, "a", "title"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after Delete err = %v, want ErrNotFound", err)
			}
			if err := store.Delete(ctx, "", "content"); err != nil {
				t.Fatalf("Delete of absent empty id failed: %v", err)
			}

			// Early break must not leak or block further use.
			for range store.Iterate(ctx) {
				break
			}
			if _, err := store.Get(ctx, "b", "content"); err != nil {
				t.Fatalf("Get after early break failed: %v", err)
			}
		})
	}
}

func TestSQLiteStore_RecoversDimension(t *testing.T) {
	ctx := context.Background()
	db, err := engine.Open(filepath.Join(t.TempDir(), "v.db"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer db.Close()

	s1, err := NewSQLiteStore(ctx, db, "emb", 0)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := s1.Put(ctx, Record{ID: "x", Key: "k", Vector: []float32{1, 2, 3}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s2, err := NewSQLiteStore(ctx, db, "emb", 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if s2.Dimension() != 3 {
		t.Fatalf("recovered dim = %d, want 3", s2.Dimension())
	}
	if _, err := NewSQLiteStore(ctx, db, "emb", 4); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("reopen with dim 4 err = %v, want ErrDimensionMismatch", err)
	}
}

func TestBadgerStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewBadgerStore(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("NewBadgerStore failed: %v", err)
	}
	if err := s.Put(ctx, Record{ID: "x", Key: "k", Vector: []float32{1, 2}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewBadgerStore(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if s.Dimension() != 2 {
		t.Fatalf("Dimension() = %d, want 2", s.Dimension())
	}
	rec, err := s.Get(ctx, "x", "k")
	if err != nil || rec.Vector[1] != 2 {
		t.Fatalf("Get = %+v, %v", rec, err)
	}
	if err := s.Put(ctx, Record{ID: "bad\x00id", Key: "k", Vector: []float32{1, 2}}); err == nil {
		t.Fatalf("Put accepted an id containing NUL")
	}
}

// TestSQLOrderByVecCosine validates that the vec_cosine SQL function can be
// used in an ORDER BY clause over the vectors table.
func TestSQLOrderByVecCosine(t *testing.T) {
	// Register functions before any connection work
	if err := engine.RegisterVectorFunctions(nil); err != nil {
		t.Fatalf("RegisterVectorFunctions: %v", err)
	}
	ctx := context.Background()
	db, err := engine.Open(filepath.Join(t.TempDir(), "order.db"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(ctx, db, "", 0)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	for _, r := range []Record{
		{ID: "d1", Key: "content", Vector: []float32{1, 0}},
		{ID: "d2", Key: "content", Vector: []float32{0, 1}},
	} {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	q, err := EncodeEmbedding([]float32{1, 0})
	if err != nil {
		t.Fatalf("EncodeEmbedding q failed: %v", err)
	}

	rows, err := db.Query(`SELECT doc_id FROM `+DefaultTable+` ORDER BY vec_cosine(embedding, ?) DESC`, q)
	if err != nil {
		t.Fatalf("ORDER BY vec_cosine query failed: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan id failed: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if len(ids) != 2 || ids[0] != "d1" || ids[1] != "d2" {
		t.Fatalf("ORDER BY vec_cosine returned ids=%v, want [d1 d2]", ids)
	}
}
