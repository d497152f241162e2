package vec

import (
	"context"
	"errors"
	"testing"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/vector"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(Meta{Name: "beta", Embedder: testEmbedder}, Options{}); err != nil {
		t.Fatalf("Create beta: %v", err)
	}
	alpha, err := r.Create(Meta{Name: "alpha", Embedder: testEmbedder}, Options{})
	if err != nil {
		t.Fatalf("Create alpha: %v", err)
	}
	if _, err := r.Create(Meta{Name: "alpha"}, Options{}); !errors.Is(err, ErrIndexExists) {
		t.Fatalf("duplicate Create: err = %v, want ErrIndexExists", err)
	}

	got, err := r.Get("alpha")
	if err != nil || got != alpha {
		t.Fatalf("Get alpha = %v, %v", got, err)
	}
	if _, err := r.Get("gamma"); !errors.Is(err, vector.ErrNotFound) {
		t.Fatalf("Get missing: err = %v", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].Name() != "alpha" || list[1].Name() != "beta" {
		t.Fatalf("List = %v", list)
	}

	if err := r.Drop("beta"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if err := r.Drop("beta"); !errors.Is(err, vector.ErrNotFound) {
		t.Fatalf("second Drop: err = %v", err)
	}
	if len(r.List()) != 1 {
		t.Fatalf("List after drop = %d", len(r.List()))
	}
}

func TestRegistry_AddRestored(t *testing.T) {
	src, err := New(Meta{Name: "docs", Embedder: testEmbedder}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := src.BuildEntries(context.Background(), []index.Entry{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("BuildEntries: %v", err)
	}
	snap, err := src.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := Restore(snap, Options{})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	r := NewRegistry()
	if err := r.Add(restored); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(src); !errors.Is(err, ErrIndexExists) {
		t.Fatalf("Add duplicate: err = %v", err)
	}
}
