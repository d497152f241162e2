package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/viant/vecindex/engine"
)

func TestEmbedding_StoredBlobLayout(t *testing.T) {
	ctx := context.Background()
	db, err := engine.Open(filepath.Join(t.TempDir(), "blob.db"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	defer db.Close()
	store, err := NewSQLiteStore(ctx, db, "", 0)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	rec := Record{ID: "doc-1", Key: "content", Vector: []float32{0, 1.5, -2.25, 3.75}, Embedder: "openai/small@1"}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	var blob []byte
	if err := db.QueryRow(`SELECT embedding FROM `+DefaultTable+` WHERE doc_id = ?`, rec.ID).Scan(&blob); err != nil {
		t.Fatalf("select blob failed: %v", err)
	}
	if len(blob) != EmbeddingSize(len(rec.Vector)) {
		t.Fatalf("blob size = %d, want %d", len(blob), EmbeddingSize(len(rec.Vector)))
	}
	want, _ := EncodeEmbedding(rec.Vector)
	if string(blob) != string(want) {
		t.Fatalf("stored blob %x, want %x", blob, want)
	}
	if prefixed := AppendEmbedding([]byte{0xFF}, rec.Vector); string(prefixed[1:]) != string(want) {
		t.Fatalf("AppendEmbedding = %x, want ff%x", prefixed, want)
	}

	decoded, err := DecodeEmbedding(blob)
	if err != nil {
		t.Fatalf("DecodeEmbedding failed: %v", err)
	}
	for i := range rec.Vector {
		if decoded[i] != rec.Vector[i] {
			t.Fatalf("decoded[%d] = %v, want %v", i, decoded[i], rec.Vector[i])
		}
	}
}

func TestDecodeEmbedding_Invalid(t *testing.T) {
	if vec, err := DecodeEmbedding(nil); err != nil || vec != nil {
		t.Fatalf("DecodeEmbedding(nil) = %v, %v", vec, err)
	}
	if b, err := EncodeEmbedding(nil); err != nil || b != nil {
		t.Fatalf("EncodeEmbedding(nil) = %v, %v", b, err)
	}
	if _, err := DecodeEmbedding([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidVector) {
		t.Fatalf("DecodeEmbedding(3 bytes) err = %v, want ErrInvalidVector", err)
	}
}
