package vector

import (
	"context"
	"testing"

	"github.com/viant/vecindex/engine"
)

// TestEnsureSchema verifies that EnsureSchema creates the vectors table and
// rejects unsafe table names.
func TestEnsureSchema(t *testing.T) {
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := EnsureSchema(context.Background(), db, DefaultTable); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if _, err := db.Exec(`SELECT doc_id, field_key, parent, dim, embedding FROM ` + DefaultTable); err != nil {
		t.Fatalf("select from %s failed: %v", DefaultTable, err)
	}
	if err := EnsureSchema(context.Background(), db, "x; DROP TABLE y"); err == nil {
		t.Fatalf("EnsureSchema accepted an unsafe table name")
	}
}
