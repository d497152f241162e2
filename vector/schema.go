package vector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// DefaultTable is the table used by SQLiteStore when none is configured.
const DefaultTable = "vec_vectors"

const vectorsSchema = `
CREATE TABLE IF NOT EXISTS %[1]s (
    doc_id    TEXT    NOT NULL,
    field_key TEXT    NOT NULL,
    parent    TEXT    NOT NULL DEFAULT '',
    dim       INTEGER NOT NULL,
    embedding BLOB    NOT NULL,
    embedder  TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (doc_id, field_key)
);
`

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnsureSchema creates the vectors table if it does not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB, table string) error {
	if !identPattern.MatchString(table) {
		return fmt.Errorf("vector: invalid table name %q", table)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(vectorsSchema, table))
	return err
}
