package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sync"
)

// SQLiteStore persists records in a single SQLite table keyed by
// (doc_id, field_key). Embeddings are stored as BLOBs produced by
// EncodeEmbedding so they can be scored in SQL via vec_cosine, vec_dot and
// vec_l2.
type SQLiteStore struct {
	db    *sql.DB
	table string

	mu  sync.RWMutex
	dim int
}

// NewSQLiteStore creates a SQLite-backed Store over table (DefaultTable when
// empty). When dim is zero the dimension is recovered from existing rows or
// fixed by the first Put.
func NewSQLiteStore(ctx context.Context, db *sql.DB, table string, dim int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	if table == "" {
		table = DefaultTable
	}
	if err := EnsureSchema(ctx, db, table); err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, table: table, dim: dim}
	var stored int
	err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT dim FROM %s LIMIT 1`, table)).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	case dim == 0:
		s.dim = stored
	case stored != dim:
		return nil, DimensionError(stored, dim)
	}
	return s, nil
}

// Table returns the backing table name.
func (s *SQLiteStore) Table() string { return s.table }

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := CheckDimension(rec.Vector, s.dim); err != nil {
		return err
	}
	emb, err := EncodeEmbedding(rec.Vector)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(doc_id, field_key, parent, dim, embedding, embedder) VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_id, field_key) DO UPDATE SET parent = excluded.parent, dim = excluded.dim, embedding = excluded.embedding, embedder = excluded.embedder`, s.table),
		rec.ID, rec.Key, rec.Parent, len(rec.Vector), emb, rec.Embedder)
	if err != nil {
		return fmt.Errorf("vector: put %s/%s: %w", rec.ID, rec.Key, err)
	}
	if s.dim == 0 {
		s.dim = len(rec.Vector)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id, key string) (Record, error) {
	rec := Record{ID: id, Key: key}
	var blob []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT parent, embedding, embedder FROM %s WHERE doc_id = ? AND field_key = ?`, s.table), id, key).
		Scan(&rec.Parent, &blob, &rec.Embedder)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if rec.Vector, err = DecodeEmbedding(blob); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id, key string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ? AND field_key = ?`, s.table), id, key)
	return err
}

// Iterate streams rows ordered by the primary key. The underlying rows are
// held open until the range loop ends.
func (s *SQLiteStore) Iterate(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc_id, field_key, parent, embedding, embedder FROM %s ORDER BY doc_id, field_key`, s.table))
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var rec Record
			var blob []byte
			if err := rows.Scan(&rec.ID, &rec.Key, &rec.Parent, &blob, &rec.Embedder); err != nil {
				yield(Record{}, err)
				return
			}
			if rec.Vector, err = DecodeEmbedding(blob); err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}

func (s *SQLiteStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Close is a no-op; the caller owns the *sql.DB.
func (s *SQLiteStore) Close() error { return nil }

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
