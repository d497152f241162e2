package vecsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/viant/vecindex/source"
)

// StateStore persists listener cursors in a SQLite table.
type StateStore struct {
	db    *sql.DB
	table string
}

// NewStateStore creates the state table when missing.
func NewStateStore(ctx context.Context, db *sql.DB, table string) (*StateStore, error) {
	if table == "" {
		table = DefaultStateTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("vecsync: invalid table name %q", table)
	}
	if _, err := db.ExecContext(ctx, StateTableDDL(table)); err != nil {
		return nil, fmt.Errorf("vecsync: create %s: %w", table, err)
	}
	return &StateStore{db: db, table: table}, nil
}

// State returns the stored state of a listener. A listener that never saved
// a cursor has an empty one.
func (s *StateStore) State(ctx context.Context, listener string) (SyncState, error) {
	st := SyncState{Listener: listener}
	var updated any
	query := fmt.Sprintf(`SELECT position, updated_at FROM %s WHERE listener = ?`, s.table)
	err := s.db.QueryRowContext(ctx, query, listener).Scan(&st.Cursor, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("vecsync: load state %s: %w", listener, err)
	}
	st.UpdatedAt = asTime(updated)
	return st, nil
}

// LoadCursor returns the last saved cursor of listener.
func (s *StateStore) LoadCursor(ctx context.Context, listener string) (source.Cursor, error) {
	st, err := s.State(ctx, listener)
	return source.Cursor(st.Cursor), err
}

// SaveCursor records cursor as the position of listener.
func (s *StateStore) SaveCursor(ctx context.Context, listener string, cursor source.Cursor) error {
	stmt := fmt.Sprintf(`INSERT INTO %s(listener, position, updated_at) VALUES (?, ?, ?)
ON CONFLICT(listener) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`, s.table)
	now := time.Now().UTC().Format(time.DateTime)
	if _, err := s.db.ExecContext(ctx, stmt, listener, string(cursor), now); err != nil {
		return fmt.Errorf("vecsync: save state %s: %w", listener, err)
	}
	return nil
}
