package vecsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/viant/vecindex/source"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source serves documents stored in a shadow table and reports changes from
// the SCN log. The cursor is the decimal SCN of the last applied log entry.
type Source struct {
	db  *sql.DB
	cfg Config
}

var _ source.Source = (*Source)(nil)

// NewSource validates cfg and returns a Source. Call EnsureSchema before the
// first write when the tables may not exist.
func NewSource(db *sql.DB, cfg Config) (*Source, error) {
	if db == nil {
		return nil, errors.New("vecsync: db is nil")
	}
	if cfg.DatasetID == "" {
		return nil, errors.New("vecsync: dataset id is required")
	}
	cfg.applyDefaults()
	for _, name := range []string{cfg.ShadowTable, cfg.LogTable, cfg.SeqTable} {
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("vecsync: invalid table name %q", name)
		}
	}
	return &Source{db: db, cfg: cfg}, nil
}

// Config returns the effective configuration.
func (s *Source) Config() Config { return s.cfg }

// EnsureSchema creates the shadow, log and sequence tables and the SQLite
// change triggers.
func (s *Source) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		ShadowTableDDL(s.cfg.ShadowTable),
		LogTableDDL(s.cfg.LogTable),
		SeqTableDDL(s.cfg.SeqTable),
	}
	stmts = append(stmts, SQLiteShadowLogTriggers(s.cfg.ShadowTable, s.cfg.SeqTable, s.cfg.LogTable)...)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vecsync: ensure schema: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces a document; an archived document is revived.
func (s *Source) Put(ctx context.Context, doc source.Document) error {
	if doc.ID == "" {
		return errors.New("vecsync: document id is required")
	}
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("vecsync: encode fields of %s: %w", doc.ID, err)
	}
	stmt := fmt.Sprintf(`INSERT INTO %s(dataset_id, id, parent, fields, archived)
VALUES (?, ?, ?, ?, 0)
ON CONFLICT(dataset_id, id) DO UPDATE SET
  parent = excluded.parent,
  fields = excluded.fields,
  archived = 0`, s.cfg.ShadowTable)
	if _, err = s.db.ExecContext(ctx, stmt, s.cfg.DatasetID, doc.ID, nullable(doc.Parent), string(fields)); err != nil {
		return fmt.Errorf("vecsync: put %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is a no-op.
func (s *Source) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE dataset_id = ? AND id = ?`, s.cfg.ShadowTable)
	if _, err := s.db.ExecContext(ctx, stmt, s.cfg.DatasetID, id); err != nil {
		return fmt.Errorf("vecsync: delete %s: %w", id, err)
	}
	return nil
}

// Archive hides a document from FetchFull while keeping its row; change
// feeds report it as deleted.
func (s *Source) Archive(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`UPDATE %s SET archived = 1 WHERE dataset_id = ? AND id = ? AND archived = 0`, s.cfg.ShadowTable)
	if _, err := s.db.ExecContext(ctx, stmt, s.cfg.DatasetID, id); err != nil {
		return fmt.Errorf("vecsync: archive %s: %w", id, err)
	}
	return nil
}

// LogEntries returns up to limit log entries with SCN greater than after.
func (s *Source) LogEntries(ctx context.Context, after int64, limit int) ([]LogEntry, error) {
	query := fmt.Sprintf(`SELECT scn, op, document_id, payload, created_at FROM %s
WHERE dataset_id = ? AND shadow_table = ? AND scn > ?
ORDER BY scn
LIMIT ?`, s.cfg.LogTable)
	rows, err := s.db.QueryContext(ctx, query, s.cfg.DatasetID, s.cfg.ShadowTable, after, limit)
	if err != nil {
		return nil, fmt.Errorf("vecsync: read log: %w", err)
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		e := LogEntry{DatasetID: s.cfg.DatasetID, ShadowTable: s.cfg.ShadowTable}
		var created any
		if err := rows.Scan(&e.SCN, &e.Op, &e.DocumentID, &e.Payload, &created); err != nil {
			return nil, fmt.Errorf("vecsync: scan log: %w", err)
		}
		e.CreatedAt = asTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FetchChanged reads the next batch of log entries after since and returns
// the latest state of every document they touch, once per document.
func (s *Source) FetchChanged(ctx context.Context, since source.Cursor) ([]source.Document, source.Cursor, error) {
	var after int64
	if since != "" {
		v, err := strconv.ParseInt(string(since), 10, 64)
		if err != nil {
			return nil, since, fmt.Errorf("vecsync: invalid cursor %q: %w", since, err)
		}
		after = v
	}
	entries, err := s.LogEntries(ctx, after, s.cfg.BatchSize)
	if err != nil {
		return nil, since, err
	}
	if len(entries) == 0 {
		return nil, since, nil
	}

	latest := make(map[string]int)
	var order []string
	for i, e := range entries {
		if _, ok := latest[e.DocumentID]; !ok {
			order = append(order, e.DocumentID)
		}
		latest[e.DocumentID] = i
	}
	docs := make([]source.Document, 0, len(order))
	for _, id := range order {
		doc, err := entryDocument(entries[latest[id]])
		if err != nil {
			return nil, since, err
		}
		docs = append(docs, doc)
	}
	next := source.Cursor(strconv.FormatInt(entries[len(entries)-1].SCN, 10))
	return docs, next, nil
}

func entryDocument(e LogEntry) (source.Document, error) {
	if e.Op == OpDelete {
		return source.Document{ID: e.DocumentID, Deleted: true}, nil
	}
	var p payload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return source.Document{}, fmt.Errorf("vecsync: decode payload at scn %d: %w", e.SCN, err)
	}
	if p.Archived != 0 {
		return source.Document{ID: e.DocumentID, Deleted: true}, nil
	}
	doc := source.Document{ID: e.DocumentID}
	if p.Parent != nil {
		doc.Parent = *p.Parent
	}
	if p.Fields != nil {
		if err := json.Unmarshal([]byte(*p.Fields), &doc.Fields); err != nil {
			return source.Document{}, fmt.Errorf("vecsync: decode fields at scn %d: %w", e.SCN, err)
		}
	}
	return doc, nil
}

// FetchFull returns the current, non-archived document.
func (s *Source) FetchFull(ctx context.Context, id string) (source.Document, error) {
	query := fmt.Sprintf(`SELECT parent, fields FROM %s WHERE dataset_id = ? AND id = ? AND archived = 0`, s.cfg.ShadowTable)
	var parent, fields sql.NullString
	err := s.db.QueryRowContext(ctx, query, s.cfg.DatasetID, id).Scan(&parent, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return source.Document{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	if err != nil {
		return source.Document{}, fmt.Errorf("vecsync: fetch %s: %w", id, err)
	}
	doc := source.Document{ID: id, Parent: parent.String}
	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &doc.Fields); err != nil {
			return source.Document{}, fmt.Errorf("vecsync: decode fields of %s: %w", id, err)
		}
	}
	return doc, nil
}

// asTime converts a TIMESTAMP column value. Drivers return either a parsed
// time or the SQLite text form.
func asTime(v any) time.Time {
	switch actual := v.(type) {
	case time.Time:
		return actual
	case string:
		t, _ := time.Parse(time.DateTime, actual)
		return t
	case []byte:
		t, _ := time.Parse(time.DateTime, string(actual))
		return t
	}
	return time.Time{}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
