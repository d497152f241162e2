package vecadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vector"
)

const (
	defaultRetryDelay = 50 * time.Millisecond
	defaultStaleAfter = 2 * time.Minute
)

const storageDDL = `
CREATE TABLE IF NOT EXISTS vector_storage (
    index_name TEXT NOT NULL,
    dataset_id TEXT NOT NULL DEFAULT '',
    "index"    BLOB,
    entries    INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (index_name, dataset_id)
)`

const locksDDL = `
CREATE TABLE IF NOT EXISTS vector_storage_locks (
    index_name TEXT NOT NULL,
    dataset_id TEXT NOT NULL DEFAULT '',
    owner      TEXT NOT NULL,
    locked_at  INTEGER NOT NULL,
    PRIMARY KEY (index_name, dataset_id)
)`

// Entry describes a stored snapshot.
type Entry struct {
	Name      string
	Dataset   string
	Size      int
	Entries   int
	UpdatedAt time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithOwner overrides the generated lock owner id.
func WithOwner(owner string) Option {
	return func(c *Catalog) { c.owner = owner }
}

// WithLockTiming sets the lock retry delay and the age after which a lock
// held by another owner is considered abandoned.
func WithLockTiming(retry, staleAfter time.Duration) Option {
	return func(c *Catalog) {
		c.retry = retry
		c.staleAfter = staleAfter
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// Catalog stores index snapshots in a SQLite database.
type Catalog struct {
	db         *sql.DB
	owner      string
	retry      time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewCatalog creates the storage tables when missing.
func NewCatalog(ctx context.Context, db *sql.DB, opts ...Option) (*Catalog, error) {
	if db == nil {
		return nil, fmt.Errorf("vecadmin: db is nil")
	}
	c := &Catalog{
		db:         db,
		owner:      uuid.NewString(),
		retry:      defaultRetryDelay,
		staleAfter: defaultStaleAfter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "vecadmin")
	for _, ddl := range []string{storageDDL, locksDDL} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("vecadmin: ensure schema: %w", err)
		}
	}
	return c, nil
}

// Owner returns the id recorded on locks taken by this catalog.
func (c *Catalog) Owner() string { return c.owner }

// Save stores the current snapshot of ix under dataset.
func (c *Catalog) Save(ctx context.Context, ix *vec.Index, dataset string) error {
	data, err := ix.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vector_storage(index_name, dataset_id, "index", entries, updated_at) VALUES(?, ?, ?, ?, ?)`,
		ix.Name(), dataset, data, ix.Len(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("vecadmin: save %s: %w", ix.Name(), err)
	}
	c.logger.Debug("index saved", "index", ix.Name(), "dataset", dataset, "bytes", len(data))
	return nil
}

// Load restores the named index stored under dataset.
func (c *Catalog) Load(ctx context.Context, name, dataset string, opts vec.Options) (*vec.Index, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT "index" FROM vector_storage WHERE index_name = ? AND dataset_id = ?`, name, dataset).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vecadmin: index %s: %w", name, vector.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("vecadmin: load %s: %w", name, err)
	}
	ix, err := vec.UnmarshalIndex(data, opts)
	if err != nil {
		return nil, fmt.Errorf("vecadmin: load %s: %w", name, err)
	}
	return ix, nil
}

// LoadAll restores every index stored under dataset into reg and returns
// how many were added. Indexes already registered are left untouched.
func (c *Catalog) LoadAll(ctx context.Context, reg *vec.Registry, dataset string, opts vec.Options) (int, error) {
	entries, err := c.List(ctx, dataset)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, e := range entries {
		if _, err := reg.Get(e.Name); err == nil {
			continue
		}
		ix, err := c.Load(ctx, e.Name, dataset, opts)
		if err != nil {
			return loaded, err
		}
		if err := reg.Add(ix); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// List reports the snapshots stored under dataset ordered by name.
func (c *Catalog) List(ctx context.Context, dataset string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT index_name, dataset_id, length("index"), entries, updated_at FROM vector_storage WHERE dataset_id = ? ORDER BY index_name`, dataset)
	if err != nil {
		return nil, fmt.Errorf("vecadmin: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var size sql.NullInt64
		var updated int64
		if err := rows.Scan(&e.Name, &e.Dataset, &size, &e.Entries, &updated); err != nil {
			return nil, err
		}
		e.Size = int(size.Int64)
		e.UpdatedAt = time.UnixMilli(updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the stored snapshot; deleting a missing one is not an
// error.
func (c *Catalog) Delete(ctx context.Context, name, dataset string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM vector_storage WHERE index_name = ? AND dataset_id = ?`, name, dataset)
	if err != nil {
		return fmt.Errorf("vecadmin: delete %s: %w", name, err)
	}
	return nil
}

// AcquireBuildLock blocks until this catalog owns the build lock for
// (name, dataset) or ctx ends. A lock held by another owner for longer than
// the stale timeout is taken over. The returned func releases the lock.
func (c *Catalog) AcquireBuildLock(ctx context.Context, name, dataset string) (func(), error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		owner, err := c.tryLock(ctx, name, dataset)
		if err != nil {
			return nil, fmt.Errorf("vecadmin: lock %s: %w", name, err)
		}
		if owner == c.owner {
			return func() {
				_, _ = c.db.ExecContext(context.Background(),
					`DELETE FROM vector_storage_locks WHERE index_name = ? AND dataset_id = ? AND owner = ?`, name, dataset, c.owner)
			}, nil
		}
		c.logger.Debug("waiting for build lock", "index", name, "holder", owner)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retry):
		}
	}
}

func (c *Catalog) tryLock(ctx context.Context, name, dataset string) (string, error) {
	now := time.Now().Unix()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO vector_storage_locks(index_name, dataset_id, owner, locked_at) VALUES(?, ?, ?, ?)`,
		name, dataset, c.owner, now); err != nil {
		return "", err
	}
	var owner string
	var lockedAt int64
	if err := tx.QueryRowContext(ctx,
		`SELECT owner, locked_at FROM vector_storage_locks WHERE index_name = ? AND dataset_id = ?`,
		name, dataset).Scan(&owner, &lockedAt); err != nil {
		return "", err
	}
	if owner != c.owner && lockedAt <= time.Now().Add(-c.staleAfter).Unix() {
		res, err := tx.ExecContext(ctx,
			`UPDATE vector_storage_locks SET owner = ?, locked_at = ? WHERE index_name = ? AND dataset_id = ? AND locked_at = ?`,
			c.owner, now, name, dataset, lockedAt)
		if err != nil {
			return "", err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			c.logger.Warn("took over stale build lock", "index", name, "previous", owner)
			owner = c.owner
		}
	}
	return owner, tx.Commit()
}

// Reindex rebuilds ix from store under the build lock and stores the
// result. When embedder is set and differs from the one ix was built with,
// the index is re-embedded from that embedder's records instead. It returns
// the number of indexed entries.
func (c *Catalog) Reindex(ctx context.Context, ix *vec.Index, store vector.Store, dataset, embedder string) (int, error) {
	release, err := c.AcquireBuildLock(ctx, ix.Name(), dataset)
	if err != nil {
		return 0, err
	}
	defer release()
	started := time.Now()
	if embedder != "" && embedder != ix.Meta().Embedder {
		c.logger.Info("re-embedding index", "index", ix.Name(), "from", ix.Meta().Embedder, "to", embedder)
		err = ix.Reembed(ctx, store, embedder)
	} else {
		err = ix.Build(ctx, store)
	}
	if err != nil {
		return 0, err
	}
	if err := c.Save(ctx, ix, dataset); err != nil {
		return 0, err
	}
	c.logger.Info("index rebuilt", "index", ix.Name(), "kind", ix.Kind(), "entries", ix.Len(), "elapsed", time.Since(started))
	return ix.Len(), nil
}
