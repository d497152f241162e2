package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/config"
	"github.com/viant/vecindex/embed"
	"github.com/viant/vecindex/engine"
	"github.com/viant/vecindex/ingest"
	"github.com/viant/vecindex/query"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vec"
	"github.com/viant/vecindex/vecadmin"
	"github.com/viant/vecindex/vecsync"
	"github.com/viant/vecindex/vector"
)

// sqlitePragmas applies to every pooled connection.
const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// app wires the configured components over one SQLite database.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	store    vector.Store
	registry *vec.Registry
	catalog  *vecadmin.Catalog
	docs     *vecsync.Source
	embedder embed.Embedder
}

// withApp loads the configuration, opens the app for the duration of fn
// and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := engine.Open(cfg.Database.Path + sqlitePragmas)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	var err error
	if a.store, err = openStore(ctx, a.cfg, a.db, a.logger); err != nil {
		return err
	}
	if a.catalog, err = vecadmin.NewCatalog(ctx, a.db, vecadmin.WithLogger(a.logger)); err != nil {
		return err
	}
	db := a.cfg.Database
	a.docs, err = vecsync.NewSource(a.db, vecsync.Config{
		DatasetID:   db.DatasetID,
		ShadowTable: db.ShadowTable,
		LogTable:    db.LogTable,
	})
	if err != nil {
		return err
	}
	if err := a.docs.EnsureSchema(ctx); err != nil {
		return err
	}
	return a.loadIndexes(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) (vector.Store, error) {
	dim := cfg.Embedding.Dimensions
	switch cfg.Database.VectorStore {
	case "badger":
		store, err := vector.NewBadgerStore(vector.BadgerOptions{Dir: cfg.Database.BadgerDir, Dimension: dim, Logger: logger})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return vector.NewMemory(dim), nil
	}
	store, err := vector.NewSQLiteStore(ctx, db, cfg.Database.VectorTable, dim)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// loadIndexes registers every configured index, restoring the stored
// snapshot when one exists.
func (a *app) loadIndexes(ctx context.Context) error {
	a.registry = vec.NewRegistry()
	embedder := a.cfg.Embedding.Identifier()
	for _, ic := range a.cfg.Indexes {
		meta, opts, err := ic.Meta(embedder, a.logger)
		if err != nil {
			return fmt.Errorf("index %s: %w", ic.Name, err)
		}
		ix, err := a.catalog.Load(ctx, ic.Name, a.cfg.Database.DatasetID, opts)
		switch {
		case err == nil:
			if stored := ix.Meta().Embedder; stored != embedder {
				ix.MarkStale(fmt.Sprintf("configured embedder is %s, index was built with %s", embedder, stored))
			}
		case errors.Is(err, vector.ErrNotFound):
			if ix, err = vec.New(meta, opts); err != nil {
				return fmt.Errorf("index %s: %w", ic.Name, err)
			}
		default:
			return err
		}
		if err := a.registry.Add(ix); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) embed() (embed.Embedder, error) {
	if a.embedder == nil {
		e, err := a.cfg.Embedding.Embedder()
		if err != nil {
			return nil, err
		}
		a.embedder = e
	}
	return a.embedder, nil
}

// prepare builds indexes that have never been built so that ingested
// vectors are applied to them directly.
func (a *app) prepare(ctx context.Context) error {
	for _, ix := range a.registry.List() {
		if ix.State() != vec.Unbuilt {
			continue
		}
		if _, err := a.catalog.Reindex(ctx, ix, a.store, a.cfg.Database.DatasetID, a.cfg.Embedding.Identifier()); err != nil {
			return fmt.Errorf("build %s: %w", ix.Name(), err)
		}
	}
	return nil
}

// saveAll stores a snapshot of every readable index.
func (a *app) saveAll(ctx context.Context) error {
	var errs []error
	for _, ix := range a.registry.List() {
		if ix.State() == vec.Stale {
			a.logger.Warn("index is stale, run reindex", "index", ix.Name(), "reason", ix.StaleReason())
		}
		if !ix.State().Readable() {
			continue
		}
		if err := a.catalog.Save(ctx, ix, a.cfg.Database.DatasetID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) pipeline(onProgress func(int)) (*ingest.Pipeline, error) {
	emb, err := a.embed()
	if err != nil {
		return nil, err
	}
	var targets ingest.Indexes
	for _, ix := range a.registry.List() {
		targets = append(targets, ix)
	}
	pc := a.cfg.Ingest.Pipeline(a.logger)
	pc.OnProgress = onProgress
	return ingest.NewPipeline(a.store, targets, emb, pc)
}

func (a *app) listener(ctx context.Context, name string, src source.Source, pipe *ingest.Pipeline) (*ingest.Listener, error) {
	cursors, err := vecsync.NewStateStore(ctx, a.db, vecsync.DefaultStateTable)
	if err != nil {
		return nil, err
	}
	return ingest.NewListener(name, src, pipe, cursors), nil
}

func (a *app) queryEngine(src source.Source) (*query.Engine, error) {
	opts := []query.Option{query.WithDefaultSource(src), query.WithLogger(a.logger)}
	emb, err := a.embed()
	if err != nil {
		a.logger.Debug("no embedder, text queries disabled", "error", err)
	} else {
		opts = append(opts, query.WithEmbedder(emb))
	}
	return query.New(a.registry, opts...), nil
}

func (a *app) index(name string) (*vec.Index, error) {
	if name == "" {
		ixs := a.registry.List()
		if len(ixs) != 1 {
			return nil, fmt.Errorf("index name required (%d indexes configured)", len(ixs))
		}
		return ixs[0], nil
	}
	return a.registry.Get(name)
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.db.Close()
}
