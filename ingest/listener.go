package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/vecindex/source"
)

// CursorStore persists listener positions across restarts.
type CursorStore interface {
	LoadCursor(ctx context.Context, listener string) (source.Cursor, error)
	SaveCursor(ctx context.Context, listener string, cursor source.Cursor) error
}

// MemoryCursors is an in-process CursorStore.
type MemoryCursors struct {
	mu      sync.Mutex
	cursors map[string]source.Cursor
}

// NewMemoryCursors returns an empty MemoryCursors.
func NewMemoryCursors() *MemoryCursors {
	return &MemoryCursors{cursors: make(map[string]source.Cursor)}
}

func (m *MemoryCursors) LoadCursor(_ context.Context, listener string) (source.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[listener], nil
}

func (m *MemoryCursors) SaveCursor(_ context.Context, listener string, cursor source.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[listener] = cursor
	return nil
}

// Listener moves changes from a source through a Pipeline.
type Listener struct {
	name    string
	src     source.Source
	pipe    *Pipeline
	cursors CursorStore
	logger  *slog.Logger

	mu     sync.Mutex
	loaded bool
	cursor source.Cursor
}

// NewListener creates a listener. A nil cursors keeps positions in memory.
func NewListener(name string, src source.Source, pipe *Pipeline, cursors CursorStore) *Listener {
	if cursors == nil {
		cursors = NewMemoryCursors()
	}
	return &Listener{
		name:    name,
		src:     src,
		pipe:    pipe,
		cursors: cursors,
		logger:  pipe.logger.With("listener", name),
	}
}

// Cursor returns the position after the last processed batch.
func (l *Listener) Cursor() source.Cursor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Poll fetches one batch of changes, ingests it and advances the cursor.
// Documents that fail are reported and skipped; the cursor still advances.
// An empty report is returned when nothing changed.
func (l *Listener) Poll(ctx context.Context) (*Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		cur, err := l.cursors.LoadCursor(ctx, l.name)
		if err != nil {
			return nil, fmt.Errorf("ingest: load cursor of %s: %w", l.name, err)
		}
		l.cursor, l.loaded = cur, true
	}
	docs, next, err := l.src.FetchChanged(ctx, l.cursor)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch changes for %s: %w", l.name, err)
	}
	if len(docs) == 0 {
		return &Report{}, l.advance(ctx, next)
	}
	report, err := l.pipe.Ingest(ctx, Events(docs, l.pipe.cfg.Keys))
	if err != nil {
		return report, err
	}
	return report, l.advance(ctx, next)
}

func (l *Listener) advance(ctx context.Context, next source.Cursor) error {
	if next == l.cursor {
		return nil
	}
	if err := l.cursors.SaveCursor(ctx, l.name, next); err != nil {
		return fmt.Errorf("ingest: save cursor of %s: %w", l.name, err)
	}
	l.cursor = next
	return nil
}

// Run processes changes until ctx ends. Sources implementing
// source.Subscriber are consumed as a push stream after an initial catch-up
// poll; others are polled, immediately again after a non-empty batch and
// every PollInterval otherwise. Poll errors are logged and retried.
func (l *Listener) Run(ctx context.Context) error {
	if sub, ok := l.src.(source.Subscriber); ok {
		if _, err := l.Poll(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("catch-up poll failed", "error", err)
		}
		return l.consume(ctx, sub)
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		report, err := l.Poll(ctx)
		delay := l.pipe.cfg.PollInterval
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			l.logger.Warn("poll failed", "error", err)
		case report.Indexed+report.Deleted+len(report.Failed) > 0:
			delay = 0
		}
		timer.Reset(delay)
	}
}

func (l *Listener) consume(ctx context.Context, sub source.Subscriber) error {
	ch, err := sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("ingest: subscribe %s: %w", l.name, err)
	}
	limit := l.pipe.cfg.MaxChunkSize
	for {
		var batch []source.Document
		select {
		case <-ctx.Done():
			return ctx.Err()
		case doc, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("ingest: subscription closed")
			}
			batch = append(batch, doc)
		}
	drain:
		for len(batch) < limit {
			select {
			case doc, ok := <-ch:
				if !ok {
					break drain
				}
				batch = append(batch, doc)
			default:
				break drain
			}
		}
		report, err := l.pipe.Ingest(ctx, Events(batch, l.pipe.cfg.Keys))
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			l.logger.Warn("pushed changes failed", "failed", len(report.Failed), "error", report.Err())
		}
	}
}
