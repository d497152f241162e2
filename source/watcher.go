package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// ContentField is the field under which Watcher exposes file content.
const ContentField = "content"

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Root is the directory exposed as a document collection.
	Root string
	// Include lists doublestar patterns a relative path must match; empty
	// means every file.
	Include []string
	// Exclude lists doublestar patterns matched against the relative path
	// and its base name.
	Exclude []string
	// MaxFileSize skips larger files; zero means 1 MiB.
	MaxFileSize int64
	// Buffer is the capacity of the subscription channel.
	Buffer int
	Logger *slog.Logger
}

// Watcher exposes the files under a root directory as documents. Document
// ids are slash-separated paths relative to the root; the file content is
// stored under ContentField and the parent is the containing directory.
//
// Pulling uses modification times: the cursor is the newest modification
// time seen, in unix nanoseconds. Files that disappear between pulls are
// reported as tombstones. Subscribe pushes changes as fsnotify reports them.
type Watcher struct {
	root    string
	opts    WatcherOptions
	logger  *slog.Logger
	mu      sync.Mutex
	known   map[string]int64
	maxSize int64
}

var (
	_ Source     = (*Watcher)(nil)
	_ Subscriber = (*Watcher)(nil)
)

// NewWatcher validates opts and returns a Watcher.
func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.Root == "" {
		return nil, errors.New("source: watcher root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: root %s is not a directory", root)
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("source: invalid pattern %q", p)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	return &Watcher{
		root:    root,
		opts:    opts,
		logger:  logger.With("component", "watcher", "root", root),
		known:   make(map[string]int64),
		maxSize: maxSize,
	}, nil
}

// Match reports whether the relative path rel is part of the collection.
func (w *Watcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, p := range w.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return false
		}
	}
	if len(w.opts.Include) == 0 {
		return true
	}
	for _, p := range w.opts.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// FetchChanged walks the tree and returns files modified after since plus
// tombstones for files seen earlier that no longer exist.
func (w *Watcher) FetchChanged(ctx context.Context, since Cursor) ([]Document, Cursor, error) {
	var after int64
	if since != "" {
		v, err := strconv.ParseInt(string(since), 10, 64)
		if err != nil {
			return nil, since, fmt.Errorf("source: invalid cursor %q: %w", since, err)
		}
		after = v
	}

	seen := make(map[string]int64)
	var docs []Document
	newest := after
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, ok := w.relative(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mod := info.ModTime().UnixNano()
		seen[rel] = mod
		if mod <= after {
			return nil
		}
		doc, err := w.load(rel)
		if err != nil {
			w.logger.Warn("skip file", "path", rel, "error", err)
			return nil
		}
		docs = append(docs, doc)
		newest = max(newest, mod)
		return nil
	})
	if err != nil {
		return nil, since, fmt.Errorf("source: walk %s: %w", w.root, err)
	}

	w.mu.Lock()
	for id := range w.known {
		if _, ok := seen[id]; !ok {
			docs = append(docs, Document{ID: id, Deleted: true})
		}
	}
	w.known = seen
	w.mu.Unlock()

	return docs, Cursor(strconv.FormatInt(newest, 10)), nil
}

// FetchFull reads the file with the given relative id.
func (w *Watcher) FetchFull(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if !fs.ValidPath(id) || !w.Match(id) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	doc, err := w.load(id)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, err
}

// Subscribe watches the tree recursively and pushes a document for every
// write or create, and a tombstone for every remove or rename.
func (w *Watcher) Subscribe(ctx context.Context) (<-chan Document, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("source: create fsnotify watcher: %w", err)
	}
	if err := w.addTree(fw, w.root); err != nil {
		fw.Close()
		return nil, err
	}
	out := make(chan Document, max(w.opts.Buffer, 1))
	go func() {
		defer close(out)
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("fsnotify error", "error", err)
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				doc, emit := w.translate(fw, ev)
				if !emit {
					continue
				}
				select {
				case out <- doc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (w *Watcher) translate(fw *fsnotify.Watcher, ev fsnotify.Event) (Document, bool) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.logger.Warn("watch new directory", "path", ev.Name, "error", err)
			}
			return Document{}, false
		}
	}
	rel, ok := w.relative(ev.Name)
	if !ok {
		return Document{}, false
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.known, rel)
		w.mu.Unlock()
		return Document{ID: rel, Deleted: true}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		doc, err := w.load(rel)
		if err != nil {
			w.logger.Debug("skip event", "path", rel, "op", ev.Op.String(), "error", err)
			return Document{}, false
		}
		return doc, true
	}
	return Document{}, false
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("source: watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, w.Match(rel)
}

func (w *Watcher) load(rel string) (Document, error) {
	path := filepath.Join(w.root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("source: %s is a directory", rel)
	}
	if info.Size() > w.maxSize {
		return Document{}, fmt.Errorf("source: %s exceeds %d bytes", rel, w.maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	parent := filepath.ToSlash(filepath.Dir(rel))
	if parent == "." {
		parent = ""
	}
	return Document{
		ID:     rel,
		Parent: parent,
		Fields: map[string]any{
			ContentField: string(data),
			"path":       rel,
			"size":       info.Size(),
		},
	}, nil
}
