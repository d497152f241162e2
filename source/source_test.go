package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vector"
)

func TestDocument_Text(t *testing.T) {
	doc := source.Document{ID: "1", Fields: map[string]any{
		"title": "hello",
		"n":     42,
		"ok":    true,
		"tags":  []string{"a", "b"},
		"empty": "",
	}}
	cases := []struct {
		key  string
		want string
		ok   bool
	}{
		{"title", "hello", true},
		{"n", "42", true},
		{"ok", "true", true},
		{"tags", `["a","b"]`, true},
		{"empty", "", false},
		{"missing", "", false},
	}
	for _, tc := range cases {
		got, ok := doc.Text(tc.key)
		assert.Equal(t, tc.want, got, tc.key)
		assert.Equal(t, tc.ok, ok, tc.key)
	}
}

func TestMemory_FetchChanged(t *testing.T) {
	ctx := context.Background()
	m := source.NewMemory(
		source.Document{ID: "a", Fields: map[string]any{"body": "alpha"}},
		source.Document{ID: "b", Fields: map[string]any{"body": "beta"}},
	)

	docs, cur, err := m.FetchChanged(ctx, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)

	docs, cur2, err := m.FetchChanged(ctx, cur)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, cur, cur2)

	m.Put(source.Document{ID: "a", Fields: map[string]any{"body": "alpha2"}})
	m.Delete("b")
	m.Delete("missing")
	docs, cur, err = m.FetchChanged(ctx, cur)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	text, _ := docs[0].Text("body")
	assert.Equal(t, "alpha2", text)
	assert.True(t, docs[1].Deleted)
	assert.Equal(t, "b", docs[1].ID)
	assert.Equal(t, source.Cursor("4"), cur)

	_, err = m.FetchFull(ctx, "b")
	assert.ErrorIs(t, err, source.ErrNotFound)
	assert.ErrorIs(t, err, vector.ErrNotFound)

	_, _, err = m.FetchChanged(ctx, "bogus")
	assert.Error(t, err)
}

func TestMemory_FetchFullIsolated(t *testing.T) {
	m := source.NewMemory(source.Document{ID: "a", Fields: map[string]any{"body": "x"}})
	doc, err := m.FetchFull(context.Background(), "a")
	require.NoError(t, err)
	doc.Fields["body"] = "mutated"

	again, err := m.FetchFull(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "x", again.Fields["body"])
}

func writeFile(t *testing.T, root, rel, content string, mod time.Time) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestWatcher_FetchChanged(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	base := time.Unix(1_700_000_000, 0)
	writeFile(t, root, "docs/a.md", "alpha", base)
	writeFile(t, root, "docs/b.txt", "beta", base)
	writeFile(t, root, "node_modules/x.md", "skip", base)

	w, err := source.NewWatcher(source.WatcherOptions{
		Root:    root,
		Include: []string{"**/*.md", "**/*.txt"},
		Exclude: []string{"node_modules/**"},
	})
	require.NoError(t, err)
	assert.False(t, w.Match("node_modules/x.md"))
	assert.False(t, w.Match("docs/c.go"))

	docs, cur, err := w.FetchChanged(ctx, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	ids := []string{docs[0].ID, docs[1].ID}
	assert.ElementsMatch(t, []string{"docs/a.md", "docs/b.txt"}, ids)
	for _, d := range docs {
		assert.Equal(t, "docs", d.Parent)
	}

	writeFile(t, root, "docs/a.md", "alpha v2", base.Add(time.Minute))
	require.NoError(t, os.Remove(filepath.Join(root, "docs", "b.txt")))
	docs, _, err = w.FetchChanged(ctx, cur)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	byID := map[string]source.Document{}
	for _, d := range docs {
		byID[d.ID] = d
	}
	text, ok := byID["docs/a.md"].Text(source.ContentField)
	assert.True(t, ok)
	assert.Equal(t, "alpha v2", text)
	assert.True(t, byID["docs/b.txt"].Deleted)

	full, err := w.FetchFull(ctx, "docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha v2", full.Fields[source.ContentField])
	_, err = w.FetchFull(ctx, "docs/b.txt")
	assert.ErrorIs(t, err, source.ErrNotFound)
	_, err = w.FetchFull(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestWatcher_Subscribe(t *testing.T) {
	root := t.TempDir()
	w, err := source.NewWatcher(source.WatcherOptions{Root: root, Buffer: 16})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := w.Subscribe(ctx)
	require.NoError(t, err)

	path := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case doc := <-ch:
			if doc.ID != "note.txt" || doc.Deleted {
				continue
			}
			if text, _ := doc.Text(source.ContentField); text == "hello" {
				cancel()
				for range ch {
				}
				return
			}
		case <-deadline:
			t.Fatal("no event for note.txt")
		}
	}
}

func TestNewWatcher_Invalid(t *testing.T) {
	_, err := source.NewWatcher(source.WatcherOptions{})
	assert.Error(t, err)
	_, err = source.NewWatcher(source.WatcherOptions{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
	_, err = source.NewWatcher(source.WatcherOptions{Root: t.TempDir(), Include: []string{"[a"}})
	assert.Error(t, err)
}
