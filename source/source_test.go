package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/cursorfold/folding"
	"github.com/odvcencio/cursorfold/lsp"
)

var sample = []folding.Range{
	{Start: 1, End: 10},
	{Start: 2, End: 4},
	{Start: 6, End: 9},
	{Start: 11, End: 15},
}

func TestParseRanges(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"json list", `[{"start":1,"end":10},{"start":2,"end":4},{"start":6,"end":9},{"start":11,"end":15}]`},
		{"lsp shaped", `[{"startLine":11,"endLine":15},{"startLine":1,"endLine":10,"kind":"region"},{"startLine":6,"endLine":9},{"startLine":2,"endLine":4}]`},
		{"json document", `{"uri":"file:///a.go","ranges":[{"start":2,"end":4},{"start":1,"end":10},{"start":6,"end":9},{"start":11,"end":15}]}`},
		{"yaml", "ranges:\n  - {start: 1, end: 10}\n  - start: 2\n    end: 4\n  - {start: 6, end: 9}\n  - {startLine: 11, endLine: 15}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRanges([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, sample, got)
		})
	}
}

func TestParseRangesEmpty(t *testing.T) {
	got, err := ParseRanges(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseRanges([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRangesErrors(t *testing.T) {
	for _, data := range []string{
		`[{"start":1}]`,
		`"just a string"`,
		`[{"start":1,"end":`,
		`{"ranges": 4}`,
	} {
		_, err := ParseRanges([]byte(data))
		assert.ErrorIs(t, err, ErrInvalidRanges, data)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.ranges.json")
	writeFile(t, path, `[{"start":11,"end":15},{"start":1,"end":10}]`)
	want := []folding.Range{{Start: 1, End: 10}, {Start: 11, End: 15}}
	ctx := context.Background()

	got, err := FileProvider{}.FoldingRanges(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = FileProvider{}.FoldingRanges(ctx, lsp.URIFromPath(path))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = FileProvider{Path: path}.FoldingRanges(ctx, "file:///somewhere/else.go")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = FileProvider{}.FoldingRanges(ctx, filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = FileProvider{}.FoldingRanges(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRanges)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = FileProvider{Path: path}.FoldingRanges(cancelled, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatcherMatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(WatcherConfig{Root: dir})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.Match(filepath.Join(dir, "a.ranges.json")))
	assert.True(t, w.Match(filepath.Join(dir, "deep", "er", "b.ranges.yml")))
	assert.False(t, w.Match(filepath.Join(dir, "a.json")))

	_, err = NewWatcher(WatcherConfig{Root: dir, Pattern: "[unclosed"})
	assert.Error(t, err)
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
		return ""
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w, err := NewWatcher(WatcherConfig{Root: dir, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := w.Watch(ctx)

	writeFile(t, filepath.Join(sub, "notes.txt"), "ignored")
	target := filepath.Join(sub, "main.ranges.yaml")
	writeFile(t, target, "- {start: 1, end: 2}\n")
	assert.Equal(t, target, receive(t, changes))

	cancel()
	for range changes {
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := NewWatcher(WatcherConfig{Root: t.TempDir()})
	require.NoError(t, err)
	changes := w.Watch(context.Background())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	select {
	case _, ok := <-changes:
		assert.False(t, ok, "no change expected after Close")
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after Close")
	}

	// A watcher that never ran is released too.
	idle, err := NewWatcher(WatcherConfig{Root: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, idle.Close())
}

func TestIsRangesFile(t *testing.T) {
	assert.True(t, IsRangesFile("/x/y/main.ranges.json"))
	assert.True(t, IsRangesFile("main.ranges.yml"))
	assert.False(t, IsRangesFile("/x/main.go"))
	assert.False(t, IsRangesFile("ranges.json"))
}
