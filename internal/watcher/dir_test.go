package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions(polling bool) Options {
	return Options{
		DebounceWindow: 30 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
		ForcePolling:   polling,
		Filter: func(name string) bool {
			return strings.HasSuffix(name, ".md")
		},
	}
}

func startWatcher(t *testing.T, opts Options, dir string) *DirWatcher {
	t.Helper()
	w := NewDirWatcher(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx, dir) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	// Let the watcher register before the test writes.
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitBatch(t *testing.T, w *DirWatcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Batches():
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

// =============================================================================
// TS01: Detection
// =============================================================================

func TestDirWatcher_DetectsNewFile(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watcher on an empty directory
			dir := t.TempDir()
			w := startWatcher(t, fastOptions(polling), dir)

			// When: a relevant file appears
			require.NoError(t, os.WriteFile(filepath.Join(dir, "faq.md"), []byte("hi"), 0644))

			// Then: it is reported once changes settle
			batch := waitBatch(t, w)
			require.NotEmpty(t, batch)
			assert.Equal(t, "faq.md", batch[0].Name)
		})
	}
}

func TestDirWatcher_IgnoresFilteredFiles(t *testing.T) {
	// Given: a polling watcher that only accepts .md
	dir := t.TempDir()
	w := startWatcher(t, fastOptions(true), dir)

	// When: an irrelevant file then a relevant one are written
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))

	// Then: only the relevant file is reported
	batch := waitBatch(t, w)
	for _, e := range batch {
		assert.Equal(t, "notes.md", e.Name)
	}
}

func TestDirWatcher_RejectsMissingDirectory(t *testing.T) {
	w := NewDirWatcher(DefaultOptions())

	err := w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	t0 := time.Unix(100, 0)
	prev := map[string]snapshot{
		"same.md":    {modTime: t0, size: 1},
		"changed.md": {modTime: t0, size: 1},
		"gone.md":    {modTime: t0, size: 1},
	}
	next := map[string]snapshot{
		"same.md":    {modTime: t0, size: 1},
		"changed.md": {modTime: t0, size: 2},
		"new.md":     {modTime: t0, size: 1},
	}

	ops := map[string]Operation{}
	for _, e := range diff(prev, next) {
		ops[e.Name] = e.Operation
	}

	assert.Equal(t, map[string]Operation{
		"changed.md": OpModify,
		"new.md":     OpCreate,
		"gone.md":    OpDelete,
	}, ops)
}

// =============================================================================
// TS02: Rebuild loop
// =============================================================================

func TestRun_RebuildsAfterChanges(t *testing.T) {
	// Given: a polling watcher driving a counting rebuild
	dir := t.TempDir()
	w := startWatcher(t, fastOptions(true), dir)

	var rebuilds atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(ctx, w, func(context.Context) error {
			rebuilds.Add(1)
			return nil
		})
	}()

	// When: files are added
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0644))

	// Then: at least one rebuild runs, and Run stops with its context
	assert.Eventually(t, func() bool { return rebuilds.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
