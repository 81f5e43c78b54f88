package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher watches the files directly inside one directory.
// Subdirectories are ignored.
type DirWatcher struct {
	opts      Options
	debouncer *Debouncer
	batches   chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	root      string
	polling   bool
}

// NewDirWatcher creates a watcher with the given options.
func NewDirWatcher(opts Options) *DirWatcher {
	opts = opts.WithDefaults()
	return &DirWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		batches:   make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// Start watches dir until ctx is cancelled or Stop is called. It blocks.
func (w *DirWatcher) Start(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve watch path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", abs)
	}
	w.root = abs

	go w.forward(ctx)

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fsw.Add(abs); err == nil {
				slog.Info("watch_started", slog.String("dir", abs), slog.String("mode", "fsnotify"))
				return w.runFsnotify(ctx, fsw)
			}
			_ = fsw.Close()
		}
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
	}

	w.polling = true
	slog.Info("watch_started", slog.String("dir", abs), slog.String("mode", "polling"))
	return w.runPolling(ctx)
}

// Polling reports whether the watcher fell back to polling.
func (w *DirWatcher) Polling() bool { return w.polling }

// Batches returns debounced event batches.
func (w *DirWatcher) Batches() <-chan []FileEvent { return w.batches }

// Errors returns non-fatal watcher errors.
func (w *DirWatcher) Errors() <-chan error { return w.errors }

// Stop stops the watcher. Safe to call multiple times.
func (w *DirWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
	})
	return nil
}

func (w *DirWatcher) relevant(name string) bool {
	if w.opts.Filter != nil {
		return w.opts.Filter(name)
	}
	return !strings.HasPrefix(name, ".")
}

func (w *DirWatcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	defer func() { _ = fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *DirWatcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if filepath.Dir(ev.Name) != w.root || !w.relevant(name) {
		return
	}
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return // chmod
	}
	w.debouncer.Add(FileEvent{Name: name, Operation: op, Timestamp: time.Now()})
}

type snapshot struct {
	modTime time.Time
	size    int64
}

func (w *DirWatcher) scan() (map[string]snapshot, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, err
	}
	state := make(map[string]snapshot, len(entries))
	for _, e := range entries {
		if e.IsDir() || !w.relevant(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed mid-scan
		}
		state[e.Name()] = snapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return state, nil
}

func (w *DirWatcher) runPolling(ctx context.Context) error {
	prev, err := w.scan()
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			next, err := w.scan()
			if err != nil {
				w.emitError(err)
				continue
			}
			for _, e := range diff(prev, next) {
				w.debouncer.Add(e)
			}
			prev = next
		}
	}
}

// diff returns the events that turn prev into next.
func diff(prev, next map[string]snapshot) []FileEvent {
	now := time.Now()
	var events []FileEvent
	for name, s := range next {
		old, ok := prev[name]
		switch {
		case !ok:
			events = append(events, FileEvent{Name: name, Operation: OpCreate, Timestamp: now})
		case !old.modTime.Equal(s.modTime) || old.size != s.size:
			events = append(events, FileEvent{Name: name, Operation: OpModify, Timestamp: now})
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			events = append(events, FileEvent{Name: name, Operation: OpDelete, Timestamp: now})
		}
	}
	return events
}

func (w *DirWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			select {
			case w.batches <- batch:
			default:
				slog.Warn("watch_batch_dropped", slog.Int("events", len(batch)))
			}
		}
	}
}

func (w *DirWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		slog.Warn("watch_error", slog.String("error", err.Error()))
	}
}
