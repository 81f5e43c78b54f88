package watcher

import (
	"context"
	"log/slog"
	"time"
)

// RebuildFunc rebuilds the knowledge base from the watched directory.
type RebuildFunc func(ctx context.Context) error

// Run rebuilds after every settled batch from w until ctx is done. Batches
// arriving during a rebuild collapse into a single follow-up rebuild, since
// each rebuild reads the whole directory. Rebuild errors are logged; the
// previous knowledge base stays in place.
func Run(ctx context.Context, w *DirWatcher, rebuild RebuildFunc) {
	trigger := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger:
			}

			start := time.Now()
			if err := rebuild(ctx); err != nil {
				slog.Warn("watch_rebuild_failed",
					slog.String("error", err.Error()),
					slog.Int64("duration_ms", time.Since(start).Milliseconds()))
				continue
			}
			slog.Info("watch_rebuild_complete", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		}
	}()

	defer func() { <-done }()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Batches():
			if !ok {
				return
			}
			slog.Debug("watch_batch", slog.Int("events", len(batch)))
			select {
			case trigger <- struct{}{}:
			default: // a rebuild is already queued
			}
		case err, ok := <-w.Errors():
			if ok {
				slog.Warn("watch_error", slog.String("error", err.Error()))
			}
		}
	}
}
