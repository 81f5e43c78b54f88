package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event. Used for pipes, CI and --no-tui.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	title  string
	errors int
	warns  int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:   cfg.Output,
		title: cfg.Title,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	if r.title != "" {
		r.mu.Lock()
		_, _ = fmt.Fprintf(r.out, "Building knowledge base from %s\n", r.title)
		r.mu.Unlock()
	}
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" {
		msg = event.Document
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
		r.warns++
	} else {
		r.errors++
	}

	if event.Document != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Document, event.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents, %d chunks in generation %d (%s)",
		stats.Documents, stats.Chunks, stats.Generation, round(stats.Duration))
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	s := stats.Stages
	if s.Chunk > 0 || s.Embed > 0 || s.Write > 0 {
		_, _ = fmt.Fprintln(r.out, "Stages:")
		if s.Extract > 0 {
			_, _ = fmt.Fprintf(r.out, "  Extract: %s\n", round(s.Extract))
		}
		_, _ = fmt.Fprintf(r.out, "  Chunk:   %s\n", round(s.Chunk))
		if s.Embed > 0 && stats.Chunks > 0 {
			_, _ = fmt.Fprintf(r.out, "  Embed:   %s (%.1f chunks/sec)\n",
				round(s.Embed), float64(stats.Chunks)/s.Embed.Seconds())
		} else {
			_, _ = fmt.Fprintf(r.out, "  Embed:   %s\n", round(s.Embed))
		}
		_, _ = fmt.Fprintf(r.out, "  Write:   %s\n", round(s.Write))
	}

	if stats.Embedder.Backend != "" {
		_, _ = fmt.Fprintf(r.out, "Embedder: %s (%s, %d dims)\n",
			stats.Embedder.Backend, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
