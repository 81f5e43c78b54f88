package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/app"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/config"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/extract"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var polling bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the knowledge base when uploads change",
		Long: `Watch the upload directory and rebuild the knowledge base from every
supported file in it after changes settle.

Changes arriving during a rebuild trigger one more rebuild once it
finishes. A failed rebuild leaves the previous knowledge base in place.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, polling)
		},
	}

	cmd.Flags().BoolVar(&polling, "poll", false, "Poll the directory instead of using filesystem events")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, polling bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openAppWith(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w, err := newUploadWatcher(cfg, func(o *watcher.Options) { o.ForcePolling = polling })
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", cfg.Paths.UploadDir)
	startWatch(ctx, w, a, cfg.Paths.UploadDir)
	return nil
}

// newUploadWatcher builds a watcher for supported documents in the upload
// directory using the configured debounce window.
func newUploadWatcher(cfg *config.Config, mods ...func(*watcher.Options)) (*watcher.DirWatcher, error) {
	debounce, err := cfg.WatchDebounce()
	if err != nil {
		return nil, err
	}
	opts := watcher.DefaultOptions()
	opts.DebounceWindow = debounce
	opts.Filter = func(name string) bool {
		return !strings.HasPrefix(name, ".") && extract.DetectFormat(name) != extract.FormatUnsupported
	}
	for _, mod := range mods {
		mod(&opts)
	}
	return watcher.NewDirWatcher(opts), nil
}

// startWatch runs the watcher and rebuild loop until ctx is done.
func startWatch(ctx context.Context, w *watcher.DirWatcher, a *app.App, dir string) {
	go func() {
		if err := w.Start(ctx, dir); err != nil {
			slog.Error("watch_start_failed", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}()

	watcher.Run(ctx, w, func(ctx context.Context) error {
		_, err := a.IngestUploads(ctx)
		return err
	})
}

// openAppWith opens the knowledge base for an already loaded config.
func openAppWith(ctx context.Context, cfg *config.Config) (*app.App, error) {
	a, err := app.Open(ctx, cfg, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return a, nil
}
