package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/app"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/ui"
)

type ingestOptions struct {
	noTUI   bool
	noColor bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Build the knowledge base from documents",
		Long: `Build a new knowledge base generation from documents.

Files are indexed together as one batch. The batch is all-or-nothing: if
any file cannot be read, the current knowledge base stays in place. After
a successful build the upload directory holds exactly the batch.

With no arguments, every supported file already in the upload directory
is indexed.

Supported formats: .md .markdown .txt .json .html .htm .pdf`,
		Example: `  qabrain ingest docs/requirements.md checkout.html
  qabrain ingest specs/*.md
  qabrain ingest --no-tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, paths []string, opts ingestOptions) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithTitle(a.Config().Paths.UploadDir),
	))

	var status app.IngestionStatus
	if len(paths) > 0 {
		status, err = a.IngestPaths(ctx, paths, app.WithRenderer(renderer))
	} else {
		status, err = a.IngestUploads(ctx, app.WithRenderer(renderer))
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	slog.Info("ingest_cli_complete",
		slog.Int("documents", status.DocumentsProcessed),
		slog.Int("chunks", status.ChunksIndexed),
		slog.Int("generation", status.Generation))
	return nil
}
