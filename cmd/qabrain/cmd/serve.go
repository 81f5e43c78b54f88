package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/logging"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge base over MCP (stdio)",
		Long: `Start an MCP server on stdin/stdout exposing the knowledge base to
AI assistants.

Tools: search_knowledge, ingest_documents, knowledge_status
Resource: qabrain://html/latest

stdout carries JSON-RPC only; logs go to ~/.qabrain/logs/server.log.
With --watch, the upload directory is watched and the knowledge base is
rebuilt whenever files change.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, watch)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild when the upload directory changes (overrides watch.enabled)")

	return cmd
}

func runServe(ctx context.Context, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Nothing but JSON-RPC may reach stdout, so logging goes to file only.
	logger, cleanup, err := logging.Setup(logging.MCPConfig(cfg.Server.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	a, err := openAppWith(ctx, cfg)
	if err != nil {
		slog.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if watch || cfg.Watch.Enabled {
		w, err := newUploadWatcher(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
		go startWatch(ctx, w, a, cfg.Paths.UploadDir)
	}

	return srv.Serve(ctx)
}
