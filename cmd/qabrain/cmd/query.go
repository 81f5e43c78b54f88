package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/output"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/retriever"
)

type queryOptions struct {
	topK   int
	format string // "text", "json", "context"
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the knowledge base",
		Long: `Search the knowledge base for the chunks most similar to a query.

Formats:
  text      ranked results with source and score (default)
  json      results as a JSON array
  context   the prompt-ready context block handed to test generation`,
		Example: `  qabrain query "discount code rules"
  qabrain query "shipping options" -k 3 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, context")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, text string, opts queryOptions) error {
	switch opts.format {
	case "text", "json", "context":
	default:
		return fmt.Errorf("invalid format %q: must be text, json, or context", opts.format)
	}
	if opts.topK < 0 {
		return fmt.Errorf("--top-k must be positive")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("query_started", slog.String("query", text), slog.Int("top_k", opts.topK))

	results, err := a.Query(ctx, text, opts.topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "context":
		block, err := retriever.FormatContext(results)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, block)
		return err
	}

	w := output.New(out)
	if len(results) == 0 {
		w.Status("", "No results.")
		return nil
	}
	for i, r := range results {
		w.Result(i+1, r.SourceDocument, r.Score, r.Order, r.Content)
	}
	return nil
}
