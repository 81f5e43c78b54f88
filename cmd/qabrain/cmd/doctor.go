package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that qabrain can run here",
		Long: `Check disk space, write permission, the embedder and optional tools.

Exits non-zero when a required check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, jsonOutput, verbose)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, jsonOutput, verbose bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []preflight.Option{
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithVerbose(verbose),
	}

	var openFailure *preflight.CheckResult
	a, err := openAppWith(ctx, cfg)
	if err != nil {
		openFailure = &preflight.CheckResult{
			Name:     "embedder",
			Status:   preflight.StatusFail,
			Message:  err.Error(),
			Required: true,
		}
	} else {
		defer func() { _ = a.Close() }()
		opts = append(opts, preflight.WithEmbedder(a.Embedder()))
	}

	checker := preflight.New(opts...)
	results := checker.RunAll(ctx, cfg.Paths.DataDir)
	if openFailure != nil {
		results = append(results, *openFailure)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"status": checker.SummaryStatus(results),
			"checks": results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}
