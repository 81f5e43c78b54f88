package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/app"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base status",
		Long: `Show whether a knowledge base has been built, which generation is
current, the embedder in use, and the files from the latest ingest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput, noColor bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info := statusInfo(a.Status(ctx))
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// statusInfo converts app status into its display form.
func statusInfo(s app.Status) ui.StatusInfo {
	info := ui.StatusInfo{
		Ready:            s.Ready,
		Generation:       s.Generation,
		Documents:        s.Documents,
		Chunks:           s.Chunks,
		BuiltAt:          s.BuiltAt,
		BuildID:          s.BuildID,
		IndexModel:       s.Model,
		IndexDimensions:  s.Dimensions,
		EmbedderProvider: s.EmbedderProvider,
		EmbedderModel:    s.EmbedderModel,
		EmbedderStatus:   "offline",
		UploadDir:        s.UploadDir,
		IndexSize:        s.IndexSize,
		Message:          s.Message,
	}
	if s.EmbedderAvailable {
		info.EmbedderStatus = "ready"
	}
	for _, f := range s.Files {
		info.Files = append(info.Files, f.Name)
	}
	return info
}
