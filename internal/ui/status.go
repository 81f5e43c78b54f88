package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes knowledge base health for `qabrain status`.
type StatusInfo struct {
	Ready      bool      `json:"ready"`
	Generation int       `json:"generation"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
	BuildID    string    `json:"build_id,omitempty"`

	IndexModel      string `json:"index_model,omitempty"`
	IndexDimensions int    `json:"index_dimensions,omitempty"`

	EmbedderProvider string `json:"embedder_provider"`
	EmbedderModel    string `json:"embedder_model"`
	EmbedderStatus   string `json:"embedder_status"` // "ready", "offline"

	UploadDir string   `json:"upload_dir"`
	Files     []string `json:"files"`
	IndexSize int64    `json:"index_size_bytes"`
	Message   string   `json:"message,omitempty"`
}

// StatusRenderer displays knowledge base status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes a human-readable report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	state := r.styles.Warning.Render("not built")
	if info.Ready {
		state = r.styles.Success.Render("ready")
	}
	_, _ = fmt.Fprintf(r.out, "%s %s\n\n", r.styles.Header.Render("Knowledge base:"), state)

	if info.Ready {
		_, _ = fmt.Fprintf(r.out, "  Generation:  %d\n", info.Generation)
		_, _ = fmt.Fprintf(r.out, "  Documents:   %d\n", info.Documents)
		_, _ = fmt.Fprintf(r.out, "  Chunks:      %d\n", info.Chunks)
		if !info.BuiltAt.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  Built:       %s\n", formatTime(info.BuiltAt))
		}
		_, _ = fmt.Fprintf(r.out, "  Index model: %s (%d dims)\n", info.IndexModel, info.IndexDimensions)
		_, _ = fmt.Fprintf(r.out, "  Size:        %s\n", FormatBytes(info.IndexSize))
	} else if info.Message != "" {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Label.Render(info.Message))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Provider: %s\n", info.EmbedderProvider)
	_, _ = fmt.Fprintf(r.out, "    Model:    %s\n", info.EmbedderModel)
	_, _ = fmt.Fprintf(r.out, "    Status:   %s\n", r.renderStatus(info.EmbedderStatus))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Uploads (%s): %d files\n", info.UploadDir, len(info.Files))
	for _, f := range info.Files {
		_, _ = fmt.Fprintf(r.out, "    - %s\n", f)
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	if info.Files == nil {
		info.Files = []string{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "offline":
		return r.styles.Warning.Render(status)
	default:
		return status
	}
}

// formatTime formats a timestamp relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
