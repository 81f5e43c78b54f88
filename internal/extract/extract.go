// Package extract turns uploaded files into plain-text documents.
//
// Supported inputs are plain text and markdown, JSON (re-indented), HTML
// (tags stripped) and PDF. Anything else fails with an unsupported-format
// error, which fails the whole batch in LoadAll.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
)

// Format is the extraction strategy chosen from a file extension.
type Format string

const (
	FormatText        Format = "text"
	FormatJSON        Format = "json"
	FormatHTML        Format = "html"
	FormatPDF         Format = "pdf"
	FormatUnsupported Format = ""
)

var formatsByExt = map[string]Format{
	".txt":      FormatText,
	".md":       FormatText,
	".markdown": FormatText,
	".json":     FormatJSON,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".pdf":      FormatPDF,
}

// DetectFormat maps a filename to its extraction format.
func DetectFormat(filename string) Format {
	return formatsByExt[strings.ToLower(filepath.Ext(filename))]
}

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor converts files to chunk.Documents.
type Extractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
	workers  int
}

// New creates an Extractor. PDFs the built-in parser cannot read fall back
// to pdftotext when it is installed.
func New() *Extractor {
	return &Extractor{runner: execRunner{}, lookPath: exec.LookPath, workers: 4}
}

// NewWithRunner creates an Extractor with an injected command runner for
// the PDF fallback. The PDF tool is assumed to be present.
func NewWithRunner(r CommandRunner) *Extractor {
	return &Extractor{
		runner:   r,
		lookPath: func(name string) (string, error) { return name, nil },
		workers:  4,
	}
}

// Extract converts raw file bytes into a Document named filename.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (chunk.Document, error) {
	var (
		text string
		err  error
	)

	switch DetectFormat(filename) {
	case FormatText:
		text = string(data)
	case FormatJSON:
		text, err = reindentJSON(data)
	case FormatHTML:
		text = StripHTML(string(data))
	case FormatPDF:
		text, err = e.pdfText(ctx, filename, data)
	default:
		return chunk.Document{}, qaerrors.NewUnsupportedFormat(filename, filepath.Ext(filename))
	}
	if err != nil {
		return chunk.Document{}, err
	}

	return chunk.Document{Name: filename, Text: text}, nil
}

// ExtractFile reads path and extracts it under the given document name.
func (e *Extractor) ExtractFile(ctx context.Context, name, path string) (chunk.Document, error) {
	if DetectFormat(name) == FormatUnsupported {
		return chunk.Document{}, qaerrors.NewUnsupportedFormat(name, filepath.Ext(name))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return chunk.Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	return e.Extract(ctx, name, data)
}

// LoadAll extracts every file (document name -> path) concurrently.
// The first failure, including an unsupported format, fails the batch.
// Documents are returned sorted by name.
func (e *Extractor) LoadAll(ctx context.Context, files map[string]string) ([]chunk.Document, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	// Reject unsupported types before reading anything.
	for _, name := range names {
		if DetectFormat(name) == FormatUnsupported {
			return nil, qaerrors.NewUnsupportedFormat(name, filepath.Ext(name))
		}
	}

	docs := make([]chunk.Document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, name := range names {
		g.Go(func() error {
			doc, err := e.ExtractFile(gctx, name, files[name])
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func reindentJSON(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", qaerrors.ValidationError("invalid JSON document", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
