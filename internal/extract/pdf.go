package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
)

// pdfTool converts PDF to text on stdout.
const pdfTool = "pdftotext"

// pdfText extracts text in-process. When the parser rejects the file or finds
// no text, pdftotext is tried if it is installed.
func (e *Extractor) pdfText(ctx context.Context, filename string, data []byte) (string, error) {
	text, parseErr := parsePDF(data)
	if parseErr == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	if _, err := e.lookPath(pdfTool); err != nil {
		if parseErr != nil {
			return "", qaerrors.ValidationError(fmt.Sprintf("cannot read PDF %s", filename), parseErr).
				WithSuggestion("Install poppler-utils (pdftotext) to ingest PDFs the built-in reader cannot parse")
		}
		return text, nil
	}
	return e.runPDFTool(ctx, filename, data)
}

// parsePDF returns the plain text of every page. The parser panics on some
// malformed inputs; those become errors.
func parsePDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		page, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(page)
	}
	return b.String(), nil
}

func (e *Extractor) runPDFTool(ctx context.Context, filename string, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "qabrain-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, pdfTool, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed for %s: %w", filename, err)
	}
	// pdftotext separates pages with form feeds.
	return strings.ReplaceAll(string(out), "\f", "\n"), nil
}
