package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
)

type mockRunner struct {
	output []byte
	err    error
	calls  [][]string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.output, m.err
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"notes.txt":      FormatText,
		"README.MD":      FormatText,
		"guide.markdown": FormatText,
		"api.json":       FormatJSON,
		"checkout.html":  FormatHTML,
		"page.HTM":       FormatHTML,
		"spec.pdf":       FormatPDF,
		"image.png":      FormatUnsupported,
		"noext":          FormatUnsupported,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
}

func TestExtract_Text(t *testing.T) {
	doc, err := New().Extract(context.Background(), "notes.md", []byte("# Title\n\nBody"))

	require.NoError(t, err)
	assert.Equal(t, "notes.md", doc.Name)
	assert.Equal(t, "# Title\n\nBody", doc.Text)
}

func TestExtract_JSONIsReindented(t *testing.T) {
	doc, err := New().Extract(context.Background(), "rules.json", []byte(`{"discount":{"code":"SAVE15","percent":15}}`))

	require.NoError(t, err)
	assert.Equal(t, "{\n  \"discount\": {\n    \"code\": \"SAVE15\",\n    \"percent\": 15\n  }\n}", doc.Text)
}

func TestExtract_InvalidJSON(t *testing.T) {
	_, err := New().Extract(context.Background(), "bad.json", []byte(`{"open":`))

	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeInvalidInput, qaerrors.GetCode(err))
}

func TestExtract_HTMLKeepsVisibleText(t *testing.T) {
	page := `<html><head><title>Checkout</title><style>.x{color:red}</style></head>
<body><script>alert(1)</script>
<form><label for="email">Email &amp; phone</label><input id="email"/>
<button id="pay">Pay Now</button></form><!-- hidden --></body></html>`

	doc, err := New().Extract(context.Background(), "checkout.html", []byte(page))

	require.NoError(t, err)
	assert.Equal(t, "Checkout\nEmail & phone\nPay Now", doc.Text)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	_, err := New().Extract(context.Background(), "photo.png", []byte{0x89})

	require.Error(t, err)
	assert.True(t, errors.Is(err, qaerrors.ErrUnsupportedFormat))
}

// minimalPDF builds a one-page PDF that shows text in Helvetica.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtract_PDFParsedInProcess(t *testing.T) {
	// Given: a real PDF and no pdftotext on the machine
	runner := &mockRunner{}
	e := NewWithRunner(runner)
	e.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	// When: extracting it
	doc, err := e.Extract(context.Background(), "spec.pdf", minimalPDF("Checkout accepts SAVE15"))

	// Then: the text comes from the built-in reader
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Checkout accepts SAVE15")
	assert.Empty(t, runner.calls)
}

func TestExtract_PDFFallsBackToTool(t *testing.T) {
	// Given: bytes the built-in reader rejects
	runner := &mockRunner{output: []byte("page one\fpage two")}

	// When: pdftotext is available
	doc, err := NewWithRunner(runner).Extract(context.Background(), "spec.pdf", []byte("%PDF-1.4"))

	// Then: its output is used with pages joined by newlines
	require.NoError(t, err)
	assert.Equal(t, "page one\npage two", doc.Text)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pdftotext", runner.calls[0][0])
}

func TestExtract_PDFToolFailure(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext crashed")}

	_, err := NewWithRunner(runner).Extract(context.Background(), "spec.pdf", []byte("%PDF"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestExtract_UnreadablePDFWithoutTool(t *testing.T) {
	e := NewWithRunner(&mockRunner{})
	e.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := e.Extract(context.Background(), "spec.pdf", []byte("not a pdf"))

	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeInvalidInput, qaerrors.GetCode(err))
	assert.Contains(t, err.Error(), "spec.pdf")
}

func TestLoadAll_ReturnsSortedDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{}
	for name, body := range map[string]string{"b.txt": "bee", "a.md": "ay", "c.json": `[1]`} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		files[name] = p
	}

	docs, err := New().LoadAll(context.Background(), files)

	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a.md", docs[0].Name)
	assert.Equal(t, "b.txt", docs[1].Name)
	assert.Equal(t, "c.json", docs[2].Name)
	assert.Equal(t, "[\n  1\n]", docs[2].Text)
}

func TestLoadAll_UnsupportedFailsWholeBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("fine"), 0o644))

	docs, err := New().LoadAll(context.Background(), map[string]string{
		"good.txt": good,
		"evil.exe": filepath.Join(dir, "evil.exe"),
	})

	assert.Nil(t, docs)
	assert.True(t, errors.Is(err, qaerrors.ErrUnsupportedFormat))
}

func TestLoadAll_MissingFile(t *testing.T) {
	_, err := New().LoadAll(context.Background(), map[string]string{
		"gone.txt": filepath.Join(t.TempDir(), "gone.txt"),
	})

	assert.Error(t, err)
}
