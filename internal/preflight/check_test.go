package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	model     string
	available bool
}

func (f fakeEmbedder) ModelName() string                 { return f.model }
func (f fakeEmbedder) Available(_ context.Context) bool { return f.available }

func foundTool(name string) (string, error) { return "/usr/bin/" + name, nil }
func missingTool(string) (string, error)    { return "", errors.New("not found") }

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "embedder", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

// =============================================================================
// Individual checks
// =============================================================================

func TestCheckWritePermissions_CreatesMissingDir(t *testing.T) {
	// Given: a data dir that does not exist yet
	dir := filepath.Join(t.TempDir(), ".qabrain")

	// When: checking write permission
	result := New().CheckWritePermissions(dir)

	// Then: the dir is created and no probe file remains
	assert.Equal(t, StatusPass, result.Status)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckWritePermissions_FailsOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	result := New().CheckWritePermissions(filepath.Join(file, "sub"))

	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestCheckDiskSpace_WalksUpToExistingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	result := New().CheckDiskSpace(dir)

	assert.NotEqual(t, "", result.Message)
	assert.Contains(t, result.Message, "free")
}

func TestCheckEmbedder(t *testing.T) {
	ctx := context.Background()

	up := New(WithEmbedder(fakeEmbedder{model: "nomic-embed-text", available: true})).CheckEmbedder(ctx)
	assert.Equal(t, StatusPass, up.Status)
	assert.Contains(t, up.Message, "nomic-embed-text")

	down := New(WithEmbedder(fakeEmbedder{model: "nomic-embed-text"})).CheckEmbedder(ctx)
	assert.Equal(t, StatusFail, down.Status)
	assert.True(t, down.IsCritical())
	assert.Contains(t, down.Details, "QABRAIN_EMBEDDER=static")
}

func TestCheckPDFTool(t *testing.T) {
	found := New(WithLookPath(foundTool)).CheckPDFTool()
	assert.Equal(t, StatusPass, found.Status)
	assert.Equal(t, "/usr/bin/pdftotext", found.Message)

	missing := New(WithLookPath(missingTool)).CheckPDFTool()
	assert.Equal(t, StatusWarn, missing.Status)
	assert.False(t, missing.IsCritical())
}

// =============================================================================
// RunAll and reporting
// =============================================================================

func TestRunAll_IncludesEmbedderOnlyWhenSet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	without := New(WithLookPath(foundTool)).RunAll(ctx, dir)
	with := New(WithLookPath(foundTool), WithEmbedder(fakeEmbedder{model: "m", available: true})).RunAll(ctx, dir)

	names := func(rs []CheckResult) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Name)
		}
		return out
	}
	assert.NotContains(t, names(without), "embedder")
	assert.Contains(t, names(with), "embedder")
	assert.Contains(t, names(with), "disk_space")
	assert.Contains(t, names(with), "pdftotext")
}

func TestSummaryStatus(t *testing.T) {
	c := New()

	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{
		{Status: StatusPass},
		{Status: StatusWarn},
	}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{
		{Status: StatusWarn},
		{Status: StatusFail, Required: true},
	}))
}

func TestPrintResults_ListsErrorsAndWarnings(t *testing.T) {
	// Given: one critical failure and one warning
	buf := &bytes.Buffer{}
	c := New(WithOutput(buf), WithVerbose(true))
	results := []CheckResult{
		{Name: "embedder", Status: StatusFail, Required: true, Message: "down", Details: "start ollama"},
		{Name: "pdftotext", Status: StatusWarn, Message: "missing"},
	}

	// When: printing
	c.PrintResults(results)

	// Then: both appear in their sections with details
	out := buf.String()
	assert.Contains(t, out, "[FAIL] embedder: down")
	assert.Contains(t, out, "start ollama")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
	assert.True(t, c.HasCriticalFailures(results))
}
