package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TS01: Progress lines
// =============================================================================

func TestPlainRenderer_UpdateProgress_WithTotal(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: a chunking event for a document arrives
	r.UpdateProgress(ProgressEvent{
		Stage:    StageChunking,
		Current:  2,
		Total:    3,
		Document: "checkout.md",
	})

	// Then: it is written as one line
	assert.Equal(t, "[CHUNK] 2/3 - checkout.md\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_MessageOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageWriting, Message: "Writing index generation"})

	assert.Equal(t, "[WRITE] Writing index generation\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_EmptyEventIsSilent(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding})

	assert.Empty(t, buf.String())
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer and events for every stage
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf, WithTitle("/tmp/uploads")))
	require.NoError(t, r.Start(context.Background()))

	for _, stage := range []Stage{StageExtracting, StageChunking, StageEmbedding, StageWriting} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 1, Total: 2, Message: "working"})
	}
	r.Complete(CompletionStats{Documents: 1, Chunks: 2, Generation: 1})

	// Then: no escape sequences are written
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "Building knowledge base from /tmp/uploads")
}

// =============================================================================
// TS02: Errors and completion
// =============================================================================

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{Document: "notes.docx", Err: errors.New("unsupported format")})
	r.AddError(ErrorEvent{Err: errors.New("slow embedder"), IsWarn: true})

	assert.Contains(t, buf.String(), "ERROR: notes.docx: unsupported format\n")
	assert.Contains(t, buf.String(), "WARN: slow embedder\n")
}

func TestPlainRenderer_Complete_Summary(t *testing.T) {
	// Given: a finished build
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing with stage timings and embedder info
	r.Complete(CompletionStats{
		Documents:  3,
		Chunks:     10,
		Generation: 4,
		Duration:   1500 * time.Millisecond,
		Stages: StageTimings{
			Chunk: 10 * time.Millisecond,
			Embed: time.Second,
			Write: 200 * time.Millisecond,
		},
		Embedder: EmbedderInfo{Backend: "static", Model: "static", Dimensions: 256},
	})

	// Then: the summary names the generation, throughput and embedder
	out := buf.String()
	assert.Contains(t, out, "Complete: 3 documents, 10 chunks in generation 4 (1.5s)")
	assert.Contains(t, out, "Embed:   1s (10.0 chunks/sec)")
	assert.Contains(t, out, "Embedder: static (static, 256 dims)")
	assert.NotContains(t, out, "Extract:")
}
