package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/app"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/retriever"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/state"
)

// MockKnowledge implements Knowledge for testing.
type MockKnowledge struct {
	QueryFn  func(ctx context.Context, text string, topK int) ([]retriever.Result, error)
	IngestFn func(ctx context.Context, paths []string) (app.IngestionStatus, error)
	StatusFn func(ctx context.Context) app.Status
	HTML     string
}

func (m *MockKnowledge) Query(ctx context.Context, text string, topK int) ([]retriever.Result, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, text, topK)
	}
	return nil, nil
}

func (m *MockKnowledge) IngestPaths(ctx context.Context, paths []string, _ ...app.IngestOption) (app.IngestionStatus, error) {
	if m.IngestFn != nil {
		return m.IngestFn(ctx, paths)
	}
	return app.IngestionStatus{Success: true}, nil
}

func (m *MockKnowledge) Status(ctx context.Context) app.Status {
	if m.StatusFn != nil {
		return m.StatusFn(ctx)
	}
	return app.Status{}
}

func (m *MockKnowledge) LatestHTML() (string, string, error) {
	if m.HTML == "" {
		return "", "", errors.New("no HTML file has been ingested")
	}
	return "checkout.html", m.HTML, nil
}

func newTestServer(t *testing.T, k *MockKnowledge) *Server {
	t.Helper()
	s, err := NewServer(k)
	require.NoError(t, err)
	return s
}

// ============================================================================
// TS01: Construction
// ============================================================================

func TestNewServer_RequiresKnowledge(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{})

	names := []string{}
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.Equal(t, []string{ToolSearchKnowledge, ToolIngestDocuments, ToolKnowledgeStatus}, names)
	assert.NotNil(t, s.MCPServer())
}

// ============================================================================
// TS02: search_knowledge
// ============================================================================

func TestSearchKnowledge_ReturnsContextBlocks(t *testing.T) {
	// Given: a knowledge base with two matching chunks
	var gotTopK int
	s := newTestServer(t, &MockKnowledge{
		QueryFn: func(_ context.Context, _ string, topK int) ([]retriever.Result, error) {
			gotTopK = topK
			return []retriever.Result{
				{Content: "SAVE15 gives 15% off.", SourceDocument: "checkout.md", ChunkID: "a", Score: 0.9},
				{Content: "Express costs 10.", SourceDocument: "shipping.txt", ChunkID: "b", Score: 0.5},
			}, nil
		},
	})

	// When: searching without top_k
	out, err := s.CallTool(context.Background(), ToolSearchKnowledge, map[string]any{"query": "discount"})

	// Then: the default top_k is used and blocks are numbered
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, gotTopK)
	result := out.(SearchOutput)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, "Context 1 (source: checkout.md):\nSAVE15 gives 15% off.\n\nContext 2 (source: shipping.txt):\nExpress costs 10.", result.Context)
}

func TestSearchKnowledge_Validation(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", map[string]any{}},
		{"blank query", map[string]any{"query": "  "}},
		{"negative top_k", map[string]any{"query": "x", "top_k": -1}},
		{"wrong type", map[string]any{"query": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(context.Background(), ToolSearchKnowledge, tt.args)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestSearchKnowledge_NoResultsIsNoContext(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{})

	_, err := s.CallTool(context.Background(), ToolSearchKnowledge, map[string]any{"query": "anything"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeNoContext, mcpErr.Code)
}

func TestSearchKnowledge_NotReady(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{
		QueryFn: func(context.Context, string, int) ([]retriever.Result, error) {
			return nil, qaerrors.NewIndexUnavailable("knowledge base is not ready", nil)
		},
	})

	_, err := s.CallTool(context.Background(), ToolSearchKnowledge, map[string]any{"query": "x"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeNotReady, mcpErr.Code)
}

// ============================================================================
// TS03: ingest_documents and knowledge_status
// ============================================================================

func TestIngestDocuments_PassesPaths(t *testing.T) {
	var got []string
	s := newTestServer(t, &MockKnowledge{
		IngestFn: func(_ context.Context, paths []string) (app.IngestionStatus, error) {
			got = paths
			return app.IngestionStatus{Success: true, DocumentsProcessed: 2, ChunksIndexed: 5, Generation: 3}, nil
		},
	})

	out, err := s.CallTool(context.Background(), ToolIngestDocuments, map[string]any{
		"paths": []any{"/docs/a.md", "/docs/b.html"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.md", "/docs/b.html"}, got)
	result := out.(IngestOutput)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Generation)
}

func TestIngestDocuments_Errors(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{
		IngestFn: func(context.Context, []string) (app.IngestionStatus, error) {
			return app.IngestionStatus{}, qaerrors.NewUnsupportedFormat("notes.docx", ".docx")
		},
	})

	_, err := s.CallTool(context.Background(), ToolIngestDocuments, map[string]any{})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)

	_, err = s.CallTool(context.Background(), ToolIngestDocuments, map[string]any{"paths": []any{"notes.docx"}})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "notes.docx")
}

func TestKnowledgeStatus(t *testing.T) {
	built := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestServer(t, &MockKnowledge{
		StatusFn: func(context.Context) app.Status {
			return app.Status{
				Ready:            true,
				Generation:       2,
				Chunks:           7,
				Model:            "static",
				BuiltAt:          built,
				EmbedderProvider: "static",
				Files:            []state.File{{Name: "checkout.md"}},
			}
		},
	})

	out, err := s.CallTool(context.Background(), ToolKnowledgeStatus, nil)

	require.NoError(t, err)
	status := out.(StatusOutput)
	assert.True(t, status.Ready)
	assert.Equal(t, 7, status.Chunks)
	assert.Equal(t, "2026-01-02T03:04:05Z", status.BuiltAt)
	assert.Equal(t, []string{"checkout.md"}, status.Files)
}

func TestCallTool_Unknown(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{})

	_, err := s.CallTool(context.Background(), "search", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

// ============================================================================
// TS04: Resources and error mapping
// ============================================================================

func TestReadLatestHTML(t *testing.T) {
	s := newTestServer(t, &MockKnowledge{HTML: `<button id="pay">Pay</button>`})

	res, err := s.readLatestHTML(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, LatestHTMLURI, res.Contents[0].URI)
	assert.Contains(t, res.Contents[0].Text, `id="pay"`)

	empty := newTestServer(t, &MockKnowledge{})
	_, err = empty.readLatestHTML(context.Background(), nil)
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"mismatch", qaerrors.NewEmbeddingMismatch("a", 3, "b", 4), ErrCodeEmbeddingFailed},
		{"network", qaerrors.New(qaerrors.ErrCodeNetworkTimeout, "slow", nil), ErrCodeTimeout},
		{"empty corpus", qaerrors.NewEmptyCorpus(1), ErrCodeInvalidParams},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"no context", retriever.ErrNoContext, ErrCodeNoContext},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapError(tt.err).Code)
		})
	}
	assert.Nil(t, MapError(nil))
}
