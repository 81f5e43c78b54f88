package mcp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/retriever"
)

// DefaultTopK is used when a search omits top_k.
const DefaultTopK = 6

// SearchInput is the input schema for search_knowledge.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or feature to look up"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return, default 6"`
}

// SearchOutput is the output schema for search_knowledge.
type SearchOutput struct {
	Context string             `json:"context" jsonschema:"numbered context blocks ready to paste into a prompt"`
	Results []retriever.Result `json:"results" jsonschema:"the retrieved chunks, best first"`
}

// IngestInput is the input schema for ingest_documents.
type IngestInput struct {
	Paths []string `json:"paths" jsonschema:"absolute paths of the files to ingest"`
}

// IngestOutput is the output schema for ingest_documents.
type IngestOutput struct {
	Success            bool    `json:"success"`
	Message            string  `json:"message"`
	DocumentsProcessed int     `json:"documents_processed"`
	ChunksIndexed      int     `json:"chunks_indexed"`
	Generation         int     `json:"generation"`
	DurationSeconds    float64 `json:"duration_seconds"`
}

// StatusInput is the (empty) input schema for knowledge_status.
type StatusInput struct{}

// StatusOutput is the output schema for knowledge_status.
type StatusOutput struct {
	Ready             bool     `json:"ready"`
	Message           string   `json:"message,omitempty"`
	Generation        int      `json:"generation"`
	Documents         int      `json:"documents"`
	Chunks            int      `json:"chunks"`
	Model             string   `json:"model,omitempty"`
	Dimensions        int      `json:"dimensions,omitempty"`
	BuiltAt           string   `json:"built_at,omitempty"`
	EmbedderProvider  string   `json:"embedder_provider"`
	EmbedderAvailable bool     `json:"embedder_available"`
	Files             []string `json:"files"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearchKnowledge, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIngestDocuments, Description: tools[1].Description}, s.mcpIngestHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolKnowledgeStatus, Description: tools[2].Description}, s.mcpStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.search(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpIngestHandler(ctx context.Context, _ *mcp.CallToolRequest, in IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	out, err := s.ingest(ctx, in)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	return nil, s.status(ctx), nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	if in.TopK < 0 {
		return SearchOutput{}, NewInvalidParamsError("top_k must be positive")
	}
	topK := in.TopK
	if topK == 0 {
		topK = DefaultTopK
	}

	start := time.Now()
	results, err := s.knowledge.Query(ctx, in.Query, topK)
	if err != nil {
		return SearchOutput{}, MapError(err)
	}
	text, err := retriever.FormatContext(results)
	if err != nil {
		return SearchOutput{}, MapError(err)
	}

	s.logger.Debug("mcp_search",
		slog.Int("results", len(results)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return SearchOutput{Context: text, Results: results}, nil
}

func (s *Server) ingest(ctx context.Context, in IngestInput) (IngestOutput, error) {
	if len(in.Paths) == 0 {
		return IngestOutput{}, NewInvalidParamsError("paths parameter is required")
	}

	st, err := s.knowledge.IngestPaths(ctx, in.Paths)
	if err != nil {
		return IngestOutput{}, MapError(err)
	}
	return IngestOutput{
		Success:            st.Success,
		Message:            st.Message,
		DocumentsProcessed: st.DocumentsProcessed,
		ChunksIndexed:      st.ChunksIndexed,
		Generation:         st.Generation,
		DurationSeconds:    st.DurationSeconds,
	}, nil
}

func (s *Server) status(ctx context.Context) StatusOutput {
	st := s.knowledge.Status(ctx)
	out := StatusOutput{
		Ready:             st.Ready,
		Message:           st.Message,
		Generation:        st.Generation,
		Documents:         st.Documents,
		Chunks:            st.Chunks,
		Model:             st.Model,
		Dimensions:        st.Dimensions,
		EmbedderProvider:  st.EmbedderProvider,
		EmbedderAvailable: st.EmbedderAvailable,
		Files:             make([]string, 0, len(st.Files)),
	}
	if !st.BuiltAt.IsZero() {
		out.BuiltAt = st.BuiltAt.Format(time.RFC3339)
	}
	for _, f := range st.Files {
		out.Files = append(out.Files, f.Name)
	}
	return out
}
