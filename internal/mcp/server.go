package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/app"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/retriever"
	"github.com/vijayarun00100/Autonomous-QA-Agent/pkg/version"
)

// Tool names.
const (
	ToolSearchKnowledge = "search_knowledge"
	ToolIngestDocuments = "ingest_documents"
	ToolKnowledgeStatus = "knowledge_status"
)

// Knowledge is the part of app.App the server uses.
type Knowledge interface {
	Query(ctx context.Context, text string, topK int) ([]retriever.Result, error)
	IngestPaths(ctx context.Context, paths []string, opts ...app.IngestOption) (app.IngestionStatus, error)
	Status(ctx context.Context) app.Status
	LatestHTML() (name, markup string, err error)
}

// Server is the MCP server for qabrain.
type Server struct {
	mcp       *mcp.Server
	knowledge Knowledge
	logger    *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolSearchKnowledge,
		Description: "Retrieve the document passages most relevant to a question about the application under test. Returns numbered context blocks with their source document. Use before writing test cases or scripts.",
	},
	{
		Name:        ToolIngestDocuments,
		Description: "Replace the knowledge base with the given files (.md, .txt, .json, .html, .pdf). The previous knowledge base stays in place if the build fails.",
	},
	{
		Name:        ToolKnowledgeStatus,
		Description: "Report whether the knowledge base is ready, its generation, document and chunk counts, and the embedding model.",
	},
}

// NewServer creates an MCP server over k.
func NewServer(k Knowledge) (*Server, error) {
	if k == nil {
		return nil, errors.New("knowledge base is required")
	}

	s := &Server{
		knowledge: k,
		logger:    slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "qabrain",
		Version: version.Version,
	}, nil)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with untyped arguments, as a client would.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchKnowledge:
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.search(ctx, in)
	case ToolIngestDocuments:
		var in IngestInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.ingest(ctx, in)
	case ToolKnowledgeStatus:
		return s.status(ctx), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_started", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
