package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LatestHTMLURI is the resource holding the raw markup of the most recently
// ingested HTML page, for clients that generate element selectors.
const LatestHTMLURI = "qabrain://html/latest"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "latest-html",
		URI:         LatestHTMLURI,
		Description: "Raw markup of the most recently ingested HTML page",
		MIMEType:    "text/html",
	}, s.readLatestHTML)
}

func (s *Server) readLatestHTML(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	_, markup, err := s.knowledge.LatestHTML()
	if err != nil {
		return nil, &MCPError{Code: ErrCodeMethodNotFound, Message: err.Error()}
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      LatestHTMLURI,
			MIMEType: "text/html",
			Text:     markup,
		}},
	}, nil
}
