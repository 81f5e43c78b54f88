// Package mcp exposes the knowledge base to AI clients over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/retriever"
)

// Custom MCP error codes.
const (
	// ErrCodeNotReady indicates no knowledge base has been built.
	ErrCodeNotReady = -32001

	// ErrCodeEmbeddingFailed indicates the embedder failed or does not match the index.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeNoContext indicates a query matched nothing.
	ErrCodeNoContext = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if qe, ok := qaerrors.As(err); ok {
		return mapQAError(qe)
	}

	switch {
	case errors.Is(err, retriever.ErrNoContext):
		return &MCPError{Code: ErrCodeNoContext, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapQAError(qe *qaerrors.QAError) *MCPError {
	message := qe.Message
	if qe.Suggestion != "" {
		message = qe.Message + ". " + qe.Suggestion
	}

	switch qe.Code {
	case qaerrors.ErrCodeIndexUnavailable, qaerrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeNotReady, Message: message}
	case qaerrors.ErrCodeEmbeddingFailed, qaerrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	}

	switch qe.Category {
	case qaerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case qaerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
