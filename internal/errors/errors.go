package errors

import (
	stderrors "errors"
	"fmt"
)

// QAError is the structured error type for qabrain.
// It carries enough context for logging, CLI output and MCP tool responses.
type QAError struct {
	// Code is the unique error code (e.g., "ERR_404_EMPTY_CORPUS").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QAError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QAError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against the sentinel values below.
func (e *QAError) Is(target error) bool {
	if t, ok := target.(*QAError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *QAError) WithDetail(key, value string) *QAError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *QAError) WithSuggestion(suggestion string) *QAError {
	e.Suggestion = suggestion
	return e
}

// New creates a new QAError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QAError {
	return &QAError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QAError from an existing error.
func Wrap(code string, err error) *QAError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrUnsupportedFormat = &QAError{Code: ErrCodeUnsupportedFormat}
	ErrEmptyCorpus       = &QAError{Code: ErrCodeEmptyCorpus}
	ErrIndexUnavailable  = &QAError{Code: ErrCodeIndexUnavailable}
	ErrEmbeddingMismatch = &QAError{Code: ErrCodeDimensionMismatch}
)

// NewUnsupportedFormat reports a document type with no extractor.
func NewUnsupportedFormat(filename, ext string) *QAError {
	return New(ErrCodeUnsupportedFormat,
		fmt.Sprintf("unsupported document type for %s: %q", filename, ext), nil).
		WithDetail("file", filename).
		WithSuggestion("Supported types: .txt, .md, .markdown, .json, .html, .htm, .pdf")
}

// NewEmptyCorpus reports a build whose documents produced no usable chunks.
func NewEmptyCorpus(documents int) *QAError {
	return New(ErrCodeEmptyCorpus, "no textual content extracted from uploaded files", nil).
		WithDetail("documents", fmt.Sprintf("%d", documents)).
		WithSuggestion("The previous knowledge base is still in use")
}

// NewIndexUnavailable reports a missing or unloadable index.
func NewIndexUnavailable(message string, cause error) *QAError {
	return New(ErrCodeIndexUnavailable, message, cause).
		WithSuggestion("Ingest documents first: qabrain ingest <files...>")
}

// NewEmbeddingMismatch reports a query embedding incompatible with the index.
func NewEmbeddingMismatch(indexModel string, indexDims int, queryModel string, queryDims int) *QAError {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("query embedding (%s, %d dims) does not match index (%s, %d dims)",
			queryModel, queryDims, indexModel, indexDims), nil).
		WithDetail("index_model", indexModel).
		WithDetail("query_model", queryModel).
		WithSuggestion("Re-ingest documents with the current embedder or switch back to the index model")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *QAError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *QAError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *QAError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first QAError in err's chain.
func As(err error) (*QAError, bool) {
	var qe *QAError
	if stderrors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if qe, ok := As(err); ok {
		return qe.Retryable
	}
	return false
}

// GetCode extracts the error code, or "" if err carries none.
func GetCode(err error) string {
	if qe, ok := As(err); ok {
		return qe.Code
	}
	return ""
}
