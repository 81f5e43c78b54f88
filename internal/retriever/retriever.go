// Package retriever answers similarity queries against the committed index.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/embed"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/index"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
)

// ErrNoContext is returned by callers that require grounding when a query
// produced no results.
var ErrNoContext = errors.New("knowledge base returned no context for the query")

// Result is one retrieved chunk.
type Result struct {
	Content        string  `json:"content"`
	SourceDocument string  `json:"source_document"`
	Score          float32 `json:"score"`
	ChunkID        string  `json:"chunk_id"`
	Order          int     `json:"order"`
	StartOffset    int     `json:"start_offset"`
}

// NewResult validates and builds a Result.
func NewResult(content, source, chunkID string, score float32) (Result, error) {
	if chunkID == "" {
		return Result{}, fmt.Errorf("result chunk id is required")
	}
	if source == "" {
		return Result{}, fmt.Errorf("result %s has no source document", chunkID)
	}
	return Result{Content: content, SourceDocument: source, Score: score, ChunkID: chunkID}, nil
}

// HandleSource provides the current index handle.
type HandleSource interface {
	Handle(ctx context.Context) (*index.Handle, error)
}

// Retriever embeds queries with the build-time embedder and searches the
// current generation. It never writes.
type Retriever struct {
	handles  HandleSource
	embedder embed.Embedder
	ready    atomic.Bool
}

// New creates a retriever. embedder must be the one the index is built with.
func New(handles HandleSource, embedder embed.Embedder) *Retriever {
	return &Retriever{handles: handles, embedder: embedder}
}

// Query returns at most topK results ordered by descending score.
func (r *Retriever) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, qaerrors.ValidationError(fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, qaerrors.New(qaerrors.ErrCodeQueryEmpty, "query text is empty", nil)
	}

	start := time.Now()
	h, err := r.handles.Handle(ctx)
	if err != nil {
		r.ready.Store(false)
		return nil, err
	}
	r.ready.Store(true)

	if h.Model() != "" && h.Model() != r.embedder.ModelName() {
		return nil, qaerrors.NewEmbeddingMismatch(h.Model(), h.Dimensions(), r.embedder.ModelName(), r.embedder.Dimensions())
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}
	if len(vec) != h.Dimensions() {
		return nil, qaerrors.NewEmbeddingMismatch(h.Model(), h.Dimensions(), r.embedder.ModelName(), len(vec))
	}

	hits, err := h.Search(ctx, vec, topK)
	if err != nil {
		var dimErr store.ErrDimensionMismatch
		if errors.As(err, &dimErr) {
			return nil, qaerrors.NewEmbeddingMismatch(h.Model(), dimErr.Expected, r.embedder.ModelName(), dimErr.Got)
		}
		return nil, qaerrors.New(qaerrors.ErrCodeSearchFailed, "similarity search failed", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		res, err := NewResult(hit.Chunk.Content, hit.Chunk.SourceDocument, hit.Chunk.ID, hit.Score)
		if err != nil {
			slog.Warn("invalid_search_hit", slog.String("error", err.Error()))
			continue
		}
		res.Order = hit.Chunk.Order
		res.StartOffset = hit.Chunk.StartOffset
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	slog.Debug("query_complete",
		slog.Int("top_k", topK),
		slog.Int("results", len(results)),
		slog.Int("generation", h.Generation()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return results, nil
}

// IsReady reports whether a handle can be obtained. Once true it stays
// true without touching the index; while false every call retries.
func (r *Retriever) IsReady(ctx context.Context) bool {
	if r.ready.Load() {
		return true
	}
	return r.Refresh(ctx)
}

// Refresh re-evaluates readiness, for use after an ingest.
func (r *Retriever) Refresh(ctx context.Context) bool {
	_, err := r.handles.Handle(ctx)
	r.ready.Store(err == nil)
	if err != nil {
		slog.Debug("retriever_not_ready", slog.String("error", err.Error()))
	}
	return err == nil
}

// FormatContext renders results as numbered context blocks for a prompt.
// Empty results yield ErrNoContext.
func FormatContext(results []Result) (string, error) {
	if len(results) == 0 {
		return "", ErrNoContext
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Context %d (source: %s):\n%s", i+1, r.SourceDocument, r.Content)
	}
	return b.String(), nil
}
