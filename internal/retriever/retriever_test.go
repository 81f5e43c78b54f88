package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/embed"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/index"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
)

type pipeline struct {
	builder   *index.Builder
	manager   *index.Manager
	retriever *Retriever
}

func newPipeline(t *testing.T, embedder embed.Embedder) *pipeline {
	t.Helper()

	gens := store.NewGenerations(t.TempDir())
	manager := index.NewManager(gens)
	splitter, err := chunk.NewSplitter(chunk.DefaultOptions())
	require.NoError(t, err)

	builder, err := index.NewBuilder(index.BuilderDependencies{
		Generations: gens,
		Splitter:    splitter,
		Embedder:    embedder,
		Invalidator: manager,
	})
	require.NoError(t, err)

	return &pipeline{builder: builder, manager: manager, retriever: New(manager, embedder)}
}

// ============================================================================
// TS01: End to end
// ============================================================================

func TestRetriever_FeatureDocumentEndToEnd(t *testing.T) {
	// Given: one ingested document describing Feature X
	p := newPipeline(t, embed.NewStaticEmbedder())
	ctx := context.Background()
	_, err := p.builder.Build(ctx, []chunk.Document{
		{Name: "features.md", Text: "Feature X allows Y. Feature X rejects Z."},
	})
	require.NoError(t, err)

	// When: asking about Feature X
	results, err := p.retriever.Query(ctx, "What does Feature X reject?", 3)
	require.NoError(t, err)

	// Then: the single chunk comes back with its source
	require.Len(t, results, 1)
	assert.Equal(t, "features.md", results[0].SourceDocument)
	assert.Contains(t, results[0].Content, "Feature X rejects Z.")
	assert.NotEmpty(t, results[0].ChunkID)
	assert.Greater(t, results[0].Score, float32(0))
}

func TestRetriever_TopKOrderedByScore(t *testing.T) {
	// Given: five documents
	p := newPipeline(t, embed.NewStaticEmbedder())
	ctx := context.Background()
	_, err := p.builder.Build(ctx, []chunk.Document{
		{Name: "discount.md", Text: "The discount code SAVE15 applies a 15% discount to the cart."},
		{Name: "shipping.md", Text: "Express shipping costs 10 dollars and arrives next day."},
		{Name: "payment.md", Text: "Payment accepts credit card and PayPal."},
		{Name: "coupon.md", Text: "Only one discount code can be applied per order."},
		{Name: "returns.md", Text: "Returns are accepted within 30 days."},
	})
	require.NoError(t, err)

	// When: querying with k=2
	results, err := p.retriever.Query(ctx, "discount code", 2)
	require.NoError(t, err)

	// Then: at most two, best first, the discount documents on top
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	sources := []string{results[0].SourceDocument, results[1].SourceDocument}
	assert.ElementsMatch(t, []string{"discount.md", "coupon.md"}, sources)
}

func TestRetriever_TopKLargerThanIndex(t *testing.T) {
	p := newPipeline(t, embed.NewStaticEmbedder())
	ctx := context.Background()
	_, err := p.builder.Build(ctx, []chunk.Document{{Name: "a.txt", Text: "alpha"}})
	require.NoError(t, err)

	results, err := p.retriever.Query(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

// ============================================================================
// TS02: Readiness
// ============================================================================

func TestRetriever_QueryBeforeIngestIsNotReady(t *testing.T) {
	// Given: no ingest yet
	p := newPipeline(t, embed.NewStaticEmbedder())
	ctx := context.Background()

	// Then: not ready, and queries report the index unavailable
	assert.False(t, p.retriever.IsReady(ctx))
	_, err := p.retriever.Query(ctx, "anything", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, qaerrors.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "not ready")
}

func TestRetriever_BecomesReadyAfterIngest(t *testing.T) {
	p := newPipeline(t, embed.NewStaticEmbedder())
	ctx := context.Background()
	require.False(t, p.retriever.IsReady(ctx))

	_, err := p.builder.Build(ctx, []chunk.Document{{Name: "a.txt", Text: "alpha"}})
	require.NoError(t, err)

	assert.True(t, p.retriever.IsReady(ctx))
	assert.True(t, p.retriever.Refresh(ctx))
}

// ============================================================================
// TS03: Validation and mismatch
// ============================================================================

func TestRetriever_RejectsBadArguments(t *testing.T) {
	p := newPipeline(t, embed.NewStaticEmbedder())
	ctx := context.Background()

	_, err := p.retriever.Query(ctx, "alpha", 0)
	assert.Equal(t, qaerrors.ErrCodeInvalidInput, qaerrors.GetCode(err))

	_, err = p.retriever.Query(ctx, "   ", 3)
	assert.Equal(t, qaerrors.ErrCodeQueryEmpty, qaerrors.GetCode(err))
}

func TestRetriever_EmbeddingModelMismatch(t *testing.T) {
	// Given: an index built with 64-dim static embeddings
	p := newPipeline(t, embed.NewStaticEmbedderWithDims(64))
	ctx := context.Background()
	_, err := p.builder.Build(ctx, []chunk.Document{{Name: "a.txt", Text: "alpha"}})
	require.NoError(t, err)

	// When: querying with a different embedder
	r := New(p.manager, embed.NewStaticEmbedderWithDims(32))
	_, err = r.Query(ctx, "alpha", 3)

	// Then: the mismatch is reported instead of garbage scores
	require.Error(t, err)
	assert.ErrorIs(t, err, qaerrors.ErrEmbeddingMismatch)
}

// ============================================================================
// TS04: Context formatting
// ============================================================================

func TestFormatContext(t *testing.T) {
	a, err := NewResult("Feature X allows Y.", "features.md", "features.md-0-abc", 0.9)
	require.NoError(t, err)
	b, err := NewResult("Returns within 30 days.", "returns.md", "returns.md-0-def", 0.5)
	require.NoError(t, err)

	got, err := FormatContext([]Result{a, b})
	require.NoError(t, err)
	assert.Equal(t,
		"Context 1 (source: features.md):\nFeature X allows Y.\n\nContext 2 (source: returns.md):\nReturns within 30 days.",
		got)
}

func TestFormatContext_EmptyIsNoContext(t *testing.T) {
	_, err := FormatContext(nil)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestNewResult_Validates(t *testing.T) {
	_, err := NewResult("x", "", "id", 1)
	assert.Error(t, err)
	_, err = NewResult("x", "src", "", 1)
	assert.Error(t, err)
}
