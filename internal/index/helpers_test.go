package index

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/embed"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
)

// countingInvalidator records Invalidate calls before forwarding them.
type countingInvalidator struct {
	inner Invalidator
	calls atomic.Int64
}

func (c *countingInvalidator) Invalidate() {
	c.calls.Add(1)
	c.inner.Invalidate()
}

type testEnv struct {
	gens        *store.Generations
	manager     *Manager
	builder     *Builder
	embedder    embed.Embedder
	invalidator *countingInvalidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gens := store.NewGenerations(t.TempDir())
	manager := NewManager(gens)
	inv := &countingInvalidator{inner: manager}
	embedder := embed.NewStaticEmbedderWithDims(64)

	splitter, err := chunk.NewSplitter(chunk.DefaultOptions())
	require.NoError(t, err)

	builder, err := NewBuilder(BuilderDependencies{
		Generations: gens,
		Splitter:    splitter,
		Embedder:    embedder,
		Invalidator: inv,
		Backend:     "static",
	})
	require.NoError(t, err)

	return &testEnv{
		gens:        gens,
		manager:     manager,
		builder:     builder,
		embedder:    embedder,
		invalidator: inv,
	}
}

// threeDocs yields exactly three chunks with default options.
func threeDocs() []chunk.Document {
	return []chunk.Document{
		{Name: "checkout.md", Text: "The discount code SAVE15 applies a 15% discount."},
		{Name: "shipping.txt", Text: "Express shipping costs 10 dollars."},
		{Name: "payment.md", Text: "Payment accepts credit card and PayPal."},
	}
}

func (e *testEnv) query(t *testing.T, h *Handle, text string, k int) []Hit {
	t.Helper()
	vec, err := e.embedder.Embed(context.Background(), text)
	require.NoError(t, err)
	hits, err := h.Search(context.Background(), vec, k)
	require.NoError(t, err)
	return hits
}
