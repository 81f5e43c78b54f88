package index

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
)

// ============================================================================
// TS01: Readiness
// ============================================================================

func TestManager_HandleBeforeAnyBuild(t *testing.T) {
	// Given: nothing ingested
	env := newTestEnv(t)

	// When: asking for a handle
	_, err := env.manager.Handle(context.Background())

	// Then: the index is unavailable and nothing is cached
	require.Error(t, err)
	assert.ErrorIs(t, err, qaerrors.ErrIndexUnavailable)
	assert.True(t, qaerrors.IsRetryable(err))
	assert.Nil(t, env.manager.Cached())
}

func TestManager_FailureIsNotCached(t *testing.T) {
	// Given: a failed load
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.manager.Handle(ctx)
	require.Error(t, err)

	// When: documents are ingested afterwards
	_, err = env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)

	// Then: the next call loads successfully
	h, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.ChunkCount())
}

func TestManager_CorruptGenerationIsUnavailable(t *testing.T) {
	// Given: a committed generation whose chunk database disappeared
	env := newTestEnv(t)
	ctx := context.Background()
	report, err := env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)
	require.NoError(t, os.Remove(env.gens.ChunksPath(report.Generation)))
	env.manager.Invalidate()

	// When/Then: loading fails as unavailable
	_, err = env.manager.Handle(ctx)
	assert.ErrorIs(t, err, qaerrors.ErrIndexUnavailable)

	// And: a rebuild recovers
	_, err = env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)
	_, err = env.manager.Handle(ctx)
	assert.NoError(t, err)
}

// ============================================================================
// TS02: Invalidation
// ============================================================================

func TestManager_InvalidateWithNothingCached(t *testing.T) {
	env := newTestEnv(t)

	assert.NotPanics(t, func() {
		env.manager.Invalidate()
		env.manager.Invalidate()
	})
	assert.Nil(t, env.manager.Cached())
}

func TestManager_HandleIsCachedUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)

	first, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	second, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	loads := env.manager.LoadCount()

	env.manager.Invalidate()
	third, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, loads+1, env.manager.LoadCount())
}

// ============================================================================
// TS03: Generation consistency
// ============================================================================

func TestManager_OldHandleStaysConsistentAcrossRebuild(t *testing.T) {
	// Given: a handle obtained before a rebuild
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)
	old, err := env.manager.Handle(ctx)
	require.NoError(t, err)

	// When: a rebuild commits and prunes the old generation
	_, err = env.builder.Build(ctx, []chunk.Document{
		{Name: "returns.md", Text: "Returns are accepted within 30 days."},
	})
	require.NoError(t, err)

	// Then: the old handle still answers entirely from its own generation
	hits := env.query(t, old, "discount code", 3)
	require.NotEmpty(t, hits)
	for _, hit := range hits {
		assert.NotEqual(t, "returns.md", hit.Chunk.SourceDocument)
	}
	assert.Equal(t, 1, old.Generation())

	// And: a new handle sees only the new generation
	fresh, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Generation())
	assert.Equal(t, 1, fresh.ChunkCount())
}

func TestManager_ConcurrentHandles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	handles := make([]*Handle, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := env.manager.Handle(ctx)
			if err == nil {
				handles[i] = h
			}
		}()
	}
	wg.Wait()

	for _, h := range handles {
		require.NotNil(t, h)
		assert.Equal(t, 1, h.Generation())
	}
	assert.LessOrEqual(t, env.manager.LoadCount(), int64(callers))
	assert.NotNil(t, env.manager.Cached())
}

func TestManager_CancelledCaller(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.manager.Handle(ctx)
	assert.Error(t, err)
}

func TestManager_SeesCommitFromAnotherWriter(t *testing.T) {
	// Given: a manager holding generation 1
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.builder.Build(ctx, threeDocs())
	require.NoError(t, err)
	first, err := env.manager.Handle(ctx)
	require.NoError(t, err)

	// When: a second builder with its own manager commits into the same directory
	other := NewManager(env.gens)
	splitter, err := chunk.NewSplitter(chunk.DefaultOptions())
	require.NoError(t, err)
	builder, err := NewBuilder(BuilderDependencies{
		Generations: env.gens,
		Splitter:    splitter,
		Embedder:    env.embedder,
		Invalidator: other,
		Backend:     "static",
	})
	require.NoError(t, err)
	_, err = builder.Build(ctx, []chunk.Document{
		{Name: "returns.md", Text: "Returns are accepted within 30 days."},
	})
	require.NoError(t, err)

	// Then: the first manager reloads the new generation without an Invalidate
	h, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, h)
	assert.Equal(t, 2, h.Generation())
	assert.Equal(t, []string{"returns.md"}, h.Sources())

	// And: it stays cached while the pointer is unchanged
	again, err := env.manager.Handle(ctx)
	require.NoError(t, err)
	assert.Same(t, h, again)
}
