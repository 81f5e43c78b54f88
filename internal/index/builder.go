// Package index builds, versions and serves the persisted knowledge index.
//
// A Builder writes every build into a fresh generation directory and swaps
// the CURRENT pointer only after the generation is complete. The Manager
// lazily loads the committed generation into an immutable Handle and drops
// it when the Builder reports a new commit.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/embed"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/ui"
)

// Invalidator is told once per successful build that the committed
// generation changed.
type Invalidator interface {
	Invalidate()
}

// BuilderDependencies contains the injected dependencies for Builder.
type BuilderDependencies struct {
	// Generations is the index directory layout (required).
	Generations *store.Generations

	// Splitter chunks document text (required).
	Splitter *chunk.Splitter

	// Embedder embeds chunk content (required). Queries must use the same model.
	Embedder embed.Embedder

	// Invalidator is notified after each commit (required, usually the Manager).
	Invalidator Invalidator

	// Backend names the embedding provider for reports.
	Backend string
}

// BuildReport summarizes a successful build.
type BuildReport struct {
	BuildID       string
	Generation    int
	Documents     int
	ChunksIndexed int
	Model         string
	Dimensions    int
	Duration      time.Duration
	Stages        ui.StageTimings
}

// BuildOption customizes a single Build call.
type BuildOption func(*buildOptions)

type buildOptions struct {
	renderer ui.Renderer
}

// WithRenderer reports progress of this build to r.
func WithRenderer(r ui.Renderer) BuildOption {
	return func(o *buildOptions) {
		if r != nil {
			o.renderer = r
		}
	}
}

// Builder performs full rebuilds of the index. Builds are serialized within
// the process by a mutex and across processes by a lock file.
type Builder struct {
	mu          sync.Mutex
	gens        *store.Generations
	splitter    *chunk.Splitter
	embedder    embed.Embedder
	invalidator Invalidator
	lock        *FileLock
	backend     string
}

// NewBuilder creates a Builder with injected dependencies.
func NewBuilder(deps BuilderDependencies) (*Builder, error) {
	if deps.Generations == nil {
		return nil, fmt.Errorf("generations are required")
	}
	if deps.Splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Invalidator == nil {
		return nil, fmt.Errorf("invalidator is required")
	}

	return &Builder{
		gens:        deps.Generations,
		splitter:    deps.Splitter,
		embedder:    deps.Embedder,
		invalidator: deps.Invalidator,
		lock:        NewFileLock(deps.Generations.Root()),
		backend:     deps.Backend,
	}, nil
}

// Build replaces the whole index with the given documents.
//
// Documents yielding no chunks at all fail with EmptyCorpus and leave the
// committed generation untouched, as does any other failure.
func (b *Builder) Build(ctx context.Context, docs []chunk.Document, opts ...BuildOption) (*BuildReport, error) {
	o := buildOptions{renderer: ui.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lock.Lock(ctx); err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeIndexLocked, "another build is in progress", err)
	}
	defer func() {
		if err := b.lock.Unlock(); err != nil {
			slog.Warn("build_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	start := time.Now()
	report := &BuildReport{
		BuildID:    uuid.NewString(),
		Documents:  len(docs),
		Model:      b.embedder.ModelName(),
		Dimensions: b.embedder.Dimensions(),
	}
	slog.Info("build_started",
		slog.String("build_id", report.BuildID),
		slog.Int("documents", len(docs)),
		slog.String("model", report.Model))

	// Stage 1: chunk
	stageStart := time.Now()
	chunks, err := b.chunkDocuments(ctx, docs, o.renderer)
	if err != nil {
		return nil, err
	}
	report.Stages.Chunk = time.Since(stageStart)

	if len(chunks) == 0 {
		slog.Warn("build_empty_corpus",
			slog.String("build_id", report.BuildID),
			slog.Int("documents", len(docs)))
		return nil, qaerrors.NewEmptyCorpus(len(docs))
	}

	// Stage 2: embed, one batched call
	stageStart = time.Now()
	vectors, err := b.embedChunks(ctx, chunks, o.renderer)
	if err != nil {
		return nil, err
	}
	report.Stages.Embed = time.Since(stageStart)

	// Stage 3: write a fresh generation and commit
	stageStart = time.Now()
	gen, count, err := b.writeGeneration(ctx, report, chunks, vectors, o.renderer)
	if err != nil {
		return nil, err
	}
	report.Stages.Write = time.Since(stageStart)
	report.Generation = gen
	report.ChunksIndexed = count

	b.invalidator.Invalidate()

	pruned := b.gens.Prune(gen)
	report.Duration = time.Since(start)

	o.renderer.Complete(ui.CompletionStats{
		Documents:  report.Documents,
		Chunks:     report.ChunksIndexed,
		Generation: report.Generation,
		Duration:   report.Duration,
		Stages:     report.Stages,
		Embedder: ui.EmbedderInfo{
			Backend:    b.backend,
			Model:      report.Model,
			Dimensions: report.Dimensions,
		},
	})

	slog.Info("build_complete",
		slog.String("build_id", report.BuildID),
		slog.Int("generation", gen),
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.ChunksIndexed),
		slog.Int("pruned_generations", len(pruned)),
		slog.Int64("duration_chunk_ms", report.Stages.Chunk.Milliseconds()),
		slog.Int64("duration_embed_ms", report.Stages.Embed.Milliseconds()),
		slog.Int64("duration_write_ms", report.Stages.Write.Milliseconds()),
		slog.Int64("duration_total_ms", report.Duration.Milliseconds()))

	return report, nil
}

func (b *Builder) chunkDocuments(ctx context.Context, docs []chunk.Document, r ui.Renderer) ([]chunk.Chunk, error) {
	seen := make(map[string]bool, len(docs))
	var all []chunk.Chunk

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[doc.Name] {
			return nil, qaerrors.ValidationError("duplicate document name in build: "+doc.Name, nil).
				WithDetail("document", doc.Name)
		}
		seen[doc.Name] = true

		r.UpdateProgress(ui.ProgressEvent{
			Stage:    ui.StageChunking,
			Current:  i + 1,
			Total:    len(docs),
			Document: doc.Name,
		})

		chunks, err := b.splitter.Split(doc.Text, doc.Name, doc.Hash())
		if err != nil {
			return nil, qaerrors.ValidationError("cannot chunk document", err).WithDetail("document", doc.Name)
		}
		if len(chunks) == 0 {
			r.AddError(ui.ErrorEvent{
				Document: doc.Name,
				Err:      fmt.Errorf("no text content"),
				IsWarn:   true,
			})
		}
		slog.Debug("document_chunked",
			slog.String("document", doc.Name),
			slog.Int("chars", len([]rune(doc.Text))),
			slog.Int("chunks", len(chunks)))
		all = append(all, chunks...)
	}
	return all, nil
}

func (b *Builder) embedChunks(ctx context.Context, chunks []chunk.Chunk, r ui.Renderer) ([][]float32, error) {
	r.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageEmbedding,
		Current: 0,
		Total:   len(chunks),
		Message: fmt.Sprintf("Embedding %d chunks with %s", len(chunks), b.embedder.ModelName()),
	})

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeEmbeddingFailed, "failed to embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, qaerrors.InternalError(
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)), nil)
	}

	r.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageEmbedding,
		Current: len(chunks),
		Total:   len(chunks),
	})
	return vectors, nil
}

// writeGeneration persists chunks into a new generation and commits it.
// A failed write removes the partial generation.
func (b *Builder) writeGeneration(ctx context.Context, report *BuildReport, chunks []chunk.Chunk, vectors [][]float32, r ui.Renderer) (gen int, count int, err error) {
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageWriting, Message: "Writing index generation"})

	gen, err = b.gens.Next()
	if err != nil {
		return 0, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to allocate index generation", err)
	}
	defer func() {
		if err != nil {
			if rmErr := b.gens.Remove(gen); rmErr != nil {
				slog.Warn("generation_cleanup_failed",
					slog.Int("generation", gen),
					slog.String("error", rmErr.Error()))
			}
		}
	}()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(b.embedder.Dimensions()))
	if err != nil {
		return gen, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to create vector index", err)
	}
	defer func() { _ = vs.Close() }()

	if err = vs.Add(ctx, ids, vectors); err != nil {
		return gen, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to add vectors", err)
	}
	count = vs.Count()
	if count != len(chunks) {
		slog.Warn("chunk_id_collisions",
			slog.String("build_id", report.BuildID),
			slog.Int("chunks", len(chunks)),
			slog.Int("unique_ids", count))
	}
	if err = vs.Save(b.gens.VectorPath(gen)); err != nil {
		return gen, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to save vector index", err)
	}

	cs, err := store.OpenChunkStore(b.gens.ChunksPath(gen))
	if err != nil {
		return gen, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to create chunk store", err)
	}
	err = b.writeChunks(ctx, cs, report, gen, chunks, count)
	if closeErr := cs.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return gen, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to write chunk records", err)
	}

	if err = b.gens.Commit(gen); err != nil {
		return gen, 0, qaerrors.New(qaerrors.ErrCodeIndexFailed, "failed to commit index generation", err)
	}
	return gen, count, nil
}

// writeChunks stores the chunk records and metadata. The stored row count must
// match the vector count, since a Handle refuses to open a mismatched pair.
func (b *Builder) writeChunks(ctx context.Context, cs *store.ChunkStore, report *BuildReport, gen int, chunks []chunk.Chunk, vectors int) error {
	if err := cs.InsertChunks(ctx, chunks); err != nil {
		return err
	}
	n, err := cs.Count(ctx)
	if err != nil {
		return err
	}
	if n != vectors {
		return fmt.Errorf("stored %d chunk records for %d vectors", n, vectors)
	}
	return cs.SetMeta(ctx, map[string]string{
		store.MetaKeyModel:      report.Model,
		store.MetaKeyDimensions: strconv.Itoa(report.Dimensions),
		store.MetaKeyGeneration: strconv.Itoa(gen),
		store.MetaKeyBuildID:    report.BuildID,
		store.MetaKeyBuiltAt:    time.Now().UTC().Format(time.RFC3339),
		store.MetaKeyDocuments:  strconv.Itoa(report.Documents),
	})
}
