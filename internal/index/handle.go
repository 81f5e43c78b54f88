package index

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
)

// Hit is one similarity match from a Handle.
type Hit struct {
	Chunk chunk.Chunk
	Score float32
}

// Handle is an immutable in-memory snapshot of one committed generation.
// Everything is read at open time, so a Handle never observes a later build
// and survives its generation directory being pruned.
type Handle struct {
	generation int
	model      string
	dims       int
	buildID    string
	builtAt    string
	documents  int

	vectors *store.HNSWStore
	chunks  map[string]chunk.Chunk
}

// openHandle loads generation n fully into memory.
func openHandle(ctx context.Context, gens *store.Generations, n int) (*Handle, error) {
	vectorPath := gens.VectorPath(n)
	chunksPath := gens.ChunksPath(n)

	dims, err := store.ReadHNSWStoreDimensions(vectorPath)
	if err != nil {
		return nil, fmt.Errorf("generation %d: %w", n, err)
	}
	if dims == 0 {
		return nil, fmt.Errorf("generation %d: vector index missing", n)
	}
	// OpenChunkStore would create an empty database; a missing file is corruption.
	if _, err := os.Stat(chunksPath); err != nil {
		return nil, fmt.Errorf("generation %d: %w", n, err)
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, err
	}
	if err := vectors.Load(vectorPath); err != nil {
		return nil, fmt.Errorf("generation %d: %w", n, err)
	}

	cs, err := store.OpenChunkStore(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("generation %d: %w", n, err)
	}
	defer func() { _ = cs.Close() }()

	records, err := cs.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("generation %d: %w", n, err)
	}
	meta, err := cs.Meta(ctx)
	if err != nil {
		return nil, fmt.Errorf("generation %d: %w", n, err)
	}

	chunks := make(map[string]chunk.Chunk, len(records))
	for _, c := range records {
		chunks[c.ID] = c
	}
	if len(chunks) != vectors.Count() {
		return nil, fmt.Errorf("generation %d: %d chunk records for %d vectors", n, len(chunks), vectors.Count())
	}

	h := &Handle{
		generation: n,
		model:      meta[store.MetaKeyModel],
		dims:       dims,
		buildID:    meta[store.MetaKeyBuildID],
		builtAt:    meta[store.MetaKeyBuiltAt],
		vectors:    vectors,
		chunks:     chunks,
	}
	h.documents, _ = strconv.Atoi(meta[store.MetaKeyDocuments])
	return h, nil
}

// Search returns up to k hits ordered by descending score.
func (h *Handle) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	results, err := h.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		c, ok := h.chunks[r.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Score: r.Score})
	}
	return hits, nil
}

// Generation returns the generation number this handle reads.
func (h *Handle) Generation() int { return h.generation }

// Model returns the embedding model the generation was built with.
func (h *Handle) Model() string { return h.model }

// Dimensions returns the embedding dimension of the generation.
func (h *Handle) Dimensions() int { return h.dims }

// ChunkCount returns the number of indexed chunks.
func (h *Handle) ChunkCount() int { return len(h.chunks) }

// DocumentCount returns the number of documents in the build.
func (h *Handle) DocumentCount() int { return h.documents }

// BuildID returns the id of the build that wrote the generation.
func (h *Handle) BuildID() string { return h.buildID }

// BuiltAt returns the RFC 3339 build time.
func (h *Handle) BuiltAt() string { return h.builtAt }

// Sources returns the distinct source document names, sorted.
func (h *Handle) Sources() []string {
	seen := make(map[string]struct{})
	for _, c := range h.chunks {
		seen[c.SourceDocument] = struct{}{}
	}
	sources := make([]string, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}
