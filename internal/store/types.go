// Package store persists one index generation: an HNSW vector graph for
// similarity search and a SQLite table of chunk records keyed by chunk ID.
// Generations are written once and never modified; see Generations.
package store

import (
	"context"
	"fmt"
)

// Meta keys recorded in every generation's chunks.db.
const (
	MetaKeyModel      = "embedding_model"
	MetaKeyDimensions = "embedding_dimensions"
	MetaKeyGeneration = "generation"
	MetaKeyBuildID    = "build_id"
	MetaKeyBuiltAt    = "built_at"
	MetaKeyDocuments  = "documents"
)

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (256 for static, model-defined for Ollama)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides semantic search using HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, the later vector wins.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector, best first.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Dimensions returns the configured vector dimension.
	Dimensions() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (re-ingest documents)", e.Expected, e.Got)
}
