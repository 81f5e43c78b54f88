package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (default, no network)
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses the Ollama API for embeddings
	ProviderOllama ProviderType = "ollama"
)

// ParseProvider maps a config string to a provider. Empty means static.
func ParseProvider(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ProviderStatic):
		return ProviderStatic, nil
	case string(ProviderOllama):
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (expected static or ollama)", s)
	}
}

// Config selects and tunes the embedder.
type Config struct {
	Provider          ProviderType
	Model             string
	Host              string
	Dimensions        int
	BatchSize         int
	Timeout           time.Duration
	RequestsPerSecond float64

	// CacheSize is the query cache capacity; negative disables caching.
	CacheSize int
}

// NewEmbedder creates the configured embedder wrapped in a query cache.
// There is no silent fallback: an unreachable Ollama is an error, so build
// and query never end up on different models.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder

	switch cfg.Provider {
	case ProviderStatic, "":
		embedder = NewStaticEmbedderWithDims(cfg.Dimensions)

	case ProviderOllama:
		oc := DefaultOllamaConfig()
		if cfg.Host != "" {
			oc.Host = cfg.Host
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BatchSize > 0 {
			oc.BatchSize = cfg.BatchSize
		}
		if cfg.Timeout > 0 {
			oc.Timeout = cfg.Timeout
		}
		oc.Dimensions = cfg.Dimensions
		oc.RequestsPerSecond = cfg.RequestsPerSecond

		o, err := NewOllamaEmbedder(ctx, oc)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w", err)
		}
		embedder = o

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(cfg.Provider)),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))

	if cfg.CacheSize < 0 {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}
