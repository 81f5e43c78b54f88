// Package app wires configuration, storage, embedding and retrieval into the
// single object the CLI, the watcher and the MCP server share.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/config"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/embed"
	qaerrors "github.com/vijayarun00100/Autonomous-QA-Agent/internal/errors"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/extract"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/index"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/retriever"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/state"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/store"
	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/ui"
)

// App owns every long-lived component. There are no package globals; each
// entry point opens one App and closes it on exit.
type App struct {
	cfg       *config.Config
	embedder  embed.Embedder
	gens      *store.Generations
	manager   *index.Manager
	builder   *index.Builder
	retriever *retriever.Retriever
	extractor *extract.Extractor
	registry  *state.Registry

	// registryGen is the generation the registry describes.
	registryGen atomic.Int64
}

// Options override components, mainly for tests.
type Options struct {
	// Embedder replaces the configured embedder. The App takes ownership.
	Embedder embed.Embedder

	// Extractor replaces the default extractor.
	Extractor *extract.Extractor
}

// Open creates the data directories and assembles the App.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	for _, dir := range []string{cfg.Paths.IndexDir, cfg.Paths.UploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, qaerrors.New(qaerrors.ErrCodeFilePermission, "failed to create "+dir, err)
		}
	}

	embedder := opts.Embedder
	if embedder == nil {
		var err error
		embedder, err = newEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	splitter, err := chunk.NewSplitter(chunk.Options{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, qaerrors.ConfigError("invalid chunking options", err)
	}

	gens := store.NewGenerations(cfg.Paths.IndexDir)
	manager := index.NewManager(gens)
	builder, err := index.NewBuilder(index.BuilderDependencies{
		Generations: gens,
		Splitter:    splitter,
		Embedder:    embedder,
		Invalidator: manager,
		Backend:     cfg.Embeddings.Provider,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = extract.New()
	}

	a := &App{
		cfg:       cfg,
		embedder:  embedder,
		gens:      gens,
		manager:   manager,
		builder:   builder,
		retriever: retriever.New(manager, embedder),
		extractor: extractor,
		registry:  state.NewRegistry(),
	}

	if a.retriever.IsReady(ctx) {
		a.syncRegistry(ctx)
	}
	return a, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, qaerrors.ConfigError(err.Error(), nil)
	}
	timeout, err := cfg.EmbedTimeout()
	if err != nil {
		return nil, qaerrors.ConfigError(err.Error(), nil)
	}
	return embed.NewEmbedder(ctx, embed.Config{
		Provider:          provider,
		Model:             cfg.Embeddings.Model,
		Host:              cfg.Embeddings.OllamaHost,
		Dimensions:        cfg.Embeddings.Dimensions,
		BatchSize:         cfg.Embeddings.BatchSize,
		Timeout:           timeout,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		CacheSize:         cfg.Embeddings.CacheSize,
	})
}

// syncRegistry records the uploads backing the committed generation when it
// was built by another process or before a restart.
func (a *App) syncRegistry(ctx context.Context) {
	h, err := a.manager.Handle(ctx)
	if err != nil || int64(h.Generation()) == a.registryGen.Load() {
		return
	}
	a.registry.Reset()
	a.registryGen.Store(int64(h.Generation()))
	for _, name := range h.Sources() {
		path := filepath.Join(a.cfg.Paths.UploadDir, name)
		if _, err := os.Stat(path); err == nil {
			a.registry.Record(name, path)
		}
	}
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Registry returns the ingestion registry.
func (a *App) Registry() *state.Registry {
	a.syncRegistry(context.Background())
	return a.registry
}

// Retriever returns the query side.
func (a *App) Retriever() *retriever.Retriever { return a.retriever }

// Embedder returns the embedder shared by builds and queries.
func (a *App) Embedder() embed.Embedder { return a.embedder }

// LatestHTML returns the name and raw markup of the most recently ingested
// HTML upload.
func (a *App) LatestHTML() (name, markup string, err error) {
	a.syncRegistry(context.Background())
	f, ok := a.registry.LatestHTML()
	if !ok {
		return "", "", fmt.Errorf("no HTML file has been ingested")
	}
	markup, err = a.registry.RawHTML()
	return f.Name, markup, err
}

// Close releases the embedder.
func (a *App) Close() error {
	return a.embedder.Close()
}

// SaveUpload writes data under the upload directory as name and returns the
// stored path. name must be a plain file name.
func (a *App) SaveUpload(name string, data []byte) (string, error) {
	clean, err := uploadName(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(a.cfg.Paths.UploadDir, clean)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", qaerrors.New(qaerrors.ErrCodeFilePermission, "failed to save upload "+clean, err)
	}
	return path, nil
}

func uploadName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." || strings.ContainsAny(name, `/\`) {
		return "", qaerrors.New(qaerrors.ErrCodeInvalidPath, fmt.Sprintf("invalid upload name %q", name), nil).
			WithSuggestion("Use a plain file name without directories")
	}
	return base, nil
}

// Uploads maps the supported files in the upload directory to their paths.
func (a *App) Uploads() (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(a.cfg.Paths.UploadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != a.cfg.Paths.UploadDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || extract.DetectFormat(d.Name()) == extract.FormatUnsupported {
			return nil
		}
		files[d.Name()] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return files, nil
}

// IngestionStatus reports the outcome of an ingest.
type IngestionStatus struct {
	Success            bool    `json:"success"`
	Message            string  `json:"message"`
	DocumentsProcessed int     `json:"documents_processed"`
	ChunksIndexed      int     `json:"chunks_indexed"`
	Generation         int     `json:"generation,omitempty"`
	DurationSeconds    float64 `json:"duration_seconds"`
}

// IngestOption configures an ingest.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	renderer ui.Renderer
}

// WithRenderer reports ingest progress to r.
func WithRenderer(r ui.Renderer) IngestOption {
	return func(o *ingestOptions) {
		if r != nil {
			o.renderer = r
		}
	}
}

// IngestPaths rebuilds the knowledge base from exactly the given files. After
// a successful build the upload directory holds exactly that batch, so a
// watcher rebuild from the directory indexes the same documents.
func (a *App) IngestPaths(ctx context.Context, paths []string, opts ...IngestOption) (IngestionStatus, error) {
	start := time.Now()

	// Validate the whole batch before building anything.
	files := make(map[string]string, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		if extract.DetectFormat(name) == extract.FormatUnsupported {
			return a.failed(start, qaerrors.NewUnsupportedFormat(name, filepath.Ext(name)))
		}
		if _, dup := files[name]; dup {
			return a.failed(start, qaerrors.ValidationError(fmt.Sprintf("duplicate document name %q", name), nil))
		}
		if _, err := uploadName(name); err != nil {
			return a.failed(start, err)
		}
		if _, err := os.Stat(p); err != nil {
			return a.failed(start, qaerrors.New(qaerrors.ErrCodeFileNotFound, "cannot read "+p, err))
		}
		files[name] = p
	}
	return a.ingest(ctx, files, a.replaceUploads, opts...)
}

// replaceUploads copies files into the upload directory and removes every
// other upload. It returns the stored paths.
func (a *App) replaceUploads(files map[string]string) (map[string]string, error) {
	stored := make(map[string]string, len(files))
	for name, src := range files {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, qaerrors.New(qaerrors.ErrCodeFileNotFound, "cannot read "+src, err)
		}
		path, err := a.SaveUpload(name, data)
		if err != nil {
			return nil, err
		}
		stored[name] = path
	}

	entries, err := os.ReadDir(a.cfg.Paths.UploadDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, keep := stored[e.Name()]; keep || !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(a.cfg.Paths.UploadDir, e.Name())); err != nil {
			return nil, qaerrors.New(qaerrors.ErrCodeFilePermission, "failed to remove upload "+e.Name(), err)
		}
	}
	return stored, nil
}

// IngestUploads rebuilds the knowledge base from every supported file in the
// upload directory.
func (a *App) IngestUploads(ctx context.Context, opts ...IngestOption) (IngestionStatus, error) {
	files, err := a.Uploads()
	if err != nil {
		return a.failed(time.Now(), err)
	}
	return a.Ingest(ctx, files, opts...)
}

// Ingest extracts files (document name -> path) and replaces the knowledge
// base with them. On any failure the previous knowledge base stays in place.
func (a *App) Ingest(ctx context.Context, files map[string]string, opts ...IngestOption) (IngestionStatus, error) {
	return a.ingest(ctx, files, nil, opts...)
}

// ingest builds from files. When persist is set it runs after the commit and
// its result replaces files in the registry.
func (a *App) ingest(ctx context.Context, files map[string]string, persist func(map[string]string) (map[string]string, error), opts ...IngestOption) (IngestionStatus, error) {
	start := time.Now()
	o := ingestOptions{renderer: ui.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	r := o.renderer
	if err := r.Start(ctx); err != nil {
		slog.Debug("renderer_start_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = r.Stop() }()

	r.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageExtracting,
		Total:   len(files),
		Message: fmt.Sprintf("Reading %d files", len(files)),
	})
	docs, err := a.extractor.LoadAll(ctx, files)
	if err != nil {
		r.AddError(ui.ErrorEvent{Err: err})
		return a.failed(start, err)
	}
	extractTime := time.Since(start)
	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageExtracting, Current: len(docs), Total: len(files)})

	report, err := a.builder.Build(ctx, docs, index.WithRenderer(extractTiming{Renderer: r, extract: extractTime}))
	if err != nil {
		r.AddError(ui.ErrorEvent{Err: err})
		return a.failed(start, err)
	}

	if persist != nil {
		stored, err := persist(files)
		if err != nil {
			// The generation is committed; only the upload copies are stale.
			slog.Warn("uploads_not_replaced", qaerrors.FormatForLog(err)...)
		} else {
			files = stored
		}
	}

	a.registry.Reset()
	a.registryGen.Store(int64(report.Generation))
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.registry.Record(name, files[name])
	}
	a.retriever.Refresh(ctx)

	return IngestionStatus{
		Success: true,
		Message: fmt.Sprintf("Indexed %d chunks from %d documents into generation %d",
			report.ChunksIndexed, report.Documents, report.Generation),
		DocumentsProcessed: report.Documents,
		ChunksIndexed:      report.ChunksIndexed,
		Generation:         report.Generation,
		DurationSeconds:    time.Since(start).Seconds(),
	}, nil
}

func (a *App) failed(start time.Time, err error) (IngestionStatus, error) {
	slog.Warn("ingest_failed", qaerrors.FormatForLog(err)...)
	return IngestionStatus{
		Success:         false,
		Message:         err.Error(),
		DurationSeconds: time.Since(start).Seconds(),
	}, err
}

// extractTiming adds the extraction time to the builder's completion stats.
type extractTiming struct {
	ui.Renderer
	extract time.Duration
}

func (e extractTiming) Complete(stats ui.CompletionStats) {
	stats.Stages.Extract = e.extract
	stats.Duration += e.extract
	e.Renderer.Complete(stats)
}

// Query returns the topK chunks most similar to text. topK <= 0 uses the
// configured default.
func (a *App) Query(ctx context.Context, text string, topK int) ([]retriever.Result, error) {
	if topK <= 0 {
		topK = a.cfg.Retrieval.TopK
	}
	return a.retriever.Query(ctx, text, topK)
}

// Context answers text with formatted context blocks, or ErrNoContext.
func (a *App) Context(ctx context.Context, text string, topK int) (string, error) {
	results, err := a.Query(ctx, text, topK)
	if err != nil {
		return "", err
	}
	return retriever.FormatContext(results)
}

// Status describes the knowledge base and its embedder.
type Status struct {
	Ready      bool
	Generation int
	Documents  int
	Chunks     int
	Model      string
	Dimensions int
	BuildID    string
	BuiltAt    time.Time
	IndexSize  int64
	Message    string

	EmbedderProvider  string
	EmbedderModel     string
	EmbedderAvailable bool

	UploadDir string
	Files     []state.File
}

// Status reports readiness and the committed generation's details.
func (a *App) Status(ctx context.Context) Status {
	s := Status{
		EmbedderProvider:  a.cfg.Embeddings.Provider,
		EmbedderModel:     a.embedder.ModelName(),
		EmbedderAvailable: a.embedder.Available(ctx),
		UploadDir:         a.cfg.Paths.UploadDir,
	}
	a.syncRegistry(ctx)
	s.Files = a.registry.Files()

	h, err := a.manager.Handle(ctx)
	if err != nil {
		s.Message = err.Error()
		if errors.Is(err, store.ErrNoGeneration) {
			s.Message = "knowledge base not built yet; run `qabrain ingest <files>`"
		}
		return s
	}

	s.Ready = true
	s.Generation = h.Generation()
	s.Documents = h.DocumentCount()
	s.Chunks = h.ChunkCount()
	s.Model = h.Model()
	s.Dimensions = h.Dimensions()
	s.BuildID = h.BuildID()
	if t, err := time.Parse(time.RFC3339, h.BuiltAt()); err == nil {
		s.BuiltAt = t
	}
	s.IndexSize = dirSize(a.gens.Dir(h.Generation()))
	return s
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
