package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/vijayarun00100/Autonomous-QA-Agent/internal/chunk"
)

var chunkSchema = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
		id              TEXT PRIMARY KEY,
		source_document TEXT NOT NULL,
		content         TEXT NOT NULL,
		chunk_order     INTEGER NOT NULL,
		start_offset    INTEGER NOT NULL,
		document_hash   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_document, chunk_order)`,
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// chunkRow is the sqlx mapping for the chunks table.
type chunkRow struct {
	ID             string `db:"id"`
	SourceDocument string `db:"source_document"`
	Content        string `db:"content"`
	Order          int    `db:"chunk_order"`
	StartOffset    int    `db:"start_offset"`
	DocumentHash   string `db:"document_hash"`
}

func (r chunkRow) toChunk() chunk.Chunk {
	return chunk.Chunk{
		ID:             r.ID,
		SourceDocument: r.SourceDocument,
		Content:        r.Content,
		Order:          r.Order,
		StartOffset:    r.StartOffset,
		DocumentHash:   r.DocumentHash,
	}
}

// ChunkStore holds chunk records and build metadata for one generation.
type ChunkStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	path   string
	closed bool
}

// OpenChunkStore opens (or creates) the chunk database at path.
// An empty path opens an in-memory database for tests.
func OpenChunkStore(path string) (*ChunkStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	// modernc.org/sqlite registers as "sqlite" (pure Go, no CGO)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}
	// Single connection: keeps :memory: coherent and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Generations are written once and then only read, so the default
	// rollback journal keeps each chunks.db a single self-contained file.
	stmts := append([]string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}, chunkSchema...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize chunk store: %w", err)
		}
	}

	return &ChunkStore{db: db, path: path}, nil
}

// InsertChunks upserts chunks in one transaction. A repeated ID overwrites
// the earlier record.
func (s *ChunkStore) InsertChunks(ctx context.Context, chunks []chunk.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO chunks (id, source_document, content, chunk_order, start_offset, document_hash)
		VALUES (:id, :source_document, :content, :chunk_order, :start_offset, :document_hash)
		ON CONFLICT(id) DO UPDATE SET
			source_document = excluded.source_document,
			content         = excluded.content,
			chunk_order     = excluded.chunk_order,
			start_offset    = excluded.start_offset,
			document_hash   = excluded.document_hash`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		row := chunkRow{
			ID:             c.ID,
			SourceDocument: c.SourceDocument,
			Content:        c.Content,
			Order:          c.Order,
			StartOffset:    c.StartOffset,
			DocumentHash:   c.DocumentHash,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// AllChunks returns every chunk ordered by source document and order.
func (s *ChunkStore) AllChunks(ctx context.Context) ([]chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, source_document, content, chunk_order, start_offset, document_hash
		FROM chunks ORDER BY source_document, chunk_order`); err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}

	out := make([]chunk.Chunk, len(rows))
	for i, r := range rows {
		out[i] = r.toChunk()
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("chunk store is closed")
	}

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chunks`); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// SetMeta stores build metadata values.
func (s *ChunkStore) SetMeta(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("set meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Meta returns all build metadata.
func (s *ChunkStore) Meta(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("select meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Path returns the database file path ("" for in-memory).
func (s *ChunkStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
