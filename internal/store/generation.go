package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Generation layout under the index directory:
//
//	<root>/CURRENT            committed generation number
//	<root>/gen-<N>/vectors.hnsw
//	<root>/gen-<N>/vectors.hnsw.meta
//	<root>/gen-<N>/chunks.db
const (
	CurrentFile      = "CURRENT"
	VectorsFile      = "vectors.hnsw"
	ChunksFile       = "chunks.db"
	generationPrefix = "gen-"
)

// ErrNoGeneration means nothing has been committed yet.
var ErrNoGeneration = errors.New("no committed index generation")

// Generations manages numbered index directories and the CURRENT pointer.
// Readers resolve CURRENT once and then only touch that directory, so a
// commit never changes what an open reader sees.
type Generations struct {
	root string
}

// NewGenerations returns a manager rooted at dir. Nothing is created until
// Next is called.
func NewGenerations(dir string) *Generations {
	return &Generations{root: dir}
}

// Root returns the index directory.
func (g *Generations) Root() string { return g.root }

// Dir returns the directory of generation n.
func (g *Generations) Dir(n int) string {
	return filepath.Join(g.root, generationPrefix+strconv.Itoa(n))
}

// VectorPath returns the HNSW graph path of generation n.
func (g *Generations) VectorPath(n int) string {
	return filepath.Join(g.Dir(n), VectorsFile)
}

// ChunksPath returns the chunk database path of generation n.
func (g *Generations) ChunksPath(n int) string {
	return filepath.Join(g.Dir(n), ChunksFile)
}

// Current returns the committed generation number, or ErrNoGeneration.
func (g *Generations) Current() (int, error) {
	data, err := os.ReadFile(filepath.Join(g.root, CurrentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoGeneration
		}
		return 0, fmt.Errorf("read %s: %w", CurrentFile, err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("corrupt %s pointer %q", CurrentFile, strings.TrimSpace(string(data)))
	}
	return n, nil
}

// List returns the generation numbers present on disk, ascending.
func (g *Generations) List() ([]int, error) {
	entries, err := os.ReadDir(g.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list generations: %w", err)
	}

	var gens []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), generationPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), generationPrefix))
		if err != nil || n <= 0 {
			continue
		}
		gens = append(gens, n)
	}
	sort.Ints(gens)
	return gens, nil
}

// Next creates an empty directory for a new generation and returns its
// number, which is greater than every generation on disk or committed.
func (g *Generations) Next() (int, error) {
	gens, err := g.List()
	if err != nil {
		return 0, err
	}

	next := 1
	if len(gens) > 0 {
		next = gens[len(gens)-1] + 1
	}
	if cur, err := g.Current(); err == nil && cur >= next {
		next = cur + 1
	}

	if err := os.MkdirAll(g.Dir(next), 0755); err != nil {
		return 0, fmt.Errorf("create generation directory: %w", err)
	}
	return next, nil
}

// Commit atomically points CURRENT at generation n.
func (g *Generations) Commit(n int) error {
	if _, err := os.Stat(g.Dir(n)); err != nil {
		return fmt.Errorf("generation %d: %w", n, err)
	}

	return writeAtomic(filepath.Join(g.root, CurrentFile), func(f *os.File) error {
		_, err := f.WriteString(strconv.Itoa(n) + "\n")
		return err
	})
}

// Remove deletes generation n. Used to discard a failed build.
func (g *Generations) Remove(n int) error {
	return os.RemoveAll(g.Dir(n))
}

// Prune removes every generation except keep and returns the removed numbers.
// Failures are logged and skipped; a leftover directory is harmless.
func (g *Generations) Prune(keep int) []int {
	gens, err := g.List()
	if err != nil {
		slog.Warn("generation_prune_failed", slog.String("error", err.Error()))
		return nil
	}

	var removed []int
	for _, n := range gens {
		if n == keep {
			continue
		}
		if err := g.Remove(n); err != nil {
			slog.Warn("generation_remove_failed",
				slog.Int("generation", n),
				slog.String("error", err.Error()))
			continue
		}
		removed = append(removed, n)
	}
	return removed
}
