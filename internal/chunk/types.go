package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunk size defaults, in characters (runes)
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// Document is one extracted upload, the input to the splitter
type Document struct {
	Name string // Unique within a build
	Text string
}

// Hash returns the hex md5 of the document text
func (d Document) Hash() string {
	sum := md5.Sum([]byte(d.Text))
	return hex.EncodeToString(sum[:])
}

// Chunk is the unit of indexing and retrieval
type Chunk struct {
	ID             string // See MakeID
	SourceDocument string
	Content        string // Trimmed, never empty
	Order          int    // 0-based, dense within SourceDocument
	StartOffset    int    // Rune offset of Content in the original text
	DocumentHash   string
}

// NewChunk validates fields and derives the chunk ID.
func NewChunk(source, docHash string, order, startOffset int, content string) (Chunk, error) {
	if source == "" {
		return Chunk{}, fmt.Errorf("chunk source document is required")
	}
	if strings.TrimSpace(content) == "" {
		return Chunk{}, fmt.Errorf("chunk %s#%d has empty content", source, order)
	}
	if order < 0 || startOffset < 0 {
		return Chunk{}, fmt.Errorf("chunk %s has negative order (%d) or offset (%d)", source, order, startOffset)
	}
	return Chunk{
		ID:             MakeID(source, docHash, order, content),
		SourceDocument: source,
		Content:        content,
		Order:          order,
		StartOffset:    startOffset,
		DocumentHash:   docHash,
	}, nil
}

// Options configures the splitter
type Options struct {
	ChunkSize    int      // Maximum window length in runes (default: DefaultChunkSize)
	ChunkOverlap int      // Runes carried between windows, < ChunkSize (default: DefaultChunkOverlap)
	Separators   []string // Breakpoints from coarsest to finest; "" means hard cut
}

// DefaultSeparators prefer paragraphs, then lines, sentences, words, and
// finally a hard character cut.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// DefaultOptions returns the standard window configuration
func DefaultOptions() Options {
	return Options{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Validate checks window bounds
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}
