package chunk

import (
	"unicode"
)

// Splitter cuts document text into overlapping windows, recursing from
// coarse separators to fine ones until every window fits ChunkSize.
// A Splitter is immutable and safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// span is a half-open rune range [start, end) into the document text
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// NewSplitter creates a splitter, filling zero-valued options with defaults.
func NewSplitter(opts Options) (*Splitter, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Separators == nil {
		opts.Separators = DefaultSeparators
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	seps := make([][]rune, 0, len(opts.Separators)+1)
	hasHardCut := false
	for _, sep := range opts.Separators {
		if sep == "" {
			hasHardCut = true
		}
		seps = append(seps, []rune(sep))
	}
	if !hasHardCut {
		seps = append(seps, nil)
	}

	return &Splitter{
		size:       opts.ChunkSize,
		overlap:    opts.ChunkOverlap,
		separators: seps,
	}, nil
}

// Split returns the ordered chunks of text. Whitespace-only windows are
// dropped and Order is assigned densely over the survivors. Empty text
// yields no chunks.
func (s *Splitter) Split(text, source, docHash string) ([]Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	windows := s.split(runes, span{0, len(runes)}, s.separators)

	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		w = trimSpan(runes, w)
		if w.len() == 0 {
			continue
		}
		c, err := NewChunk(source, docHash, len(chunks), w.start, string(runes[w.start:w.end]))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// split picks the coarsest separator present in region, cuts on it, merges
// small pieces into windows and recurses into pieces that are still too big.
func (s *Splitter) split(text []rune, region span, seps [][]rune) []span {
	sep, finer := pickSeparator(text, region, seps)

	var out, small []span
	for _, piece := range cut(text, region, sep) {
		if piece.len() < s.size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(text, piece, finer)...)
		}
	}
	if len(small) > 0 {
		out = append(out, s.merge(small)...)
	}
	return out
}

// merge packs contiguous pieces into windows of at most size runes, keeping
// up to overlap runes of trailing pieces at the head of the next window.
func (s *Splitter) merge(pieces []span) []span {
	var windows []span
	var current []span
	total := 0

	for _, p := range pieces {
		n := p.len()
		if total+n > s.size && len(current) > 0 {
			windows = append(windows, span{current[0].start, current[len(current)-1].end})
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= current[0].len()
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		windows = append(windows, span{current[0].start, current[len(current)-1].end})
	}
	return windows
}

// pickSeparator returns the first separator occurring in region and the
// finer separators after it. The hard cut (empty separator) always matches.
func pickSeparator(text []rune, region span, seps [][]rune) ([]rune, [][]rune) {
	for i, sep := range seps {
		if len(sep) == 0 {
			return nil, nil
		}
		if indexRunes(text, region.start, region.end, sep) >= 0 {
			return sep, seps[i+1:]
		}
	}
	return nil, nil
}

// cut splits region after every occurrence of sep, keeping the separator at
// the end of the preceding piece so pieces stay contiguous. A nil sep cuts
// between every rune.
func cut(text []rune, region span, sep []rune) []span {
	if len(sep) == 0 {
		pieces := make([]span, 0, region.len())
		for i := region.start; i < region.end; i++ {
			pieces = append(pieces, span{i, i + 1})
		}
		return pieces
	}

	var pieces []span
	start := region.start
	for {
		i := indexRunes(text, start, region.end, sep)
		if i < 0 {
			break
		}
		end := i + len(sep)
		pieces = append(pieces, span{start, end})
		start = end
	}
	if start < region.end {
		pieces = append(pieces, span{start, region.end})
	}
	return pieces
}

// indexRunes finds sep within text[from:to], returning an absolute index or -1.
func indexRunes(text []rune, from, to int, sep []rune) int {
	for i := from; i+len(sep) <= to; i++ {
		match := true
		for j, r := range sep {
			if text[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func trimSpan(text []rune, w span) span {
	for w.start < w.end && unicode.IsSpace(text[w.start]) {
		w.start++
	}
	for w.end > w.start && unicode.IsSpace(text[w.end-1]) {
		w.end--
	}
	return w
}
