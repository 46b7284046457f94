package indexer

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000 // Max runes per chunk
	DefaultChunkOverlap = 100  // Max runes shared by consecutive chunks
)

// markdownSeparators are tried in order, coarsest first. The empty pattern
// cuts between runes and always applies.
var markdownSeparators = []string{
	`\n#{1,6} `,
	"```\n",
	`\n\*\*\*+\n`,
	`\n---+\n`,
	`\n___+\n`,
	`\n\n`,
	`\n`,
	` `,
	``,
}

// RecursiveSplitter splits markdown documents into overlapping chunks,
// preferring structural boundaries (headings, fences, rules, paragraphs)
// over lines, words and finally single characters.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []*regexp.Regexp
}

// SplitterOption configures a RecursiveSplitter.
type SplitterOption func(*RecursiveSplitter)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(size int) SplitterOption {
	return func(s *RecursiveSplitter) {
		s.chunkSize = size
	}
}

// WithChunkOverlap sets how many runes consecutive chunks may share.
func WithChunkOverlap(overlap int) SplitterOption {
	return func(s *RecursiveSplitter) {
		s.chunkOverlap = overlap
	}
}

// NewRecursiveSplitter creates a splitter with the markdown separator set.
func NewRecursiveSplitter(opts ...SplitterOption) (*RecursiveSplitter, error) {
	s := &RecursiveSplitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.chunkSize)
	}
	if s.chunkOverlap < 0 || s.chunkOverlap >= s.chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", s.chunkSize, s.chunkOverlap)
	}

	s.separators = make([]*regexp.Regexp, len(markdownSeparators))
	for i, pattern := range markdownSeparators {
		s.separators[i] = regexp.MustCompile(pattern)
	}
	return s, nil
}

// ChunkSize returns the configured maximum chunk length.
func (s *RecursiveSplitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap.
func (s *RecursiveSplitter) ChunkOverlap() int { return s.chunkOverlap }

// Split returns the chunks of doc in document order.
// The whole document is split before the first chunk is yielded; only the
// Chunk values are built on demand.
// Chunks inherit Source and Title; Position is left for the index to assign.
func (s *RecursiveSplitter) Split(doc Document) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		texts := s.splitText(doc.Content, s.separators)

		// Start offsets are found by searching forward from where the previous
		// chunk's overlap could begin.
		index := 0
		prevLen := 0
		for _, text := range texts {
			offset := max(0, index+prevLen-s.chunkOverlap)
			start := indexRunes(doc.Content, text, offset)
			// Trimming can move a chunk's text before the expected window. Searching
			// from the top may then match an earlier copy of the same text, which
			// still locates identical text.
			if start < 0 {
				start = indexRunes(doc.Content, text, 0)
			}
			if start < 0 {
				start = offset
			}
			index = start
			prevLen = utf8.RuneCountInString(text)

			chunk := Chunk{
				ID:         ChunkID(doc.Source, start, text),
				Source:     doc.Source,
				Title:      doc.Title,
				Text:       text,
				StartIndex: start,
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// SplitAll collects Split into a slice.
func (s *RecursiveSplitter) SplitAll(doc Document) []Chunk {
	var chunks []Chunk
	for chunk := range s.Split(doc) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitText splits text with the first separator that occurs in it and
// recurses into pieces that are still too long with the finer separators.
func (s *RecursiveSplitter) splitText(text string, separators []*regexp.Regexp) []string {
	separator := separators[len(separators)-1]
	var finer []*regexp.Regexp
	for i, sep := range separators {
		if sep.String() == "" {
			separator = sep
			break
		}
		if sep.MatchString(text) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.mergePieces(good)...)
			good = nil
		}
		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				final = append(final, trimmed)
			}
			continue
		}
		final = append(final, s.splitText(piece, finer)...)
	}
	if len(good) > 0 {
		final = append(final, s.mergePieces(good)...)
	}
	return final
}

// mergePieces greedily joins pieces into chunks of at most chunkSize runes.
// After a chunk is emitted, leading pieces are dropped until the retained
// tail fits within the overlap and leaves room for the next piece.
func (s *RecursiveSplitter) mergePieces(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			if chunk := joinPieces(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}

	if chunk := joinPieces(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// joinPieces concatenates pieces; separators are already attached to them.
func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeepSeparator splits text before every separator match so that each
// separator stays at the start of the piece following it. Empty pieces are dropped.
func splitKeepSeparator(text string, separator *regexp.Regexp) []string {
	if separator.String() == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	var pieces []string
	prev := 0
	for _, loc := range separator.FindAllStringIndex(text, -1) {
		if loc[0] > prev {
			pieces = append(pieces, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	if prev < len(text) {
		pieces = append(pieces, text[prev:])
	}
	return pieces
}

// indexRunes is strings.Index with the start and result counted in runes.
func indexRunes(s, substr string, fromRune int) int {
	from := byteOffset(s, fromRune)
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], substr)
	if i < 0 {
		return -1
	}
	return fromRune + utf8.RuneCountInString(s[from:from+i])
}

func byteOffset(s string, runeOffset int) int {
	if runeOffset <= 0 {
		return 0
	}
	n := 0
	for i := range s {
		if n == runeOffset {
			return i
		}
		n++
	}
	if n == runeOffset {
		return len(s)
	}
	return len(s) + 1
}
