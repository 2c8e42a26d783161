package processor

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text on the coarsest separator that occurs in
// it, recursing into pieces that are still longer than the chunk size, and
// then merges small pieces back into chunks with a trailing overlap.
// Lengths are counted in runes.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewRecursiveSplitter creates a splitter with the default separators
func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveSplitter {
	return &RecursiveSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// SplitText returns the chunks of text in order. The result never contains
// empty strings.
func (s *RecursiveSplitter) SplitText(text string) []string {
	return s.split(text, s.Separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	var chunks []string

	separator := ""
	var next []string
	if len(separators) > 0 {
		separator = separators[len(separators)-1]
	}
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}

		if len(next) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, next)...)
		}
	}

	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}

	return chunks
}

// merge packs pieces into chunks of at most ChunkSize runes, carrying up to
// ChunkOverlap runes of trailing pieces into the next chunk. Separators are
// already part of the pieces, so they are joined with nothing.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)

	for _, piece := range pieces {
		n := runeLen(piece)

		if total+n > s.ChunkSize && len(current) > 0 {
			if doc := joinTrimmed(current); doc != "" {
				docs = append(docs, doc)
			}

			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += n
	}

	if doc := joinTrimmed(current); doc != "" {
		docs = append(docs, doc)
	}

	return docs
}

// splitKeepingSeparator splits text on sep and glues each separator to the
// start of the piece that follows it. An empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string

	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}

	return pieces
}

func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
