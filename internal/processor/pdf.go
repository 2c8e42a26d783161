// internal/processor/pdf.go
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"mini-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	// DefaultChunkSize is the target number of characters per chunk
	DefaultChunkSize = 600
	// DefaultChunkOverlap is the number of characters shared by neighbouring chunks
	DefaultChunkOverlap = 50
)

// ErrNoExtractableText is returned when no page of the PDF yields text, or
// nothing is left once non-ASCII characters are removed. The first usually
// means the PDF is a scanned image.
var ErrNoExtractableText = errors.New("could not extract text from this PDF, is it a scanned image?")

// PDFProcessor handles PDF processing
type PDFProcessor struct {
	ChunkSize    int
	ChunkOverlap int

	splitter *RecursiveSplitter
}

// NewPDFProcessor creates a new PDF processor
func NewPDFProcessor(chunkSize, chunkOverlap int) *PDFProcessor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 4
		}
	}

	return &PDFProcessor{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		splitter:     NewRecursiveSplitter(chunkSize, chunkOverlap),
	}
}

// ExtractText extracts text from PDF bytes page by page. Pages without
// text are dropped.
func (p *PDFProcessor) ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	// cache fonts so the charmaps are parsed once per document
	fonts := make(map[string]*pdf.Font)

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		pages = append(pages, pageText)
	}

	return joinPages(pages)
}

// joinPages concatenates the non-blank pages with a newline.
func joinPages(pages []string) (string, error) {
	kept := make([]string, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		kept = append(kept, page)
	}

	if len(kept) == 0 {
		return "", ErrNoExtractableText
	}

	return strings.Join(kept, "\n"), nil
}

// NormalizeText deletes every character outside 7-bit ASCII. Accents and
// non-Latin scripts are lost, not transliterated.
func NormalizeText(text string) string {
	t := runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	}))

	result, _, _ := transform.String(t, text)
	return result
}

// Chunk splits normalized text into ordered chunks tagged with their source
func (p *PDFProcessor) Chunk(text, source string) []models.Chunk {
	pieces := p.splitter.SplitText(text)

	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		chunks = append(chunks, models.Chunk{
			Text:    piece,
			Source:  source,
			ChunkID: len(chunks),
		})
	}

	return chunks
}

// ProcessPDF runs extraction, normalization and chunking on one document
func (p *PDFProcessor) ProcessPDF(ctx context.Context, doc models.Document) ([]models.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := p.ExtractText(doc.Data)
	if err != nil {
		return nil, err
	}

	return p.ProcessText(text, doc.Filename)
}

// ProcessText normalizes and chunks already extracted text
func (p *PDFProcessor) ProcessText(text, source string) ([]models.Chunk, error) {
	text = NormalizeText(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoExtractableText
	}

	return p.Chunk(text, source), nil
}
