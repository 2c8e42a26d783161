// Package rag wires extraction, embedding, vector search, reranking and
// generation into the two operations the application exposes: ingesting a
// PDF and answering a question about what has been ingested.
package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mini-rag/internal/embedding"
	"mini-rag/internal/llm"
	"mini-rag/internal/models"
	"mini-rag/internal/processor"
	"mini-rag/internal/rerank"
	"mini-rag/internal/vectorindex"
)

const (
	DefaultTopK = 10
	DefaultTopN = 3

	// NoContextMessage is returned instead of a generated answer when the
	// index has nothing to offer for a question.
	NoContextMessage = "No relevant context found."
)

var (
	ErrNoExtractableText = processor.ErrNoExtractableText
	ErrNoVectors         = errors.New("no vectors were generated for this document")
	ErrNotPDF            = errors.New("uploaded file is not a PDF")
	ErrEmptyQuestion     = errors.New("question is empty")
)

// IsRecoverable reports whether err is caused by the user's input rather than
// a failing backend. The session can continue after such an error.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoExtractableText) ||
		errors.Is(err, ErrNoVectors) ||
		errors.Is(err, ErrNotPDF) ||
		errors.Is(err, ErrEmptyQuestion)
}

type Service interface {
	// Ingest extracts, chunks, embeds and upserts one PDF.
	Ingest(ctx context.Context, doc models.Document) (*models.IngestResult, error)

	// Ask retrieves, reranks and answers with inline citations.
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

type ServiceMiddleware func(Service) Service

// Clients bundles the collaborators of the service.
type Clients struct {
	Processor *processor.PDFProcessor
	Embedder  embedding.Embedder
	Index     vectorindex.Index
	Reranker  rerank.Reranker
	Generator llm.Generator
}

type Options struct {
	TopK        int
	TopN        int
	IDScope     models.IDScope
	Concurrency int

	// Progress receives embedding progress during Ingest.
	Progress embedding.ProgressFunc

	Log *zap.Logger
}

func NewService(clients Clients, opts Options) (Service, error) {
	if clients.Processor == nil {
		clients.Processor = processor.NewPDFProcessor(processor.DefaultChunkSize, processor.DefaultChunkOverlap)
	}

	if clients.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	if clients.Index == nil {
		return nil, errors.New("vector index is required")
	}

	if clients.Reranker == nil {
		clients.Reranker = rerank.Passthrough{}
	}

	if clients.Generator == nil {
		return nil, errors.New("generator is required")
	}

	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	if opts.IDScope == "" {
		opts.IDScope = models.IDScopeDocument
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = embedding.DefaultConcurrency
	}

	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	return &service{
		Clients: clients,
		opts:    opts,
		log:     opts.Log,
	}, nil
}

type service struct {
	Clients
	opts Options
	log  *zap.Logger
}

const (
	msgChunksCreated = "created chunks, starting embeddings"
	msgRecordsSent   = "successfully sent records"
)

var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mini-rag/documents"))

// documentKey identifies a document by its content, so re-ingesting the same
// bytes overwrites the same records.
func documentKey(data []byte) string {
	return uuid.NewSHA1(documentNamespace, data).String()
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func (svc *service) Ingest(ctx context.Context, doc models.Document) (*models.IngestResult, error) {
	start := time.Now()

	if !isPDF(doc.Data) {
		return nil, ErrNotPDF
	}

	chunks, err := svc.Processor.ProcessPDF(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrNoExtractableText) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to process %s: %w", doc.Filename, err)
	}

	svc.log.Info(msgChunksCreated,
		zap.String("source", doc.Filename),
		zap.Int("chunks", len(chunks)),
	)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := embedding.EmbedAll(ctx, svc.Embedder, texts, svc.opts.Concurrency, svc.opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	var docKey string
	if svc.opts.IDScope == models.IDScopeDocument {
		docKey = documentKey(doc.Data)
	}

	records := make([]models.VectorRecord, 0, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) == 0 {
			continue
		}

		records = append(records, models.VectorRecord{
			ID:       models.RecordID(svc.opts.IDScope, docKey, chunk.ChunkID),
			Values:   vectors[i],
			Metadata: chunk,
		})
	}

	if len(records) == 0 {
		return nil, ErrNoVectors
	}

	upserted, err := svc.Index.Upsert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	svc.log.Info(msgRecordsSent,
		zap.String("source", doc.Filename),
		zap.Int("records", upserted),
	)

	return &models.IngestResult{
		Source:   doc.Filename,
		Chunks:   len(chunks),
		Upserted: upserted,
		Elapsed:  time.Since(start),
	}, nil
}

func (svc *service) Ask(ctx context.Context, question string) (*models.Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	vector, err := svc.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := svc.Index.Query(ctx, vector, svc.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	if len(matches) == 0 {
		return &models.Answer{
			Question:  question,
			Text:      NoContextMessage,
			Sources:   []models.RerankedDocument{},
			NoContext: true,
			Elapsed:   time.Since(start),
		}, nil
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Metadata.Text
	}

	results, err := svc.Reranker.Rerank(ctx, question, texts, svc.opts.TopN)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank matches: %w", err)
	}

	sources := make([]models.RerankedDocument, len(results))
	contexts := make([]string, len(results))
	for i, r := range results {
		m := matches[r.Index]
		sources[i] = models.RerankedDocument{
			Index:          r.Index,
			RelevanceScore: r.RelevanceScore,
			Text:           m.Metadata.Text,
			Source:         m.Metadata.Source,
			ChunkID:        m.Metadata.ChunkID,
		}
		contexts[i] = m.Metadata.Text
	}

	prompt := llm.BuildPrompt(question, contexts)

	text, err := svc.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &models.Answer{
		Question:  question,
		Text:      text,
		Sources:   sources,
		Retrieved: len(matches),
		Elapsed:   time.Since(start),
	}, nil
}
