package models

import (
	"fmt"
	"time"
)

// Document is an uploaded PDF. It only lives for one ingestion run.
type Document struct {
	Filename string
	Data     []byte
}

// Chunk represents a chunk of text from the PDF
type Chunk struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

// VectorRecord is what gets upserted into the vector index
type VectorRecord struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Chunk     `json:"metadata"`
}

// Match is a nearest neighbour returned by the vector index
type Match struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	Metadata Chunk   `json:"metadata"`
}

// RerankedDocument is a match text after the rerank pass. Index points into
// the candidate list that was submitted to the reranker.
type RerankedDocument struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
	Text           string  `json:"text"`
	Source         string  `json:"source,omitempty"`
	ChunkID        int     `json:"chunk_id"`
}

// Answer represents the response shown to the user. Sources are in citation
// order: [1] is Sources[0]. Retrieved counts the matches before reranking.
type Answer struct {
	Question  string             `json:"question"`
	Text      string             `json:"answer"`
	Sources   []RerankedDocument `json:"sources"`
	Retrieved int                `json:"retrieved"`
	NoContext bool               `json:"no_context,omitempty"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// IngestResult summarises one ingestion run
type IngestResult struct {
	Source   string        `json:"source"`
	Chunks   int           `json:"chunks"`
	Upserted int           `json:"upserted"`
	Elapsed  time.Duration `json:"elapsed"`
}

// IDScope decides how vector record ids are derived.
type IDScope string

const (
	// IDScopeChunk uses "id-<chunk_id>". Ingesting a second document
	// overwrites the first one's records position by position.
	IDScopeChunk IDScope = "chunk"

	// IDScopeDocument prefixes the chunk id with a document identity.
	IDScopeDocument IDScope = "document"
)

// RecordID returns the vector id of a chunk. docKey is ignored for IDScopeChunk.
func RecordID(scope IDScope, docKey string, chunkID int) string {
	if scope == IDScopeDocument && docKey != "" {
		return fmt.Sprintf("%s-%d", docKey, chunkID)
	}

	return fmt.Sprintf("id-%d", chunkID)
}
