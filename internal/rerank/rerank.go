// Package rerank reorders retrieved texts by relevance to a query.
package rerank

import (
	"context"
	"errors"
)

var (
	// ErrNoDocuments is returned when a rerank is requested over nothing.
	ErrNoDocuments = errors.New("rerank: no documents to rank")

	// ErrInvalidResult is returned when the provider answers with an index
	// outside the submitted document list.
	ErrInvalidResult = errors.New("rerank: result index out of range")
)

// Result is one reranked document. Index points into the submitted list.
type Result struct {
	Index          int
	RelevanceScore float64
}

// Reranker returns at most topN results, most relevant first.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)
	ModelName() string
}

// validate checks provider output against the request and truncates it to
// min(topN, len(documents)).
func validate(results []Result, documents, topN int) ([]Result, error) {
	for _, r := range results {
		if r.Index < 0 || r.Index >= documents {
			return nil, ErrInvalidResult
		}
	}

	limit := min(topN, documents)
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}
