package rerank

import "context"

var _ Reranker = Passthrough{}

// Passthrough keeps the retrieval order and cuts it to topN. It stands in
// for a remote reranker when running offline.
type Passthrough struct{}

func (Passthrough) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	if topN <= 0 {
		topN = len(documents)
	}

	results := make([]Result, 0, len(documents))
	for i := range documents {
		results = append(results, Result{Index: i, RelevanceScore: 1 / float64(i+1)})
	}

	return validate(results, len(documents), topN)
}

func (Passthrough) ModelName() string { return "none" }
