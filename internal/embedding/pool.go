package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency limits in-flight embedding requests per batch
const DefaultConcurrency = 4

// ProgressFunc is called after each text has been embedded.
type ProgressFunc func(processed, total int)

// EmbedAll embeds texts with at most concurrency requests in flight. The
// result is index aligned with texts. The first failure cancels the
// remaining requests and no partial result is returned.
func EmbedAll(ctx context.Context, emb Embedder, texts []string, concurrency int, progress ProgressFunc) ([][]float32, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	vectors := make([][]float32, len(texts))
	total := len(texts)

	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := emb.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}

			if dim := emb.Dimensions(); dim > 0 && len(vec) != dim {
				return fmt.Errorf("%w: chunk %d has %d values, expected %d",
					ErrDimensionMismatch, i, len(vec), dim)
			}

			vectors[i] = vec

			mu.Lock()
			processed++
			if progress != nil {
				progress(processed, total)
			}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}
