// Package embedding turns text into dense vectors.
package embedding

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a provider answers with a vector
// whose length differs from the configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps one text to one vector. The same instance is used for
// documents and queries so both live in the same space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
