package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var _ Embedder = (*HashEmbedder)(nil)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashEmbedder is an offline bag-of-words embedder. Each lowercased token
// is hashed into one of Dimension buckets and the vector is L2 normalized.
// Texts sharing words end up close under cosine similarity.
type HashEmbedder struct {
	Dimension int
}

// NewHashEmbedder creates a hashing embedder with the given dimension
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultGeminiDimension
	}
	return &HashEmbedder{Dimension: dimension}
}

// Embed hashes the tokens of text into a normalized vector
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.Dimension)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.Dimension)]++
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		// token-less text maps to a fixed unit vector
		vec[0] = 1
		return toFloat32(vec), nil
	}
	for i := range vec {
		vec[i] /= norm
	}

	return toFloat32(vec), nil
}

func (e *HashEmbedder) Dimensions() int { return e.Dimension }

func (e *HashEmbedder) ModelName() string { return "hash" }
