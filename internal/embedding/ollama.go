package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

var _ Embedder = (*OllamaEmbedder)(nil)

// OllamaEmbedder generates embeddings using Ollama API
type OllamaEmbedder struct {
	Client     *api.Client
	Model      string
	Dimension  int
	MaxRetries int
	Timeout    time.Duration
}

// NewOllamaEmbedder creates a new Ollama embedder. An empty host falls back
// to OLLAMA_HOST.
func NewOllamaEmbedder(host, model string, dimension int) (*OllamaEmbedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host: %w", err)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaEmbedder{
		Client:     client,
		Model:      model,
		Dimension:  dimension,
		MaxRetries: 0,
		Timeout:    time.Second * 30,
	}, nil
}

// Embed generates an embedding for a text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedding []float64
	var err error

	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}

		embedding, err = e.createEmbedding(ctx, text)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding after %d retries: %w", e.MaxRetries, err)
	}

	if e.Dimension > 0 && len(embedding) != e.Dimension {
		return nil, fmt.Errorf("%w: %s returned %d values, expected %d",
			ErrDimensionMismatch, e.Model, len(embedding), e.Dimension)
	}

	return toFloat32(embedding), nil
}

func (e *OllamaEmbedder) createEmbedding(ctx context.Context, text string) ([]float64, error) {
	req := api.EmbeddingRequest{
		Model:   e.Model,
		Prompt:  text,
		Options: map[string]any{},
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	resp, err := e.Client.Embeddings(ctxWithTimeout, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	return resp.Embedding, nil
}

// Dimensions returns the configured vector size
func (e *OllamaEmbedder) Dimensions() int {
	return e.Dimension
}

// ModelName returns the Ollama model tag
func (e *OllamaEmbedder) ModelName() string {
	return e.Model
}
