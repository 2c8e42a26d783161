package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var _ Embedder = (*GeminiEmbedder)(nil)

const (
	DefaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel     = "text-embedding-004"
	DefaultGeminiDimension = 768
	DefaultTimeout         = 60 * time.Second
)

// GeminiConfig holds configuration for the Gemini embedding client.
type GeminiConfig struct {
	// APIKey is the Google API key (required).
	APIKey string

	// BaseURL defaults to the public generative language endpoint.
	BaseURL string

	Model      string
	Dimensions int
	Timeout    time.Duration
}

// GeminiEmbedder calls the embedContent method of the Gemini API.
type GeminiEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiEmbedder creates a new Gemini embedder
func NewGeminiEmbedder(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultGeminiDimension
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &GeminiEmbedder{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      strings.TrimPrefix(cfg.Model, "models/"),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates the embedding for a single text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := geminiEmbedRequest{
		Model:   "models/" + e.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var embedResp geminiEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(body))
	}

	if embedResp.Error != nil {
		return nil, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, embedResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(body))
	}

	values := embedResp.Embedding.Values
	if len(values) != e.dimensions {
		return nil, fmt.Errorf("%w: %s returned %d values, expected %d",
			ErrDimensionMismatch, e.model, len(values), e.dimensions)
	}

	return toFloat32(values), nil
}

// Dimensions returns the embedding vector size
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the embedding model in use
func (e *GeminiEmbedder) ModelName() string {
	return e.model
}
