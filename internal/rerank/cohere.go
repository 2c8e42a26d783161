package rerank

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

var _ Reranker = (*CohereReranker)(nil)

const (
	DefaultCohereBaseURL = "https://api.cohere.com"
	DefaultCohereModel   = "rerank-english-v3.0"
	DefaultTimeout       = 60 * time.Second
)

// CohereConfig holds configuration for the Cohere rerank client.
type CohereConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// CohereReranker calls the Cohere v1 rerank endpoint.
type CohereReranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type cohereRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereResponse struct {
	ID      string `json:"id"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// NewCohereReranker creates a new Cohere reranker
func NewCohereReranker(cfg CohereConfig) (*CohereReranker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCohereBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCohereModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &CohereReranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Rerank scores documents against query and returns the best topN
func (c *CohereReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	if topN <= 0 {
		topN = len(documents)
	}

	reqBody := cohereRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      min(topN, len(documents)),
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp cohereResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("cohere error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("cohere error (status %d): %s", resp.StatusCode, string(body))
	}

	var rerankResp cohereResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(rerankResp.Results))
	for _, r := range rerankResp.Results {
		results = append(results, Result{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}

	return validate(results, len(documents), topN)
}

// ModelName returns the rerank model in use
func (c *CohereReranker) ModelName() string {
	return c.model
}
