// Package pinecone talks to the Pinecone REST API: the control plane for
// index management and the per-index data plane for upsert and query.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

var (
	_ vectorindex.Admin = (*Client)(nil)
	_ vectorindex.Index = (*Index)(nil)
)

const (
	DefaultControlURL = "https://api.pinecone.io"
	DefaultAPIVersion = "2025-04"
	DefaultTimeout    = 60 * time.Second
)

// Config holds configuration for the Pinecone client.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// ControlURL is the control plane base URL.
	ControlURL string

	APIVersion string
	Namespace  string
	Timeout    time.Duration
}

// Client is the control plane client. Index handles share its HTTP client
// and credentials.
type Client struct {
	client     *http.Client
	controlURL string
	apiKey     string
	apiVersion string
	namespace  string
}

// NewClient creates a new Pinecone client
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: API key is required")
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = DefaultControlURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:     &http.Client{Timeout: cfg.Timeout},
		controlURL: strings.TrimRight(cfg.ControlURL, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		namespace:  cfg.Namespace,
	}, nil
}

// APIError is a non-2xx answer from Pinecone.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone error (status %d): %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// do sends a JSON request and decodes a JSON answer into out, which may be nil.
func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-API-Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}

		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			switch {
			case eb.Error.Message != "":
				apiErr.Message = eb.Error.Message
			case eb.Message != "":
				apiErr.Message = eb.Message
			}
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type indexModel struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type indexList struct {
	Indexes []indexModel `json:"indexes"`
}

type serverlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

type createIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless serverlessSpec `json:"serverless"`
	} `json:"spec"`
}

func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	var list indexList
	if err := c.do(ctx, http.MethodGet, c.controlURL+"/indexes", nil, &list); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(list.Indexes))
	for _, idx := range list.Indexes {
		names = append(names, idx.Name)
	}
	return names, nil
}

func (c *Client) describe(ctx context.Context, name string) (*indexModel, error) {
	var model indexModel
	err := c.do(ctx, http.MethodGet, c.controlURL+"/indexes/"+url.PathEscape(name), nil, &model)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", vectorindex.ErrIndexNotFound, name)
		}
		return nil, err
	}
	return &model, nil
}

func (c *Client) DescribeIndex(ctx context.Context, name string) (*vectorindex.Description, error) {
	model, err := c.describe(ctx, name)
	if err != nil {
		return nil, err
	}

	return &vectorindex.Description{
		Name:      model.Name,
		Dimension: model.Dimension,
		Metric:    vectorindex.Metric(model.Metric),
		Host:      model.Host,
		Ready:     model.Status.Ready,
	}, nil
}

// CreateIndex creates a serverless index
func (c *Client) CreateIndex(ctx context.Context, spec vectorindex.Spec) error {
	req := createIndexRequest{
		Name:      spec.Name,
		Dimension: spec.Dimension,
		Metric:    string(spec.Metric),
	}
	req.Spec.Serverless = serverlessSpec{Cloud: spec.Cloud, Region: spec.Region}

	return c.do(ctx, http.MethodPost, c.controlURL+"/indexes", req, nil)
}

func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.controlURL+"/indexes/"+url.PathEscape(name), nil, nil)
}

// Index resolves the data plane host of name and returns a handle to it
func (c *Client) Index(ctx context.Context, name string) (vectorindex.Index, error) {
	model, err := c.describe(ctx, name)
	if err != nil {
		return nil, err
	}

	host := model.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	return &Index{
		client:    c,
		host:      strings.TrimRight(host, "/"),
		dimension: model.Dimension,
	}, nil
}

// Index is a data plane handle for one index.
type Index struct {
	client    *Client
	host      string
	dimension int
}

type vector struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata metadata  `json:"metadata"`
}

type metadata struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert sends all records in one request
func (idx *Index) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	req := upsertRequest{
		Vectors:   make([]vector, 0, len(records)),
		Namespace: idx.client.namespace,
	}
	for _, r := range records {
		if idx.dimension > 0 && len(r.Values) != idx.dimension {
			return 0, fmt.Errorf("%w: record %s has %d values, index has %d",
				vectorindex.ErrDimensionMismatch, r.ID, len(r.Values), idx.dimension)
		}

		req.Vectors = append(req.Vectors, vector{
			ID:     r.ID,
			Values: r.Values,
			Metadata: metadata{
				Text:    r.Metadata.Text,
				Source:  r.Metadata.Source,
				ChunkID: r.Metadata.ChunkID,
			},
		})
	}

	var resp upsertResponse
	if err := idx.client.do(ctx, http.MethodPost, idx.host+"/vectors/upsert", req, &resp); err != nil {
		return 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	return resp.UpsertedCount, nil
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
	Namespace       string    `json:"namespace,omitempty"`
}

// Pinecone stores metadata numbers as floats.
type matchMetadata struct {
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	ChunkID float64 `json:"chunk_id"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float32        `json:"score"`
		Metadata *matchMetadata `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

// Query returns the topK nearest vectors with their metadata
func (idx *Index) Query(ctx context.Context, vec []float32, topK int) ([]models.Match, error) {
	if idx.dimension > 0 && len(vec) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d",
			vectorindex.ErrDimensionMismatch, len(vec), idx.dimension)
	}
	if topK <= 0 {
		return []models.Match{}, nil
	}

	req := queryRequest{
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       idx.client.namespace,
	}

	var resp queryResponse
	if err := idx.client.do(ctx, http.MethodPost, idx.host+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	matches := make([]models.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := models.Match{ID: m.ID, Score: m.Score}
		if m.Metadata != nil {
			match.Metadata = models.Chunk{
				Text:    m.Metadata.Text,
				Source:  m.Metadata.Source,
				ChunkID: int(m.Metadata.ChunkID),
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}
