// Package vectorindex defines the vector store ports and the provisioning
// routine that keeps a named index at the expected dimension.
package vectorindex

import (
	"context"
	"errors"

	"mini-rag/internal/models"
)

var (
	ErrIndexNotFound     = errors.New("index not found")
	ErrDimensionMismatch = errors.New("vector dimension does not match index")
	ErrIndexNotReady     = errors.New("index did not become ready")
)

// Metric is the similarity function an index is built for.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dotproduct"
)

// Spec describes the index the application expects to exist.
type Spec struct {
	Name      string `yaml:"name"`
	Dimension int    `yaml:"dimension"`
	Metric    Metric `yaml:"metric"`
	Cloud     string `yaml:"cloud"`
	Region    string `yaml:"region"`
}

// Description is what a backend reports about an existing index.
type Description struct {
	Name      string
	Dimension int
	Metric    Metric
	Host      string
	Ready     bool
}

// Index is a handle to one named index.
type Index interface {
	// Upsert writes records, replacing any record with the same id. It
	// returns the number of records the backend acknowledged.
	Upsert(ctx context.Context, records []models.VectorRecord) (int, error)

	// Query returns up to topK matches ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
}

// Admin manages indexes on a backend.
type Admin interface {
	ListIndexes(ctx context.Context) ([]string, error)
	DescribeIndex(ctx context.Context, name string) (*Description, error)
	CreateIndex(ctx context.Context, spec Spec) error
	DeleteIndex(ctx context.Context, name string) error
	Index(ctx context.Context, name string) (Index, error)
}
