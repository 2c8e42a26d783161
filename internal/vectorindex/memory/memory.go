// Package memory is an in-process vector index backed by chromem-go. It is
// used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v3"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

var (
	_ vectorindex.Admin = (*Admin)(nil)
	_ vectorindex.Index = (*Index)(nil)
)

const specsFile = "indexes.yaml"

var errNoEmbeddingFunc = errors.New("memory index stores precomputed vectors only")

// Config selects between a pure in-memory store and one persisted to Path.
type Config struct {
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
}

// Admin manages chromem collections, one per index name. chromem keeps
// collection metadata private, so the index specs are tracked here and,
// for a persistent store, written next to the collections.
type Admin struct {
	db   *chromem.DB
	path string

	mu    sync.RWMutex
	specs map[string]vectorindex.Spec
}

// NewAdmin opens the store described by cfg
func NewAdmin(cfg Config) (*Admin, error) {
	a := &Admin{specs: make(map[string]vectorindex.Spec)}

	if !cfg.Persistent {
		a.db = chromem.NewDB()
		return a, nil
	}

	if cfg.Path == "" {
		cfg.Path = "./chromem-go"
	}

	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	a.db = db
	a.path = cfg.Path

	if err := a.loadSpecs(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Admin) ListIndexes(ctx context.Context) ([]string, error) {
	collections := a.db.ListCollections()

	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (a *Admin) DescribeIndex(ctx context.Context, name string) (*vectorindex.Description, error) {
	if a.db.GetCollection(name, noEmbedding) == nil {
		return nil, fmt.Errorf("%w: %s", vectorindex.ErrIndexNotFound, name)
	}

	a.mu.RLock()
	spec := a.specs[name]
	a.mu.RUnlock()

	return &vectorindex.Description{
		Name:      name,
		Dimension: spec.Dimension,
		Metric:    vectorindex.MetricCosine,
		Host:      "memory",
		Ready:     true,
	}, nil
}

// CreateIndex creates a collection. Only cosine similarity is supported.
func (a *Admin) CreateIndex(ctx context.Context, spec vectorindex.Spec) error {
	if spec.Metric != "" && spec.Metric != vectorindex.MetricCosine {
		return fmt.Errorf("memory index supports cosine only, got %s", spec.Metric)
	}

	metadata := map[string]string{
		"dimension": strconv.Itoa(spec.Dimension),
	}
	if _, err := a.db.CreateCollection(spec.Name, metadata, noEmbedding); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.specs[spec.Name] = spec
	return a.saveSpecs()
}

func (a *Admin) DeleteIndex(ctx context.Context, name string) error {
	if err := a.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.specs, name)
	return a.saveSpecs()
}

func (a *Admin) Index(ctx context.Context, name string) (vectorindex.Index, error) {
	c := a.db.GetCollection(name, noEmbedding)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", vectorindex.ErrIndexNotFound, name)
	}

	a.mu.RLock()
	spec := a.specs[name]
	a.mu.RUnlock()

	return &Index{collection: c, dimension: spec.Dimension}, nil
}

func (a *Admin) loadSpecs() error {
	data, err := os.ReadFile(filepath.Join(a.path, specsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index specs: %w", err)
	}

	var specs []vectorindex.Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("failed to decode index specs: %w", err)
	}

	for _, spec := range specs {
		a.specs[spec.Name] = spec
	}
	return nil
}

// saveSpecs must be called with mu held.
func (a *Admin) saveSpecs() error {
	if a.path == "" {
		return nil
	}

	specs := make([]vectorindex.Spec, 0, len(a.specs))
	for _, spec := range a.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	data, err := yaml.Marshal(specs)
	if err != nil {
		return fmt.Errorf("failed to encode index specs: %w", err)
	}

	if err := os.WriteFile(filepath.Join(a.path, specsFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write index specs: %w", err)
	}
	return nil
}

// Index is one chromem collection.
type Index struct {
	collection *chromem.Collection
	dimension  int
}

// Upsert adds the records. chromem replaces documents with the same id.
func (idx *Index) Upsert(ctx context.Context, records []models.VectorRecord) (int, error) {
	for _, r := range records {
		if idx.dimension > 0 && len(r.Values) != idx.dimension {
			return 0, fmt.Errorf("%w: record %s has %d values, index has %d",
				vectorindex.ErrDimensionMismatch, r.ID, len(r.Values), idx.dimension)
		}
	}

	for i, r := range records {
		doc := chromem.Document{
			ID: r.ID,
			Metadata: map[string]string{
				"source":   r.Metadata.Source,
				"chunk_id": strconv.Itoa(r.Metadata.ChunkID),
			},
			Embedding: r.Values,
			Content:   r.Metadata.Text,
		}

		if err := idx.collection.AddDocument(ctx, doc); err != nil {
			return i, fmt.Errorf("failed to add document %s: %w", r.ID, err)
		}
	}

	return len(records), nil
}

// Query returns the topK nearest documents. topK is clamped to the
// collection size; an empty collection yields no matches.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	if idx.dimension > 0 && len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d",
			vectorindex.ErrDimensionMismatch, len(vector), idx.dimension)
	}

	if count := idx.collection.Count(); topK > count {
		topK = count
	}
	if topK <= 0 {
		return []models.Match{}, nil
	}

	results, err := idx.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, result := range results {
		chunkID, _ := strconv.Atoi(result.Metadata["chunk_id"])

		matches = append(matches, models.Match{
			ID:    result.ID,
			Score: result.Similarity,
			Metadata: models.Chunk{
				Text:    result.Content,
				Source:  result.Metadata["source"],
				ChunkID: chunkID,
			},
		})
	}

	return matches, nil
}

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}
