// Package app builds the service graph from a configuration: provider
// clients, the provisioned vector index and the logging middleware.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mini-rag/internal/config"
	"mini-rag/internal/embedding"
	"mini-rag/internal/llm"
	"mini-rag/internal/processor"
	"mini-rag/internal/rag"
	"mini-rag/internal/rerank"
	"mini-rag/internal/vectorindex"
	"mini-rag/internal/vectorindex/memory"
	"mini-rag/internal/vectorindex/pinecone"
	"mini-rag/internal/vectorindex/postgres"
)

// Option adjusts the service options derived from the configuration.
type Option func(*rag.Options)

// WithProgress replaces the default embedding progress logger.
func WithProgress(fn embedding.ProgressFunc) Option {
	return func(o *rag.Options) {
		o.Progress = fn
	}
}

type App struct {
	Config    *config.Config
	Service   rag.Service
	Endpoints rag.EndpointSet

	closers []func()
}

// LoadConfig loads .env files, then the YAML config at path, and validates
// the result.
func LoadConfig(path string, envFiles ...string) (*config.Config, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// New wires every client selected by cfg and provisions the vector index.
// cfg is expected to be validated.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{Config: cfg}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	generator, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	reranker, err := NewReranker(cfg)
	if err != nil {
		return nil, err
	}

	admin, closeAdmin, err := OpenAdmin(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeAdmin)

	provisioner := vectorindex.NewProvisioner(admin, log.With(zap.String("component", "provisioner")))
	provisioner.RecreateDelay = cfg.VectorStore.RecreateDelay.Duration()

	pctx, cancel := context.WithTimeout(ctx, cfg.VectorStore.Timeout.Duration()+provisioner.RecreateDelay)
	defer cancel()

	index, err := provisioner.Provision(pctx, cfg.VectorStore.Index)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to provision index %s: %w", cfg.VectorStore.Index.Name, err)
	}

	options := rag.Options{
		TopK:        cfg.Retrieval.TopK,
		TopN:        cfg.Retrieval.TopN,
		IDScope:     cfg.Retrieval.IDScope,
		Concurrency: cfg.Embedder.Concurrency,
		Progress:    ProgressLogger(log),
		Log:         log.With(zap.String("component", "pipeline")),
	}
	for _, opt := range opts {
		opt(&options)
	}

	svc, err := rag.NewService(rag.Clients{
		Processor: processor.NewPDFProcessor(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		Embedder:  embedder,
		Index:     index,
		Reranker:  reranker,
		Generator: generator,
	}, options)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = rag.LoggingMiddleware(log)(svc)
	a.Endpoints = rag.MakeEndpoints(a.Service)

	log.Info("service ready",
		zap.String("embedder", embedder.ModelName()),
		zap.String("generator", generator.ModelName()),
		zap.String("reranker", reranker.ModelName()),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.String("index", cfg.VectorStore.Index.Name),
	)

	return a, nil
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func NewEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	ec := cfg.Embedder

	switch ec.Provider {
	case config.ProviderGemini:
		return embedding.NewGeminiEmbedder(embedding.GeminiConfig{
			APIKey:     cfg.Credentials.GoogleAPIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimension,
			Timeout:    ec.Timeout.Duration(),
		})

	case config.ProviderOllama:
		e, err := embedding.NewOllamaEmbedder(ec.OllamaHost, ec.Model, ec.Dimension)
		if err != nil {
			return nil, err
		}
		e.Timeout = ec.Timeout.Duration()
		return e, nil

	case config.ProviderHash:
		return embedding.NewHashEmbedder(ec.Dimension), nil

	default:
		return nil, fmt.Errorf("unknown embedder provider %q", ec.Provider)
	}
}

func NewGenerator(cfg *config.Config) (llm.Generator, error) {
	gc := cfg.Generator

	switch gc.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiLLM(llm.GeminiConfig{
			APIKey:  cfg.Credentials.GoogleAPIKey,
			BaseURL: gc.BaseURL,
			Model:   gc.Model,
			Timeout: gc.Timeout.Duration(),
		})

	case config.ProviderOllama:
		return llm.NewOllamaLLM(gc.OllamaHost, gc.Model)

	default:
		return nil, fmt.Errorf("unknown generator provider %q", gc.Provider)
	}
}

func NewReranker(cfg *config.Config) (rerank.Reranker, error) {
	rc := cfg.Reranker

	switch rc.Provider {
	case config.ProviderCohere:
		return rerank.NewCohereReranker(rerank.CohereConfig{
			APIKey:  cfg.Credentials.CohereAPIKey,
			BaseURL: rc.BaseURL,
			Model:   rc.Model,
			Timeout: rc.Timeout.Duration(),
		})

	case config.ProviderNone:
		return rerank.Passthrough{}, nil

	default:
		return nil, fmt.Errorf("unknown reranker provider %q", rc.Provider)
	}
}

// OpenAdmin connects to the configured vector store. The returned func
// releases the connection.
func OpenAdmin(ctx context.Context, cfg *config.Config) (vectorindex.Admin, func(), error) {
	vs := cfg.VectorStore

	switch vs.Provider {
	case config.ProviderPinecone:
		client, err := pinecone.NewClient(pinecone.Config{
			APIKey:     cfg.Credentials.PineconeAPIKey,
			ControlURL: vs.Pinecone.ControlURL,
			APIVersion: vs.Pinecone.APIVersion,
			Namespace:  vs.Pinecone.Namespace,
			Timeout:    vs.Timeout.Duration(),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil

	case config.ProviderPostgres:
		db, err := postgres.NewDB(ctx, vs.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		db.Prefix = vs.Postgres.TablePrefix
		return db, db.Close, nil

	case config.ProviderMemory:
		admin, err := memory.NewAdmin(memory.Config{
			Persistent: vs.Memory.Persistent,
			Path:       vs.Memory.Path,
		})
		if err != nil {
			return nil, nil, err
		}
		return admin, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown vector store provider %q", vs.Provider)
	}
}

// ProgressLogger logs embedding progress in steps of roughly ten percent.
func ProgressLogger(log *zap.Logger) embedding.ProgressFunc {
	return func(processed, total int) {
		step := max(total/10, 1)
		if processed%step != 0 && processed != total {
			return
		}

		log.Info("embedding progress",
			zap.Int("processed", processed),
			zap.Int("total", total),
		)
	}
}
