package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

// ErrMissingCredential is returned when a selected provider has no API key.
var ErrMissingCredential = errors.New("missing credential")

// Environment variables holding credentials.
const (
	EnvPineconeAPIKey = "PINECONE_API_KEY"
	EnvGoogleAPIKey   = "GOOGLE_API_KEY"
	EnvCohereAPIKey   = "COHERE_API_KEY"
	EnvDatabaseURL    = "DATABASE_URL"
)

// Providers.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderHash     = "hash"
	ProviderCohere   = "cohere"
	ProviderNone     = "none"
	ProviderPinecone = "pinecone"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type EmbedderConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Dimension   int      `yaml:"dimension"`
	Concurrency int      `yaml:"concurrency"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	OllamaHost  string   `yaml:"ollama_host,omitempty"`
	Timeout     Duration `yaml:"timeout"`
}

type GeneratorConfig struct {
	Provider   string   `yaml:"provider"`
	Model      string   `yaml:"model"`
	BaseURL    string   `yaml:"base_url,omitempty"`
	OllamaHost string   `yaml:"ollama_host,omitempty"`
	Timeout    Duration `yaml:"timeout"`
}

type RerankerConfig struct {
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
	BaseURL  string   `yaml:"base_url,omitempty"`
	Timeout  Duration `yaml:"timeout"`
}

type PineconeConfig struct {
	ControlURL string `yaml:"control_url,omitempty"`
	APIVersion string `yaml:"api_version,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
}

type PostgresConfig struct {
	URL         string `yaml:"url,omitempty"`
	TablePrefix string `yaml:"table_prefix"`
}

type MemoryConfig struct {
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path,omitempty"`
}

type VectorStoreConfig struct {
	Provider      string           `yaml:"provider"`
	Index         vectorindex.Spec `yaml:"index"`
	RecreateDelay Duration         `yaml:"recreate_delay"`
	Timeout       Duration         `yaml:"timeout"`
	Pinecone      PineconeConfig   `yaml:"pinecone"`
	Postgres      PostgresConfig   `yaml:"postgres"`
	Memory        MemoryConfig     `yaml:"memory"`
}

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK    int            `yaml:"top_k"`
	TopN    int            `yaml:"top_n"`
	IDScope models.IDScope `yaml:"id_scope"`
}

type HTTPConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Credentials are read from the environment only.
type Credentials struct {
	PineconeAPIKey string `yaml:"-"`
	GoogleAPIKey   string `yaml:"-"`
	CohereAPIKey   string `yaml:"-"`
}

// Config is the root application configuration.
type Config struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Reranker    RerankerConfig    `yaml:"reranker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	HTTP        HTTPConfig        `yaml:"http"`

	Credentials Credentials `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML config from path. A missing file yields the defaults.
// Credentials are taken from the environment in both cases.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	cfg.Credentials = CredentialsFromEnv()

	if cfg.VectorStore.Postgres.URL == "" {
		cfg.VectorStore.Postgres.URL = os.Getenv(EnvDatabaseURL)
	}

	return cfg, nil
}

// LoadEnv loads variables from .env style files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		PineconeAPIKey: os.Getenv(EnvPineconeAPIKey),
		GoogleAPIKey:   os.Getenv(EnvGoogleAPIKey),
		CohereAPIKey:   os.Getenv(EnvCohereAPIKey),
	}
}

// Validate checks provider names, numeric ranges and that every selected
// remote provider has its credential.
func (c *Config) Validate() error {
	var errs []error

	switch c.Embedder.Provider {
	case ProviderGemini:
		if c.Credentials.GoogleAPIKey == "" {
			errs = append(errs, fmt.Errorf("%w: %s (embedder)", ErrMissingCredential, EnvGoogleAPIKey))
		}
	case ProviderOllama, ProviderHash:
	default:
		errs = append(errs, fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider))
	}

	switch c.Generator.Provider {
	case ProviderGemini:
		if c.Credentials.GoogleAPIKey == "" {
			errs = append(errs, fmt.Errorf("%w: %s (generator)", ErrMissingCredential, EnvGoogleAPIKey))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown generator provider %q", c.Generator.Provider))
	}

	switch c.Reranker.Provider {
	case ProviderCohere:
		if c.Credentials.CohereAPIKey == "" {
			errs = append(errs, fmt.Errorf("%w: %s (reranker)", ErrMissingCredential, EnvCohereAPIKey))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown reranker provider %q", c.Reranker.Provider))
	}

	switch c.VectorStore.Provider {
	case ProviderPinecone:
		if c.Credentials.PineconeAPIKey == "" {
			errs = append(errs, fmt.Errorf("%w: %s (vector store)", ErrMissingCredential, EnvPineconeAPIKey))
		}
	case ProviderPostgres:
		if c.VectorStore.Postgres.URL == "" {
			errs = append(errs, fmt.Errorf("%w: %s (vector store)", ErrMissingCredential, EnvDatabaseURL))
		}
	case ProviderMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector store provider %q", c.VectorStore.Provider))
	}

	if c.Embedder.Dimension != c.VectorStore.Index.Dimension {
		errs = append(errs, fmt.Errorf("embedder dimension %d differs from index dimension %d",
			c.Embedder.Dimension, c.VectorStore.Index.Dimension))
	}

	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			c.Chunker.ChunkOverlap, c.Chunker.ChunkSize))
	}

	switch c.Retrieval.IDScope {
	case models.IDScopeChunk, models.IDScopeDocument:
	default:
		errs = append(errs, fmt.Errorf("unknown id scope %q", c.Retrieval.IDScope))
	}

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = ProviderGemini
	}
	if cfg.Embedder.Model == "" {
		switch cfg.Embedder.Provider {
		case ProviderOllama:
			cfg.Embedder.Model = "nomic-embed-text"
		case ProviderHash:
			cfg.Embedder.Model = "hash"
		default:
			cfg.Embedder.Model = "text-embedding-004"
		}
	}
	if cfg.Embedder.Dimension <= 0 {
		cfg.Embedder.Dimension = 768
	}
	if cfg.Embedder.Concurrency <= 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = Duration(60 * time.Second)
	}

	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = ProviderGemini
	}
	if cfg.Generator.Model == "" {
		switch cfg.Generator.Provider {
		case ProviderOllama:
			cfg.Generator.Model = "llama3.2"
		default:
			cfg.Generator.Model = "gemini-2.5-flash"
		}
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = Duration(120 * time.Second)
	}

	if cfg.Reranker.Provider == "" {
		cfg.Reranker.Provider = ProviderCohere
	}
	if cfg.Reranker.Model == "" {
		cfg.Reranker.Model = "rerank-english-v3.0"
	}
	if cfg.Reranker.Timeout == 0 {
		cfg.Reranker.Timeout = Duration(60 * time.Second)
	}

	vs := &cfg.VectorStore
	if vs.Provider == "" {
		vs.Provider = ProviderPinecone
	}
	if vs.Index.Name == "" {
		vs.Index.Name = "gemini-final-index"
	}
	if vs.Index.Dimension <= 0 {
		vs.Index.Dimension = cfg.Embedder.Dimension
	}
	if vs.Index.Metric == "" {
		vs.Index.Metric = vectorindex.MetricCosine
	}
	if vs.Index.Cloud == "" {
		vs.Index.Cloud = "aws"
	}
	if vs.Index.Region == "" {
		vs.Index.Region = "us-east-1"
	}
	if vs.RecreateDelay == 0 {
		vs.RecreateDelay = Duration(vectorindex.DefaultRecreateDelay)
	}
	if vs.Timeout == 0 {
		vs.Timeout = Duration(60 * time.Second)
	}
	if vs.Postgres.TablePrefix == "" {
		vs.Postgres.TablePrefix = "vectors_"
	}
	if vs.Memory.Persistent && vs.Memory.Path == "" {
		vs.Memory.Path = "./chromem-go"
	}

	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker.ChunkSize = 600
	}
	if cfg.Chunker.ChunkOverlap < 0 {
		cfg.Chunker.ChunkOverlap = 0
	} else if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 50
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.TopN <= 0 {
		cfg.Retrieval.TopN = 3
	}
	if cfg.Retrieval.IDScope == "" {
		cfg.Retrieval.IDScope = models.IDScopeDocument
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 32
	}
}
