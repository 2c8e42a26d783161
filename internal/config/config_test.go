package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvPineconeAPIKey, EnvGoogleAPIKey, EnvCohereAPIKey, EnvDatabaseURL} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearCredentials(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-004", cfg.Embedder.Model)
	assert.Equal(t, 768, cfg.Embedder.Dimension)
	assert.Equal(t, 4, cfg.Embedder.Concurrency)
	assert.Equal(t, "gemini-2.5-flash", cfg.Generator.Model)
	assert.Equal(t, "rerank-english-v3.0", cfg.Reranker.Model)
	assert.Equal(t, vectorindex.Spec{
		Name:      "gemini-final-index",
		Dimension: 768,
		Metric:    vectorindex.MetricCosine,
		Cloud:     "aws",
		Region:    "us-east-1",
	}, cfg.VectorStore.Index)
	assert.Equal(t, 15*time.Second, cfg.VectorStore.RecreateDelay.Duration())
	assert.Equal(t, 600, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
	assert.Equal(t, models.IDScopeDocument, cfg.Retrieval.IDScope)
}

func TestLoad_File(t *testing.T) {
	clearCredentials(t)
	t.Setenv(EnvDatabaseURL, "postgres://localhost/rag")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  provider: ollama
  dimension: 384
generator:
  provider: ollama
reranker:
  provider: none
vector_store:
  provider: postgres
  index:
    name: golf
  recreate_delay: 2s
chunker:
  chunk_size: 300
  chunk_overlap: -1
retrieval:
  id_scope: chunk
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, "llama3.2", cfg.Generator.Model)
	assert.Equal(t, 384, cfg.VectorStore.Index.Dimension)
	assert.Equal(t, "golf", cfg.VectorStore.Index.Name)
	assert.Equal(t, 2*time.Second, cfg.VectorStore.RecreateDelay.Duration())
	assert.Equal(t, "postgres://localhost/rag", cfg.VectorStore.Postgres.URL)
	assert.Equal(t, 0, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, models.IDScopeChunk, cfg.Retrieval.IDScope)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [unclosed"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  recreate_delay: soon\n"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestValidate_MissingCredentials(t *testing.T) {
	clearCredentials(t)

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()

	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), EnvGoogleAPIKey)
	assert.Contains(t, err.Error(), EnvCohereAPIKey)
	assert.Contains(t, err.Error(), EnvPineconeAPIKey)
}

func TestValidate_AllCredentials(t *testing.T) {
	clearCredentials(t)
	t.Setenv(EnvGoogleAPIKey, "g")
	t.Setenv(EnvCohereAPIKey, "c")
	t.Setenv(EnvPineconeAPIKey, "p")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate())
}

func TestValidate_Offline(t *testing.T) {
	clearCredentials(t)

	cfg := Default()
	cfg.Embedder.Provider = ProviderHash
	cfg.Generator.Provider = ProviderOllama
	cfg.Reranker.Provider = ProviderNone
	cfg.VectorStore.Provider = ProviderMemory

	assert.NoError(t, cfg.Validate())
}

func TestValidate_Inconsistent(t *testing.T) {
	cfg := Default()
	cfg.Credentials = Credentials{PineconeAPIKey: "p", GoogleAPIKey: "g", CohereAPIKey: "c"}
	cfg.VectorStore.Index.Dimension = 1536
	cfg.Chunker.ChunkOverlap = 700
	cfg.Retrieval.IDScope = "global"
	cfg.Embedder.Provider = "openai"

	err := cfg.Validate()

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "1536")
	assert.Contains(t, err.Error(), "chunk overlap")
	assert.Contains(t, err.Error(), "global")
	assert.Contains(t, err.Error(), "openai")
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1m30s\n", string(out))
}

func TestLoadEnv(t *testing.T) {
	clearCredentials(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("COHERE_API_KEY=from-dotenv\n"), 0o644))
	os.Unsetenv(EnvCohereAPIKey)

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "from-dotenv", os.Getenv(EnvCohereAPIKey))
}
