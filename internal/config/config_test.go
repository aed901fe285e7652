package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"review-rag-be/pkg/rag/ragerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"LLM_PROVIDER", "LLM_MODEL", "LLM_TEMPERATURE", "COLLECTION_NAME", "DATA_PATH", "INGEST_BATCH_SIZE", "HISTORY_STORE", "LLM_TIMEOUT", "EMBEDDING_MODEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := FromEnv()
	assert.Equal(t, "groq", cfg.Ai.LLMProvider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Ai.LLMModel)
	assert.Equal(t, 0.5, cfg.Ai.Temperature)
	assert.Equal(t, 60*time.Second, cfg.Ai.Timeout)
	assert.Equal(t, "BAAI/bge-base-en-v1.5", cfg.Ai.EmbeddingModel)
	assert.Equal(t, "e_commerce_database", cfg.VectorStore.Collection)
	assert.Equal(t, "data/product_reviews.csv", cfg.Ingest.DataPath)
	assert.Equal(t, 32, cfg.Ingest.BatchSize)
	assert.Equal(t, ProviderMemory, cfg.History.Store)
}

func TestParsing(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "90")
	t.Setenv("HISTORY_TTL", "2h")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("INGEST_ON_START", "true")
	t.Setenv("INGEST_BATCH_SIZE", "not-a-number")
	t.Setenv("VECTOR_STORE_PROVIDER", "QDRANT")

	cfg := FromEnv()
	assert.Equal(t, 90*time.Second, cfg.Ai.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.History.TTL)
	assert.Equal(t, 0.2, cfg.Ai.Temperature)
	assert.True(t, cfg.Ingest.OnStart)
	assert.Equal(t, 32, cfg.Ingest.BatchSize)
	assert.Equal(t, ProviderQdrant, cfg.VectorStore.Provider)
}

func validConfig() *Config {
	return &Config{
		VectorStore: VectorStoreConfig{Provider: ProviderMemory, Collection: "e_commerce_database"},
		Ai: AIConfig{
			EmbeddingProvider: "ollama",
			LLMProvider:       "groq",
			GroqAPIKey:        "gsk_test",
			Timeout:           time.Minute,
		},
		Ingest:  IngestConfig{BatchSize: 32},
		History: HistoryConfig{Store: ProviderMemory},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"groq without key", func(c *Config) { c.Ai.GroqAPIKey = "" }, "GROQ_API_KEY"},
		{"unknown llm", func(c *Config) { c.Ai.LLMProvider = "openai" }, "LLM_PROVIDER"},
		{"jina without key", func(c *Config) { c.Ai.EmbeddingProvider = "jina" }, "JINA_API_KEY"},
		{"qdrant without endpoint", func(c *Config) { c.VectorStore.Provider = ProviderQdrant }, "VECTOR_STORE_ENDPOINT"},
		{"pgvector without dsn", func(c *Config) { c.VectorStore.Provider = ProviderPgvector }, "DB_CONNECTION_STRING"},
		{"redis history without url", func(c *Config) { c.History.Store = ProviderRedis }, "REDIS_URL"},
		{"events without nats", func(c *Config) { c.App.EventsEnabled = true }, "NATS_URL"},
		{"zero batch", func(c *Config) { c.Ingest.BatchSize = 0 }, "INGEST_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ragerr.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPgvectorDSNPrefersEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Connection = "postgres://db"
	assert.Equal(t, "postgres://db", cfg.PgvectorDSN())
	cfg.VectorStore.Endpoint = "postgres://vec"
	assert.Equal(t, "postgres://vec", cfg.PgvectorDSN())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("COLLECTION_NAME=from_file_collection\n"), 0o644))
	t.Setenv("COLLECTION_NAME", "")
	os.Unsetenv("COLLECTION_NAME")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file_collection", cfg.VectorStore.Collection)
	os.Unsetenv("COLLECTION_NAME")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, errors.Is(err, ragerr.ErrConfiguration))
}
