package bootstrap

import (
	"context"
	"fmt"
	"log"

	"review-rag-be/internal/config"
	"review-rag-be/internal/pkg/logger"
	"review-rag-be/pkg/database"
	"review-rag-be/pkg/embedding"
	"review-rag-be/pkg/embedding/jina"
	"review-rag-be/pkg/llm"
	"review-rag-be/pkg/llm/factory"
	"review-rag-be/pkg/rag/chain"
	"review-rag-be/pkg/rag/history"
	boltHistory "review-rag-be/pkg/rag/history/bolt"
	memoryHistory "review-rag-be/pkg/rag/history/memory"
	redisHistory "review-rag-be/pkg/rag/history/redis"
	"review-rag-be/pkg/rag/ingestion"
	"review-rag-be/pkg/rag/ragerr"
	"review-rag-be/pkg/vectorstore"
	"review-rag-be/pkg/vectorstore/memory"
	"review-rag-be/pkg/vectorstore/pgvectorstore"
	"review-rag-be/pkg/vectorstore/qdrant"

	"github.com/redis/go-redis/v9"
)

// Core is everything that answers questions and loads reviews, without any
// transport. The REST server and the CLI both build on it.
type Core struct {
	Config    *config.Config
	Logger    logger.ILogger
	Store     *vectorstore.EmbeddingStore
	Ingestion *ingestion.Service
	History   history.HistoryStore
	Chain     *chain.Chain
	Redis     *redis.Client

	closers []func() error
}

type CoreOption func(*coreOptions)

type coreOptions struct {
	ingestionOpts []ingestion.Option
}

// WithIngestionOptions forwards options (progress bars, hooks) to the ingestion service.
func WithIngestionOptions(opts ...ingestion.Option) CoreOption {
	return func(o *coreOptions) { o.ingestionOpts = append(o.ingestionOpts, opts...) }
}

func NewCore(cfg *config.Config, log logger.ILogger, opts ...CoreOption) (*Core, error) {
	var o coreOptions
	for _, opt := range opts {
		opt(&o)
	}

	core := &Core{Config: cfg, Logger: log}

	embedder, err := newEmbedder(cfg.Ai)
	if err != nil {
		return nil, err
	}
	log.Info("BOOT", "Embedding provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    cfg.Ai.EmbeddingModel,
	})

	model, err := newLLM(cfg.Ai)
	if err != nil {
		return nil, err
	}
	log.Info("BOOT", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	index, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}
	core.closers = append(core.closers, index.Close)
	core.Store = vectorstore.New(embedder, index, vectorstore.WithBatchSize(cfg.Ingest.BatchSize))
	log.Info("BOOT", "Vector store ready", map[string]interface{}{
		"provider":   cfg.VectorStore.Provider,
		"collection": cfg.VectorStore.Collection,
		"namespace":  cfg.VectorStore.Namespace,
	})

	if cfg.App.RedisURL != "" {
		core.Redis = newRedis(cfg.App.RedisURL)
		core.closers = append(core.closers, core.Redis.Close)
	}

	core.History, err = core.newHistory()
	if err != nil {
		core.Close()
		return nil, err
	}

	ingestOpts := append([]ingestion.Option{ingestion.WithLogger(log)}, o.ingestionOpts...)
	core.Ingestion = ingestion.NewService(core.Store, cfg.Ingest.DataPath, ingestOpts...)

	core.Chain = chain.New(model, core.Store, core.History,
		chain.WithTemperature(cfg.Ai.Temperature),
		chain.WithMaxTokens(cfg.Ai.MaxTokens),
		chain.WithStageTimeout(cfg.Ai.Timeout),
		chain.WithLogger(log),
	)

	return core, nil
}

// Close releases the vector store, history store and Redis client.
func (c *Core) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

func newEmbedder(cfg config.AIConfig) (embedding.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "huggingface":
		return embedding.NewHuggingFaceProvider(cfg.HuggingFaceAPIKey, cfg.EmbeddingModel, ""), nil
	case "ollama":
		return embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.EmbeddingModel), nil
	case "jina":
		return jina.NewJinaProvider(cfg.JinaAPIKey, cfg.EmbeddingModel, ""), nil
	}
	return nil, ragerr.Errorf(ragerr.KindConfiguration, "bootstrap.newEmbedder", "unsupported EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider)
}

func newLLM(cfg config.AIConfig) (llm.LLMProvider, error) {
	key := cfg.GroqAPIKey
	if cfg.LLMProvider == "huggingface" {
		key = cfg.HuggingFaceAPIKey
	}
	p, err := factory.NewLLMProvider(factory.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		APIKey:        key,
		OllamaBaseURL: cfg.OllamaBaseURL,
		Timeout:       cfg.Timeout,
	})
	if err != nil {
		return nil, ragerr.New(ragerr.KindConfiguration, "bootstrap.newLLM", err)
	}
	return p, nil
}

func newIndex(cfg *config.Config) (vectorstore.Index, error) {
	vs := cfg.VectorStore
	switch vs.Provider {
	case config.ProviderMemory:
		return memory.NewIndex(), nil
	case config.ProviderPgvector:
		db, err := database.NewGormDBFromDSN(cfg.PgvectorDSN(), cfg.Database.Debug)
		if err != nil {
			return nil, ragerr.New(ragerr.KindConnection, "bootstrap.newIndex", fmt.Errorf("connect postgres: %w", err))
		}
		return pgvectorstore.NewIndex(db, vs.Namespace, vs.Collection), nil
	case config.ProviderQdrant:
		ix, err := qdrant.NewIndex(qdrant.Config{
			URL:        vs.Endpoint,
			APIKey:     vs.Token,
			Namespace:  vs.Namespace,
			Collection: vs.Collection,
		})
		if err != nil {
			return nil, ragerr.Classify(ragerr.KindConnection, "bootstrap.newIndex", err)
		}
		return ix, nil
	}
	return nil, ragerr.Errorf(ragerr.KindConfiguration, "bootstrap.newIndex", "unsupported VECTOR_STORE_PROVIDER %q", vs.Provider)
}

func newRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}

func (c *Core) newHistory() (history.HistoryStore, error) {
	cfg := c.Config.History
	switch cfg.Store {
	case config.ProviderMemory:
		return memoryHistory.NewStore(cfg.TTL), nil
	case config.ProviderRedis:
		if c.Redis == nil {
			return nil, ragerr.Errorf(ragerr.KindConfiguration, "bootstrap.newHistory", "REDIS_URL is required for redis history")
		}
		return redisHistory.NewStore(c.Redis, "", cfg.TTL), nil
	case config.ProviderBolt:
		s, err := boltHistory.NewStore(cfg.BoltPath)
		if err != nil {
			return nil, ragerr.New(ragerr.KindConfiguration, "bootstrap.newHistory", err)
		}
		c.closers = append(c.closers, s.Close)
		return s, nil
	}
	return nil, ragerr.Errorf(ragerr.KindConfiguration, "bootstrap.newHistory", "unsupported HISTORY_STORE %q", cfg.Store)
}
