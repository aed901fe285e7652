package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"review-rag-be/pkg/rag/ragerr"

	"github.com/joho/godotenv"
)

const (
	ProviderMemory   = "memory"
	ProviderPgvector = "pgvector"
	ProviderQdrant   = "qdrant"
	ProviderRedis    = "redis"
	ProviderBolt     = "bolt"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	VectorStore VectorStoreConfig
	Ai          AIConfig
	Ingest      IngestConfig
	History     HistoryConfig
	Telemetry   TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	JwtSecret          string
	NatsURL            string
	RedisURL           string
	EventsEnabled      bool
}

type DatabaseConfig struct {
	Connection string
	Debug      bool
}

type VectorStoreConfig struct {
	Provider   string // memory | pgvector | qdrant
	Endpoint   string
	Token      string
	Namespace  string
	Collection string
}

type AIConfig struct {
	EmbeddingProvider string // huggingface | ollama | jina
	EmbeddingModel    string
	HuggingFaceAPIKey string
	JinaAPIKey        string
	OllamaBaseURL     string
	LLMProvider       string // groq | huggingface | ollama
	LLMModel          string
	GroqAPIKey        string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
}

type IngestConfig struct {
	DataPath  string
	BatchSize int
	OnStart   bool
	// LoadExisting skips the CSV load on start and serves the collection as is.
	LoadExisting bool
}

type HistoryConfig struct {
	Store    string // memory | redis | bolt
	BoltPath string
	TTL      time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads .env (when present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}
	return FromEnv()
}

// LoadFile is Load with an explicit env file; a missing file is an error.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, ragerr.New(ragerr.KindConfiguration, "config.LoadFile", err)
	}
	return FromEnv(), nil
}

// FromEnv resolves the configuration without touching any .env file.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			EventsEnabled:      getEnvAsBool("EVENTS_ENABLED", false),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Debug:      getEnvAsBool("DB_DEBUG", false),
		},
		VectorStore: VectorStoreConfig{
			Provider:   strings.ToLower(getEnv("VECTOR_STORE_PROVIDER", ProviderPgvector)),
			Endpoint:   getEnv("VECTOR_STORE_ENDPOINT", ""),
			Token:      getEnv("VECTOR_STORE_TOKEN", ""),
			Namespace:  getEnv("VECTOR_STORE_NAMESPACE", ""),
			Collection: getEnv("COLLECTION_NAME", "e_commerce_database"),
		},
		Ai: AIConfig{
			EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "huggingface")),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "BAAI/bge-base-en-v1.5"),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			JinaAPIKey:        getEnv("JINA_API_KEY", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "groq")),
			LLMModel:          getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
			GroqAPIKey:        getEnv("GROQ_API_KEY", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.5),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 512),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Ingest: IngestConfig{
			DataPath:     getEnv("DATA_PATH", "data/product_reviews.csv"),
			BatchSize:    getEnvAsInt("INGEST_BATCH_SIZE", 32),
			OnStart:      getEnvAsBool("INGEST_ON_START", false),
			LoadExisting: getEnvAsBool("INGEST_LOAD_EXISTING", true),
		},
		History: HistoryConfig{
			Store:    strings.ToLower(getEnv("HISTORY_STORE", ProviderMemory)),
			BoltPath: getEnv("HISTORY_BOLT_PATH", "data/history.db"),
			TTL:      getEnvAsDuration("HISTORY_TTL", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "review-rag-be"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate reports the first missing or unsupported value as a ConfigurationError.
func (c *Config) Validate() error {
	const op = "config.Validate"
	missing := func(key string) error {
		return ragerr.Errorf(ragerr.KindConfiguration, op, "%s is required", key)
	}
	unsupported := func(key, value string) error {
		return ragerr.Errorf(ragerr.KindConfiguration, op, "unsupported %s %q", key, value)
	}

	switch c.Ai.LLMProvider {
	case "groq":
		if c.Ai.GroqAPIKey == "" {
			return missing("GROQ_API_KEY")
		}
	case "huggingface":
		if c.Ai.HuggingFaceAPIKey == "" {
			return missing("HUGGINGFACE_API_KEY")
		}
	case "ollama":
	default:
		return unsupported("LLM_PROVIDER", c.Ai.LLMProvider)
	}

	switch c.Ai.EmbeddingProvider {
	case "huggingface":
		if c.Ai.HuggingFaceAPIKey == "" {
			return missing("HUGGINGFACE_API_KEY")
		}
	case "jina":
		if c.Ai.JinaAPIKey == "" {
			return missing("JINA_API_KEY")
		}
	case "ollama":
	default:
		return unsupported("EMBEDDING_PROVIDER", c.Ai.EmbeddingProvider)
	}

	switch c.VectorStore.Provider {
	case ProviderMemory:
	case ProviderPgvector:
		if c.Database.Connection == "" && c.VectorStore.Endpoint == "" {
			return missing("DB_CONNECTION_STRING")
		}
	case ProviderQdrant:
		if c.VectorStore.Endpoint == "" {
			return missing("VECTOR_STORE_ENDPOINT")
		}
	default:
		return unsupported("VECTOR_STORE_PROVIDER", c.VectorStore.Provider)
	}
	if c.VectorStore.Collection == "" {
		return missing("COLLECTION_NAME")
	}

	switch c.History.Store {
	case ProviderMemory:
	case ProviderRedis:
		if c.App.RedisURL == "" {
			return missing("REDIS_URL")
		}
	case ProviderBolt:
		if c.History.BoltPath == "" {
			return missing("HISTORY_BOLT_PATH")
		}
	default:
		return unsupported("HISTORY_STORE", c.History.Store)
	}

	if c.Ingest.BatchSize <= 0 {
		return ragerr.Errorf(ragerr.KindConfiguration, op, "INGEST_BATCH_SIZE must be positive")
	}
	if c.Ai.Timeout <= 0 {
		return ragerr.Errorf(ragerr.KindConfiguration, op, "LLM_TIMEOUT must be positive")
	}
	if c.App.EventsEnabled && c.App.NatsURL == "" {
		return missing("NATS_URL")
	}
	return nil
}

// PgvectorDSN is the DSN used by the pgvector store. VECTOR_STORE_ENDPOINT
// wins when both are set.
func (c *Config) PgvectorDSN() string {
	if c.VectorStore.Endpoint != "" {
		return c.VectorStore.Endpoint
	}
	return c.Database.Connection
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
