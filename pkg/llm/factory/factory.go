package factory

import (
	"fmt"
	"time"

	"review-rag-be/pkg/llm"
	"review-rag-be/pkg/llm/ollama"
	"review-rag-be/pkg/llm/openaicompat"
)

type Config struct {
	Provider      string
	Model         string
	APIKey        string
	OllamaBaseURL string
	Timeout       time.Duration
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "groq", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("groq provider requires an api key")
		}
		return openaicompat.NewGroqProvider(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "huggingface":
		return openaicompat.NewHuggingFaceProvider(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "ollama":
		return ollama.NewOllamaProvider(cfg.OllamaBaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
