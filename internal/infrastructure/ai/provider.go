package ai

import (
	"fmt"

	"github.com/healthharmony/assistant/internal/infrastructure/ai/gemini"
	"github.com/healthharmony/assistant/internal/infrastructure/ai/ollama"
	"github.com/healthharmony/assistant/internal/infrastructure/ai/openai"
	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"go.uber.org/zap"
)

// NewProvider builds the model provider named by cfg.Provider
func NewProvider(cfg config.AIConfig, tracing *monitoring.TracingProvider, logger *zap.Logger) (outbound.ModelProvider, error) {
	switch cfg.Provider {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}, tracing, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.Timeout,
		}, tracing, logger), nil
	case "gemini":
		client, err := gemini.NewClient(gemini.Config{
			APIKey:  cfg.GeminiKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Timeout: cfg.Timeout,
		}, tracing, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
