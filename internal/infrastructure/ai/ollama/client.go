// Package ollama provides Ollama integration for local model inference
package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/healthharmony/assistant/internal/infrastructure/ai/aihttp"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"go.uber.org/zap"
)

const providerName = "ollama"

// Config configures the client
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements outbound.ModelProvider using the Ollama chat API
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	tracing *monitoring.TracingProvider
	logger  *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(cfg Config, tracing *monitoring.TracingProvider, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llava:7b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  aihttp.NewHTTPClient(cfg.Timeout),
		tracing: tracing,
		logger:  logger.Named("ollama-client"),
	}
}

var _ outbound.ModelProvider = (*Client)(nil)

// Ollama API structures
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ChatResponse struct {
	Model           string      `json:"model"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName
}

// Generate sends a single non-streaming chat request in JSON format
func (c *Client) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	ctx, span := c.tracing.StartAISpan(ctx, providerName, c.model, req.Flow)
	defer span.End()

	system := req.Instructions()

	user := ChatMessage{Role: "user", Content: req.Prompt}
	for _, img := range req.Images {
		user.Images = append(user.Images, img.Base64())
	}

	options := map[string]interface{}{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	reqBody := ChatRequest{
		Model:    c.model,
		Messages: []ChatMessage{{Role: "system", Content: system}, user},
		Stream:   false,
		Format:   "json",
		Options:  options,
	}

	start := time.Now()
	var chatResp ChatResponse
	if err := aihttp.Do(ctx, c.client, providerName, http.MethodPost, c.baseURL+"/api/chat", nil, reqBody, &chatResp); err != nil {
		monitoring.RecordError(ctx, err)
		return nil, err
	}

	if !chatResp.Done {
		return nil, errors.New("incomplete response from Ollama")
	}

	c.logger.Debug("Ollama chat completed",
		zap.String("flow", req.Flow),
		zap.Int("prompt_tokens", chatResp.PromptEvalCount),
		zap.Int("completion_tokens", chatResp.EvalCount),
		zap.Duration("duration", time.Since(start)))

	return &outbound.ModelResponse{
		Text:             chatResp.Message.Content,
		Provider:         providerName,
		Model:            c.model,
		PromptTokens:     chatResp.PromptEvalCount,
		CompletionTokens: chatResp.EvalCount,
		Duration:         time.Since(start),
	}, nil
}

// HealthCheck verifies the Ollama service is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	return aihttp.Do(ctx, c.client, providerName, http.MethodGet, c.baseURL+"/api/tags", nil, nil, nil)
}
