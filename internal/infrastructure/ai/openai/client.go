// Package openai provides a ModelProvider for OpenAI-compatible chat
// completion APIs
package openai

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

const providerName = "openai"

// ErrMissingAPIKey is returned when the client is configured without a key
var ErrMissingAPIKey = errors.New("openai API key is not configured")

// Config configures the client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements outbound.ModelProvider using the chat completions API
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	tracing *monitoring.TracingProvider
	logger  *zap.Logger
}

// NewClient creates a new OpenAI client
func NewClient(cfg Config, tracing *monitoring.TracingProvider, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger.Info("OpenAI client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  aihttp.NewHTTPClient(cfg.Timeout),
		tracing: tracing,
		logger:  logger.Named("openai-client"),
	}, nil
}

var _ outbound.ModelProvider = (*Client)(nil)

// OpenAI API structures
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// Message content is either a plain string or a list of ContentPart
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatCompletionResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName
}

// Generate sends one chat completion request in JSON mode
func (c *Client) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	ctx, span := c.tracing.StartAISpan(ctx, providerName, c.model, req.Flow)
	defer span.End()

	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: req.Instructions()},
			{Role: "user", Content: userContent(req)},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	start := time.Now()
	var chatResp ChatCompletionResponse
	err := aihttp.Do(ctx, c.client, providerName, http.MethodPost, c.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, reqBody, &chatResp)
	if err != nil {
		monitoring.RecordError(ctx, err)
		return nil, err
	}

	if len(chatResp.Choices) == 0 {
		return nil, errors.New("no response choices returned")
	}
	choice := chatResp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, errors.New("model refused the request: " + choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		c.logger.Warn("Completion truncated by token limit", zap.String("flow", req.Flow))
	}

	c.logger.Debug("OpenAI API call successful",
		zap.String("flow", req.Flow),
		zap.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens),
		zap.Int("total_tokens", chatResp.Usage.TotalTokens),
	)

	model := chatResp.Model
	if model == "" {
		model = c.model
	}
	return &outbound.ModelResponse{
		Text:             choice.Message.Content,
		Provider:         providerName,
		Model:            model,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		Duration:         time.Since(start),
	}, nil
}

// HealthCheck lists models to verify credentials and reachability
func (c *Client) HealthCheck(ctx context.Context) error {
	return aihttp.Do(ctx, c.client, providerName, http.MethodGet, c.baseURL+"/models",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, nil, nil)
}

// userContent returns a plain string, or text plus image parts when photos
// are attached
func userContent(req outbound.ModelRequest) interface{} {
	if len(req.Images) == 0 {
		return req.Prompt
	}
	parts := make([]ContentPart, 0, len(req.Images)+1)
	parts = append(parts, ContentPart{Type: "text", Text: req.Prompt})
	for _, img := range req.Images {
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: img.DataURI()}})
	}
	return parts
}
