// Package gemini provides a ModelProvider for the Gemini generateContent API
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/healthharmony/assistant/internal/infrastructure/ai/aihttp"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"go.uber.org/zap"
)

const providerName = "gemini"

var (
	// ErrMissingAPIKey is returned when the client is configured without a key
	ErrMissingAPIKey = errors.New("gemini API key is not configured")
	// ErrBlocked is returned when the prompt or every candidate was blocked
	ErrBlocked = errors.New("gemini blocked the request")
)

// Config configures the client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements outbound.ModelProvider
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	tracing *monitoring.TracingProvider
	logger  *zap.Logger
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, tracing *monitoring.TracingProvider, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger.Info("Gemini client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model))

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  aihttp.NewHTTPClient(cfg.Timeout),
		tracing: tracing,
		logger:  logger.Named("gemini-client"),
	}, nil
}

var _ outbound.ModelProvider = (*Client)(nil)

// Gemini API structures
type GenerateRequest struct {
	SystemInstruction *Content                 `json:"systemInstruction,omitempty"`
	Contents          []Content                `json:"contents"`
	GenerationConfig  GenerationConfig         `json:"generationConfig"`
	SafetySettings    []outbound.SafetySetting `json:"safetySettings,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type GenerateResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  UsageMetadata   `json:"usageMetadata"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName
}

// Generate calls generateContent with a JSON response type
func (c *Client) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	ctx, span := c.tracing.StartAISpan(ctx, providerName, c.model, req.Flow)
	defer span.End()

	system := req.Instructions()

	parts := []Part{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, Part{InlineData: &InlineData{MIMEType: img.MIMEType, Data: img.Base64()}})
	}

	reqBody := GenerateRequest{
		SystemInstruction: &Content{Parts: []Part{{Text: system}}},
		Contents:          []Content{{Role: "user", Parts: parts}},
		GenerationConfig: GenerationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  req.MaxTokens,
			ResponseMIMEType: "application/json",
		},
		SafetySettings: req.SafetySettings,
	}

	start := time.Now()
	var genResp GenerateResponse
	err := aihttp.Do(ctx, c.client, providerName, http.MethodPost,
		fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model),
		map[string]string{"x-goog-api-key": c.apiKey}, reqBody, &genResp)
	if err != nil {
		monitoring.RecordError(ctx, err)
		return nil, err
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, genResp.PromptFeedback.BlockReason)
	}
	if len(genResp.Candidates) == 0 {
		return nil, errors.New("no candidates returned")
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, fmt.Errorf("%w: candidate finished with SAFETY", ErrBlocked)
	}
	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}

	c.logger.Debug("Gemini call successful",
		zap.String("flow", req.Flow),
		zap.String("finish_reason", candidate.FinishReason),
		zap.Int("prompt_tokens", genResp.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", genResp.UsageMetadata.CandidatesTokenCount))

	model := genResp.ModelVersion
	if model == "" {
		model = c.model
	}
	return &outbound.ModelResponse{
		Text:             text.String(),
		Provider:         providerName,
		Model:            model,
		PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
		CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
		Duration:         time.Since(start),
	}, nil
}

// HealthCheck fetches the configured model's metadata
func (c *Client) HealthCheck(ctx context.Context) error {
	return aihttp.Do(ctx, c.client, providerName, http.MethodGet,
		fmt.Sprintf("%s/models/%s", c.baseURL, c.model),
		map[string]string{"x-goog-api-key": c.apiKey}, nil, nil)
}
