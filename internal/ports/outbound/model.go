package outbound

import (
	"context"
	"time"

	"github.com/healthharmony/assistant/internal/domain/assessment"
)

// SafetySetting maps a harm category to a blocking threshold for providers
// that support it.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// ModelRequest is one templated request to a hosted model
type ModelRequest struct {
	Flow           string
	System         string
	Prompt         string
	Images         []assessment.Photo
	Schema         string
	Temperature    float64
	MaxTokens      int
	SafetySettings []SafetySetting
}

const schemaInstruction = "Respond with a single JSON object and nothing else. Do not wrap it in markdown. The object must match this shape:\n"

// Instructions returns the system text followed by the declared output
// shape, for providers that take the shape as text
func (r ModelRequest) Instructions() string {
	if r.Schema == "" {
		return r.System
	}
	return r.System + "\n\n" + schemaInstruction + r.Schema
}

// ModelResponse is the raw text returned by the model
type ModelResponse struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// ModelProvider sends requests to a hosted model. Implementations return
// an error for any transport or provider failure and never substitute
// canned output.
type ModelProvider interface {
	Name() string
	Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error)
	HealthCheck(ctx context.Context) error
}
