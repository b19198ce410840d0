package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{APIKey: "g-key", BaseURL: srv.URL, Model: "gemini-test"}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestGenerate(t *testing.T) {
	var got GenerateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":40,"candidatesTokenCount":5}
		}`))
	})

	resp, err := client.Generate(context.Background(), outbound.ModelRequest{
		System:         "sys",
		Prompt:         "check",
		Schema:         `{"a": number}`,
		Images:         []assessment.Photo{{MIMEType: "image/webp", Data: []byte("img")}},
		SafetySettings: []outbound.SafetySetting{{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"}},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Text)
	assert.Equal(t, "gemini-test", resp.Model)
	assert.Equal(t, 40, resp.PromptTokens)

	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMIMEType)
	require.NotNil(t, got.SystemInstruction)
	assert.Contains(t, got.SystemInstruction.Parts[0].Text, `{"a": number}`)
	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, "image/webp", got.Contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, "aW1n", got.Contents[0].Parts[1].InlineData.Data)
	require.Len(t, got.SafetySettings, 1)
	assert.Equal(t, "BLOCK_ONLY_HIGH", got.SafetySettings[0].Threshold)
}

func TestGenerate_Blocked(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"prompt blocked", `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{"candidate blocked", `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Generate(context.Background(), outbound.ModelRequest{Prompt: "p"})

			assert.ErrorIs(t, err, ErrBlocked)
		})
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.Generate(context.Background(), outbound.ModelRequest{Prompt: "p"})

	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
	})

	assert.Error(t, client.HealthCheck(context.Background()))
}
