package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/healthharmony/assistant/internal/infrastructure/ai/ollama"
	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/pkg/healthcheck"
	"github.com/healthharmony/assistant/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHealthChecker_CachesWithinTTL(t *testing.T) {
	provider := &testutils.MockModelProvider{}
	provider.On("HealthCheck", mock.Anything).Return(nil).Once()

	checker := NewHealthChecker(provider, time.Minute, zaptest.NewLogger(t))
	now := time.Now()
	checker.now = func() time.Time { return now }

	first := checker.CheckHealth(context.Background())
	second := checker.CheckHealth(context.Background())

	assert.True(t, first.Healthy)
	assert.Equal(t, "healthy", second.Overall)
	assert.Equal(t, "mock", second.Provider)
	provider.AssertNumberOfCalls(t, "HealthCheck", 1)
}

func TestHealthChecker_ReprobesAfterTTL(t *testing.T) {
	provider := &testutils.MockModelProvider{}
	provider.On("HealthCheck", mock.Anything).Return(nil).Once()
	provider.On("HealthCheck", mock.Anything).Return(errors.New("403")).Once()

	checker := NewHealthChecker(provider, time.Minute, zaptest.NewLogger(t))
	now := time.Now()
	checker.now = func() time.Time { return now }

	assert.True(t, checker.IsHealthy(context.Background()))

	now = now.Add(2 * time.Minute)
	status := checker.CheckHealth(context.Background())

	assert.False(t, status.Healthy)
	assert.Equal(t, "critical", status.Overall)
	assert.Equal(t, "403", status.Detail)
}

func TestNewProvider(t *testing.T) {
	logger := zaptest.NewLogger(t)

	p, err := NewProvider(config.AIConfig{Provider: "ollama"}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &ollama.Client{}, p)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(config.AIConfig{Provider: "gemini", GeminiKey: "k"}, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	p, err = NewProvider(config.AIConfig{Provider: "openai"}, nil, logger)
	assert.Error(t, err, "missing key")
	assert.Nil(t, p)

	_, err = NewProvider(config.AIConfig{Provider: "cohere"}, nil, logger)
	assert.Error(t, err)
}

func TestHealthChecker_AsServiceCheck(t *testing.T) {
	provider := &testutils.MockModelProvider{}
	provider.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	check := NewHealthChecker(provider, 0, zaptest.NewLogger(t)).Check(context.Background())

	assert.Equal(t, healthcheck.StatusUnhealthy, check.Status)
	assert.Equal(t, "connection refused", check.Message)
}
