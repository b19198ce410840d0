package handlers

import (
	"context"
	"net/http"

	"github.com/healthharmony/assistant/internal/infrastructure/ai"
	"go.uber.org/zap"
)

// AIHealth reports model provider availability
type AIHealth interface {
	CheckHealth(ctx context.Context) ai.AIHealthStatus
}

// HealthHandlers serves provider health. Service health is served by
// pkg/healthcheck directly.
type HealthHandlers struct {
	ai     AIHealth
	logger *zap.Logger
}

// NewHealthHandlers creates health handlers
func NewHealthHandlers(aiHealth AIHealth, logger *zap.Logger) *HealthHandlers {
	return &HealthHandlers{ai: aiHealth, logger: logger.Named("health-handlers")}
}

// AI handles GET /health/ai. An unreachable provider answers 503.
func (h *HealthHandlers) AI(w http.ResponseWriter, r *http.Request) {
	status := h.ai.CheckHealth(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, code, status)
}
