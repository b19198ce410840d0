// Package ai selects the configured model provider and reports its health
package ai

import (
	"context"
	"sync"
	"time"

	"github.com/healthharmony/assistant/internal/ports/outbound"
	"github.com/healthharmony/assistant/pkg/healthcheck"
	"go.uber.org/zap"
)

// HealthChecker probes the active provider and caches the answer so the
// health endpoint does not turn into model traffic
type HealthChecker struct {
	provider outbound.ModelProvider
	ttl      time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last *AIHealthStatus
}

// AIHealthStatus represents the health status of the model provider
type AIHealthStatus struct {
	Overall   string    `json:"overall"`
	Provider  string    `json:"provider"`
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail"`
	Latency   string    `json:"latency"`
	LastCheck time.Time `json:"last_check"`
}

// NewHealthChecker creates a new AI health checker. A ttl <= 0 probes on
// every call.
func NewHealthChecker(provider outbound.ModelProvider, ttl time.Duration, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		provider: provider,
		ttl:      ttl,
		timeout:  10 * time.Second,
		logger:   logger.Named("ai-health"),
		now:      time.Now,
	}
}

// CheckHealth returns the cached status or probes the provider
func (h *HealthChecker) CheckHealth(ctx context.Context) AIHealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil && h.ttl > 0 && h.now().Sub(h.last.LastCheck) < h.ttl {
		return *h.last
	}

	status := AIHealthStatus{Provider: h.provider.Name(), LastCheck: h.now()}

	healthCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := h.provider.HealthCheck(healthCtx)
	status.Latency = time.Since(start).String()

	if err != nil {
		status.Overall = "critical"
		status.Detail = err.Error()
		h.logger.Warn("Model provider health check failed",
			zap.String("provider", status.Provider),
			zap.Error(err))
	} else {
		status.Overall = "healthy"
		status.Healthy = true
		status.Detail = "Available"
		h.logger.Debug("Model provider health check passed", zap.String("provider", status.Provider))
	}

	h.last = &status
	return status
}

// IsHealthy returns true if the provider answered its last probe
func (h *HealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Healthy
}

// Check adapts the probe to the service health report
func (h *HealthChecker) Check(ctx context.Context) healthcheck.Check {
	status := h.CheckHealth(ctx)
	check := healthcheck.Check{
		Status:      healthcheck.StatusHealthy,
		LastChecked: status.LastCheck,
		Metadata:    map[string]string{"provider": status.Provider, "latency": status.Latency},
	}
	if !status.Healthy {
		check.Status = healthcheck.StatusUnhealthy
		check.Message = status.Detail
	}
	return check
}
