package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/healthharmony/assistant/internal/application/orchestration"
	profileapp "github.com/healthharmony/assistant/internal/application/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/config"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/infrastructure/security"
	"github.com/healthharmony/assistant/pkg/healthcheck"
	"github.com/healthharmony/assistant/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Monitoring.EnableMetrics = true
	if mutate != nil {
		mutate(cfg)
	}

	logger := zaptest.NewLogger(t)
	metrics := monitoring.NewMetricsCollector(monitoring.NewRegistry(), logger)
	flows := new(testutils.MockFlowService)
	profiles := profileapp.NewService(flows, nil, metrics, logger, profileapp.Options{SessionTTL: time.Hour})
	t.Cleanup(func() { _ = profiles.Shutdown(context.Background()) })

	srv, err := NewServer(Dependencies{
		Config:    cfg,
		Logger:    logger,
		Flows:     flows,
		Profiles:  profiles,
		Checks:    orchestration.NewCheckTracker(flows, metrics, logger),
		Suggester: orchestration.NewSuggester(flows, orchestration.NewDebouncer(time.Millisecond), metrics, logger),
		Validator: security.NewValidator(),
		Metrics:   metrics,
		Health:    healthcheck.New("test", logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitOptions{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.BurstSize,
		}, logger),
	})
	require.NoError(t, err)
	return srv
}

func TestRouter_PageAndSession(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "htmx.org")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Result().Cookies(), "anonymous session cookie")
}

func TestRouter_SessionCarriesProfile(t *testing.T) {
	srv := newTestServer(t, nil)

	add := httptest.NewRequest(http.MethodPost, "/api/v1/profile/allergies", strings.NewReader(`{"item":"Latex"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, add)
	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	for _, c := range cookies {
		get.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, get)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Latex")
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/static/app.css", http.StatusOK},
		{"/health/ai", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_AuthDisabledWithoutUsers(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOriginAllowed(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"https://app.example.com/"}
	allowed := originAllowed(cfg)

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "localhost:8080", true},
		{"same host", "http://localhost:8080", "localhost:8080", true},
		{"configured", "https://app.example.com", "api.example.com", true},
		{"foreign", "https://evil.example.net", "localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/checks/stream", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			assert.Equal(t, tt.want, allowed(r))
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.Timeout = 30 * time.Second
	assert.Equal(t, 45*time.Second, requestTimeout(cfg))

	cfg.Server.WriteTimeout = 20 * time.Second
	assert.Equal(t, 20*time.Second, requestTimeout(cfg))
}
