package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/infrastructure/security"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAuth struct {
	userID uuid.UUID
}

func (s stubAuth) Authenticate(_ context.Context, token string) (*security.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &security.Claims{UserID: s.userID, Email: "a@b.co", TokenType: security.AccessToken}, nil
}

func ownerEcho(t *testing.T, got *inbound.Owner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestSession_IssuesCookie(t *testing.T) {
	var owner inbound.Owner
	h := Session(SessionOptions{CookieName: "sid", Secure: true})(ownerEcho(t, &owner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, cookies[0].Value, owner.SessionID)
	assert.False(t, owner.Authenticated())
}

func TestSession_ReusesValidCookie(t *testing.T) {
	var owner inbound.Owner
	h := Session(SessionOptions{CookieName: "sid"})(ownerEcho(t, &owner))
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, id, owner.SessionID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Len(t, rec.Result().Cookies(), 1)
	assert.NotEqual(t, "forged", owner.SessionID)
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()
	var owner inbound.Owner
	h := Session(SessionOptions{})(OptionalAuth(stubAuth{userID: userID}, zaptest.NewLogger(t))(ownerEcho(t, &owner)))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		signed bool
	}{
		{"no token", func(r *http.Request) {}, false},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, true},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "good"}) }, true},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner = inbound.Owner{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)

			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.NotEmpty(t, owner.SessionID)
			assert.Equal(t, tt.signed, owner.Authenticated())
			if tt.signed {
				assert.Equal(t, userID, *owner.UserID)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	h := OptionalAuth(stubAuth{userID: uuid.New()}, zaptest.NewLogger(t))(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"UNAUTHORIZED"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(RateLimitOptions{RequestsPerMinute: 60, Burst: 2}, zaptest.NewLogger(t))
	h := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients are unaffected")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(RateLimitOptions{IdleTimeout: time.Minute}, zaptest.NewLogger(t))
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.limiter("ip:1")
	now = now.Add(2 * time.Minute)
	limiter.limiter("ip:2")

	assert.Equal(t, 1, limiter.Cleanup())
	assert.Len(t, limiter.clients, 1)
}

func TestSecurityAndCORS(t *testing.T) {
	h := Security(true)(CORS([]string{"https://app.example"}, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/profile", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetricsCollector(reg, zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(Metrics(metrics))
	r.Get("/profile/{category}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile/allergies", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile/medications", nil))

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCompress_Brotli(t *testing.T) {
	h := Compress(5)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profile":"` + strings.Repeat("peanut ", 200) + `"}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
