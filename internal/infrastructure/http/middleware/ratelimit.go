package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitOptions configures the per-client token bucket
type RateLimitOptions struct {
	RequestsPerMinute int
	Burst             int
	IdleTimeout       time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per signed-in user, falling back to the
// client IP.
type RateLimiter struct {
	opts   RateLimitOptions
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a limiter
func NewRateLimiter(opts RateLimitOptions, logger *zap.Logger) *RateLimiter {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.RequestsPerMinute / 6
		if opts.Burst < 1 {
			opts.Burst = 1
		}
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	return &RateLimiter{
		opts:    opts,
		logger:  logger.Named("rate-limiter"),
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Handler is the middleware
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.key(r)
		limiter := l.limiter(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.opts.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		if !limiter.Allow() {
			l.logger.Warn("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
				zap.String("user_agent", r.UserAgent()))

			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			writeAppError(w, r, apperrors.NewTooManyRequestsError())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops clients idle for longer than the idle timeout
func (l *RateLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.opts.IdleTimeout)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				l.logger.Debug("Dropped idle rate limit clients", zap.Int("count", n))
			}
		}
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		perSecond := rate.Limit(float64(l.opts.RequestsPerMinute) / 60)
		c = &clientLimiter{limiter: rate.NewLimiter(perSecond, l.opts.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = l.now()
	return c.limiter
}

func (l *RateLimiter) key(r *http.Request) string {
	if owner, ok := ownerFromContext(r.Context()); ok && owner.UserID != nil {
		return "user:" + owner.UserID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (l *RateLimiter) retryAfter() int {
	seconds := 60 / l.opts.RequestsPerMinute
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
