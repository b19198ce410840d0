package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/infrastructure/security"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// AccessCookie carries the access token for browser clients
const AccessCookie = "hh_access"

type contextKey string

const (
	ownerKey  contextKey = "owner"
	claimsKey contextKey = "claims"
)

// Authenticator resolves an access token to its claims
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*security.Claims, error)
}

// SessionOptions configures the anonymous session cookie
type SessionOptions struct {
	CookieName string
	Secure     bool
	MaxAge     time.Duration
}

// Session makes sure every request carries an anonymous session id and
// places the resulting Owner in the context.
func Session(opts SessionOptions) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "hh_session"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if c, err := r.Cookie(opts.CookieName); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					sessionID = c.Value
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				cookie := &http.Cookie{
					Name:     opts.CookieName,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				}
				if opts.MaxAge > 0 {
					cookie.MaxAge = int(opts.MaxAge.Seconds())
				}
				http.SetCookie(w, cookie)
			}

			ctx := WithOwner(r.Context(), inbound.Owner{SessionID: sessionID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth upgrades the owner to a signed-in user when a valid access
// token is presented. Invalid tokens leave the request anonymous.
func OptionalAuth(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" || auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				logger.Debug("Ignoring invalid access token",
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			owner, _ := ownerFromContext(r.Context())
			userID := claims.UserID
			owner.UserID = &userID

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = WithOwner(ctx, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated owner
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			writeAppError(w, r, apperrors.NewUnauthorizedError("Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccessToken extracts a bearer token from the Authorization header or the
// access cookie.
func AccessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// WithOwner stores the owner in ctx
func WithOwner(ctx context.Context, owner inbound.Owner) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFromContext returns the request owner. Requests that skipped the
// Session middleware get an empty anonymous owner.
func OwnerFromContext(ctx context.Context) inbound.Owner {
	owner, _ := ownerFromContext(ctx)
	return owner
}

func ownerFromContext(ctx context.Context) (inbound.Owner, bool) {
	owner, ok := ctx.Value(ownerKey).(inbound.Owner)
	return owner, ok
}

// ClaimsFromContext returns the verified token claims, if any
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.Claims)
	return claims, ok && claims != nil
}

func writeAppError(w http.ResponseWriter, r *http.Request, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_ = json.NewEncoder(w).Encode(apperrors.ToErrorResponse(err, chimiddleware.GetReqID(r.Context())))
}
