// Package security issues and verifies the tokens that identify signed-in
// users.
package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"go.uber.org/zap"
)

const issuer = "healthharmony"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = errors.New("token has been revoked")
	ErrWrongType    = errors.New("unexpected token type")
)

// TokenType represents different types of JWT tokens
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims represents JWT claims structure
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login hands back
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int       `json:"expires_in"`
}

// TokenConfig configures token lifetimes
type TokenConfig struct {
	Secret            string
	AccessExpiration  time.Duration
	RefreshExpiration time.Duration
}

// TokenManager signs HS256 tokens and tracks revocations in the cache
type TokenManager struct {
	secret []byte
	config TokenConfig
	cache  outbound.CacheRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenManager creates a token manager
func NewTokenManager(cfg TokenConfig, cache outbound.CacheRepository, logger *zap.Logger) *TokenManager {
	if cfg.AccessExpiration <= 0 {
		cfg.AccessExpiration = time.Hour
	}
	if cfg.RefreshExpiration <= 0 {
		cfg.RefreshExpiration = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		config: cfg,
		cache:  cache,
		logger: logger.Named("tokens"),
		now:    time.Now,
	}
}

// Issue creates an access and refresh token pair for the user
func (m *TokenManager) Issue(userID uuid.UUID, email string) (*TokenPair, error) {
	now := m.now()

	access, err := m.sign(userID, email, AccessToken, now, m.config.AccessExpiration)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(userID, email, RefreshToken, now, m.config.RefreshExpiration)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.config.AccessExpiration),
		ExpiresIn:    int(m.config.AccessExpiration.Seconds()),
	}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, email string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Validate parses a token, checks its type and rejects revoked tokens
func (m *TokenManager) Validate(ctx context.Context, tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongType, expected, claims.TokenType)
	}

	if m.cache != nil {
		revoked, err := m.cache.Exists(ctx, revokedKey(claims.ID))
		if err != nil {
			m.logger.Warn("Failed to check token revocation", zap.Error(err))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke blacklists the token until it would have expired anyway
func (m *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if m.cache == nil {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(m.now()); remaining > 0 {
			ttl = remaining
		}
	}
	if err := m.cache.Set(ctx, revokedKey(claims.ID), []byte("revoked"), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}
