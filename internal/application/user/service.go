// Package user provides the application layer for user accounts
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/domain/user"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/infrastructure/security"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// UserService implements account use cases. With no repository configured
// every operation fails with AUTH_UNAVAILABLE.
type UserService struct {
	userRepo outbound.UserRepository
	tokens   *security.TokenManager
	metrics  *monitoring.MetricsCollector
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo outbound.UserRepository,
	tokens *security.TokenManager,
	metrics *monitoring.MetricsCollector,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger.Named("user-service"),
	}
}

// RegisterCommand contains user registration data
type RegisterCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginCommand contains user login data
type LoginCommand struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserDTO represents user data transfer object
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// AuthResponse contains authentication response data
type AuthResponse struct {
	User         UserDTO   `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int       `json:"expires_in"`
}

// Available reports whether accounts can be used at all
func (s *UserService) Available() bool {
	return s.userRepo != nil && s.tokens != nil
}

// Register creates a new user account
func (s *UserService) Register(ctx context.Context, cmd RegisterCommand) (*AuthResponse, error) {
	if !s.Available() {
		return nil, apperrors.NewAuthUnavailableError()
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	s.logger.Info("Registering new user", zap.String("email", email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, apperrors.NewEmailAlreadyExistsError(email)
	case err != nil && !errors.Is(err, outbound.ErrNotFound):
		return nil, apperrors.Wrap(err, "failed to look up user")
	}

	newUser, err := user.NewUser(email, cmd.Name, cmd.Password)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, outbound.ErrDuplicate) {
			return nil, apperrors.NewEmailAlreadyExistsError(email)
		}
		return nil, apperrors.Wrap(err, "failed to save user")
	}
	s.metrics.UserRegistered()

	s.logger.Info("User registered successfully",
		zap.String("user_id", newUser.ID().String()),
		zap.String("email", newUser.Email()),
	)

	return s.authResponse(newUser)
}

// Login authenticates a user
func (s *UserService) Login(ctx context.Context, cmd LoginCommand) (*AuthResponse, error) {
	if !s.Available() {
		return nil, apperrors.NewAuthUnavailableError()
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	s.logger.Info("User login attempt", zap.String("email", email))

	userEntity, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewInvalidCredentialsError()
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to look up user")
	}

	if err := userEntity.CheckPassword(cmd.Password); err != nil {
		s.logger.Warn("Invalid password attempt", zap.String("email", email))
		return nil, apperrors.NewInvalidCredentialsError()
	}

	if !userEntity.IsActive() {
		return nil, apperrors.NewUnauthorizedError("Account is deactivated")
	}

	userEntity.RecordLogin()
	if err := s.userRepo.UpdateLastLogin(ctx, userEntity.ID()); err != nil {
		s.logger.Error("Failed to update last login", zap.Error(err))
	}

	s.logger.Info("User logged in successfully",
		zap.String("user_id", userEntity.ID().String()),
		zap.String("email", userEntity.Email()),
	)

	return s.authResponse(userEntity)
}

// Refresh exchanges a refresh token for a new pair. The old refresh token
// is revoked.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if !s.Available() {
		return nil, apperrors.NewAuthUnavailableError()
	}

	claims, err := s.tokens.Validate(ctx, refreshToken, security.RefreshToken)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid or expired token")
	}

	userEntity, err := s.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewUnauthorizedError("Invalid or expired token")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to look up user")
	}
	if !userEntity.IsActive() {
		return nil, apperrors.NewUnauthorizedError("Account is deactivated")
	}

	if err := s.tokens.Revoke(ctx, claims); err != nil {
		s.logger.Warn("Failed to revoke rotated refresh token", zap.Error(err))
	}

	return s.authResponse(userEntity)
}

// Logout revokes the given tokens. Invalid tokens are ignored.
func (s *UserService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if !s.Available() {
		return apperrors.NewAuthUnavailableError()
	}

	for token, typ := range map[string]security.TokenType{accessToken: security.AccessToken, refreshToken: security.RefreshToken} {
		if token == "" {
			continue
		}
		claims, err := s.tokens.Validate(ctx, token, typ)
		if err != nil {
			continue
		}
		if err := s.tokens.Revoke(ctx, claims); err != nil {
			return apperrors.Wrap(err, "failed to revoke token")
		}
		s.logger.Info("Token revoked", zap.String("user_id", claims.UserID.String()), zap.String("type", string(typ)))
	}
	return nil
}

// Authenticate resolves an access token to its claims
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*security.Claims, error) {
	if !s.Available() {
		return nil, apperrors.NewAuthUnavailableError()
	}
	claims, err := s.tokens.Validate(ctx, accessToken, security.AccessToken)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	if !s.Available() {
		return nil, apperrors.NewAuthUnavailableError()
	}
	userEntity, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to look up user")
	}

	dto := entityToDTO(userEntity)
	return &dto, nil
}

func (s *UserService) authResponse(u *user.User) (*AuthResponse, error) {
	pair, err := s.tokens.Issue(u.ID(), u.Email())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate tokens")
	}
	return &AuthResponse{
		User:         entityToDTO(u),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func entityToDTO(u *user.User) UserDTO {
	return UserDTO{
		ID:          u.ID(),
		Email:       u.Email(),
		Name:        u.Name(),
		CreatedAt:   u.CreatedAt(),
		LastLoginAt: u.LastLoginAt(),
	}
}
