package handlers

import (
	"net/http"
	"time"

	"github.com/healthharmony/assistant/internal/application/user"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// AuthHandlers handles account endpoints
type AuthHandlers struct {
	users         *user.UserService
	profiles      inbound.ProfileService
	validator     Validator
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandlers creates auth handlers
func NewAuthHandlers(
	users *user.UserService,
	profiles inbound.ProfileService,
	validator Validator,
	secureCookies bool,
	logger *zap.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		users:         users,
		profiles:      profiles,
		validator:     validator,
		secureCookies: secureCookies,
		logger:        logger.Named("auth-handlers"),
	}
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest is the body of POST /auth/logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SessionResponse is returned by register and login. Profile is the
// profile now bound to the account.
type SessionResponse struct {
	*user.AuthResponse
	Profile profile.Snapshot `json:"profile"`
}

// MeResponse describes the signed-in user
type MeResponse struct {
	User    *user.UserDTO    `json:"user"`
	Profile profile.Snapshot `json:"profile"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	var cmd user.RegisterCommand
	if err := decodeJSON(r, h.validator, &cmd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.users.Register(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.signIn(w, r, resp, http.StatusCreated)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	var cmd user.LoginCommand
	if err := decodeJSON(r, h.validator, &cmd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.users.Login(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.signIn(w, r, resp, http.StatusOK)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	var req RefreshRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setAccessCookie(w, resp)
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	var req LogoutRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.users.Logout(r.Context(), middleware.AccessToken(r), req.RefreshToken); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	dto, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	owner := middleware.OwnerFromContext(r.Context())
	writeJSON(w, h.logger, http.StatusOK, MeResponse{User: dto, Profile: h.profiles.Get(r.Context(), owner)})
}

func (h *AuthHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.users == nil || !h.users.Available() {
		writeError(w, r, h.logger, apperrors.NewAuthUnavailableError())
		return false
	}
	return true
}

// signIn binds the caller's session to the account, then answers with the
// tokens and the resulting profile.
func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request, resp *user.AuthResponse, status int) {
	owner := middleware.OwnerFromContext(r.Context())
	userID := resp.User.ID
	owner.UserID = &userID

	snapshot, err := h.profiles.Attach(r.Context(), owner)
	if err != nil {
		h.logger.Warn("Failed to attach profile on sign in",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		snapshot = h.profiles.Get(r.Context(), owner)
	}

	h.setAccessCookie(w, resp)
	writeJSON(w, h.logger, status, SessionResponse{AuthResponse: resp, Profile: snapshot})
}

func (h *AuthHandlers) setAccessCookie(w http.ResponseWriter, resp *user.AuthResponse) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    resp.AccessToken,
		Path:     "/",
		Expires:  resp.ExpiresAt,
		MaxAge:   int(time.Until(resp.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
