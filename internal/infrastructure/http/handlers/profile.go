package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// ProfileHandlers manages the caller's health profile
type ProfileHandlers struct {
	profiles      inbound.ProfileService
	validator     Validator
	validateOnAdd bool
	logger        *zap.Logger
}

// NewProfileHandlers creates profile handlers. validateOnAdd is the default
// for requests that do not say whether to validate.
func NewProfileHandlers(profiles inbound.ProfileService, validator Validator, validateOnAdd bool, logger *zap.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		profiles:      profiles,
		validator:     validator,
		validateOnAdd: validateOnAdd,
		logger:        logger.Named("profile-handlers"),
	}
}

// ProfileResponse wraps a profile with its storage mode
type ProfileResponse struct {
	Profile       profile.Snapshot `json:"profile"`
	Authenticated bool             `json:"authenticated"`
	Persisted     bool             `json:"persisted"`
}

// AddItemRequest is the body of POST /profile/{category}
type AddItemRequest struct {
	Item     string `json:"item" validate:"required,profile_item"`
	Validate *bool  `json:"validate,omitempty"`
}

// ReplaceProfileRequest is the body of PUT /profile
type ReplaceProfileRequest struct {
	Allergies   []string `json:"allergies" validate:"max=100,dive,profile_item"`
	Medications []string `json:"medications" validate:"max=100,dive,profile_item"`
	Conditions  []string `json:"conditions" validate:"max=100,dive,profile_item"`
}

// NoticesResponse is the body of GET /notifications
type NoticesResponse struct {
	Notices []inbound.Notice `json:"notices"`
}

// Get handles GET /api/v1/profile
func (h *ProfileHandlers) Get(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	writeJSON(w, h.logger, http.StatusOK, h.response(owner, h.profiles.Get(r.Context(), owner)))
}

// Replace handles PUT /api/v1/profile
func (h *ProfileHandlers) Replace(w http.ResponseWriter, r *http.Request) {
	var req ReplaceProfileRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	owner := middleware.OwnerFromContext(r.Context())
	snapshot, err := h.profiles.Replace(r.Context(), owner, profile.Snapshot{
		Allergies:   req.Allergies,
		Medications: req.Medications,
		Conditions:  req.Conditions,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.response(owner, snapshot))
}

// AddItem handles POST /api/v1/profile/{category}. Duplicates and rejected
// items answer 200 with added=false and a notice.
func (h *ProfileHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req AddItemRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	validate := h.validateOnAdd
	if req.Validate != nil {
		validate = *req.Validate
	}

	result, err := h.profiles.Add(r.Context(), inbound.AddItemCommand{
		Owner:    middleware.OwnerFromContext(r.Context()),
		Category: category,
		Item:     req.Item,
		Validate: validate,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Added {
		status = http.StatusCreated
	}
	writeJSON(w, h.logger, status, result)
}

// RemoveItem handles DELETE /api/v1/profile/{category}/{item}
func (h *ProfileHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := itemParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	owner := middleware.OwnerFromContext(r.Context())
	snapshot, err := h.profiles.Remove(r.Context(), inbound.RemoveItemCommand{
		Owner:    owner,
		Category: category,
		Item:     item,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.response(owner, snapshot))
}

// Notifications handles GET /api/v1/notifications. Reading drains the queue.
func (h *ProfileHandlers) Notifications(w http.ResponseWriter, r *http.Request) {
	notices := h.profiles.Notices(middleware.OwnerFromContext(r.Context()))
	if notices == nil {
		notices = []inbound.Notice{}
	}
	writeJSON(w, h.logger, http.StatusOK, NoticesResponse{Notices: notices})
}

func (h *ProfileHandlers) response(owner inbound.Owner, snapshot profile.Snapshot) ProfileResponse {
	return ProfileResponse{
		Profile:       snapshot,
		Authenticated: owner.Authenticated(),
		Persisted:     owner.Authenticated() && h.profiles.RemoteEnabled(),
	}
}

func categoryParam(r *http.Request) (profile.Category, error) {
	category, err := profile.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		return "", apperrors.NewNotFoundError("category")
	}
	return category, nil
}

// itemParam returns the decoded {item} segment. chi matches on RawPath when
// the request path needed escaping.
func itemParam(r *http.Request) (string, error) {
	item := chi.URLParam(r, "item")
	if r.URL.RawPath == "" {
		return item, nil
	}
	decoded, err := url.PathUnescape(item)
	if err != nil {
		return "", apperrors.NewBadRequestError("Malformed item")
	}
	return decoded, nil
}
