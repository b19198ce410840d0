package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/healthharmony/assistant/internal/application/orchestration"
	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"go.uber.org/zap"
)

// Suggester debounces autocomplete lookups
type Suggester interface {
	Suggest(ctx context.Context, owner inbound.Owner, query inbound.SuggestionsQuery) (*assessment.SuggestionsResult, error)
}

// FlowHandlers exposes the model flows over JSON
type FlowHandlers struct {
	flows     inbound.FlowService
	suggester Suggester
	profiles  inbound.ProfileService
	validator Validator
	logger    *zap.Logger
}

// NewFlowHandlers creates flow handlers
func NewFlowHandlers(
	flows inbound.FlowService,
	suggester Suggester,
	profiles inbound.ProfileService,
	validator Validator,
	logger *zap.Logger,
) *FlowHandlers {
	return &FlowHandlers{
		flows:     flows,
		suggester: suggester,
		profiles:  profiles,
		validator: validator,
		logger:    logger.Named("flow-handlers"),
	}
}

// ValidateRequest is the body of POST /flows/validate
type ValidateRequest struct {
	Category string `json:"category" validate:"required,category"`
	ItemName string `json:"itemName" validate:"required,max=200"`
}

// SuggestionsRequest is the body of POST /flows/suggestions
type SuggestionsRequest struct {
	Category string `json:"category" validate:"required,category"`
	Query    string `json:"query" validate:"max=200"`
}

// CompatibilityRequest is the body of POST /flows/compatibility and
// POST /checks. Profile defaults to the caller's stored profile.
type CompatibilityRequest struct {
	ItemName string            `json:"itemName" validate:"max=200"`
	Photos   []string          `json:"photos" validate:"max=5,dive,image_data_uri"`
	Profile  *profile.Snapshot `json:"profile,omitempty"`
}

// ItemRequest is the body of POST /flows/alternatives and /flows/advice
type ItemRequest struct {
	ItemName string            `json:"itemName" validate:"required,max=200"`
	Profile  *profile.Snapshot `json:"profile,omitempty"`
}

// TipsRequest is the body of POST /flows/tips
type TipsRequest struct {
	Profile *profile.Snapshot `json:"profile,omitempty"`
}

// Validate handles POST /api/v1/flows/validate
func (h *FlowHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.flows.ValidateProfileItem(r.Context(), inbound.ValidateItemCommand{
		Category: profile.Category(req.Category),
		ItemName: req.ItemName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Suggestions handles POST /api/v1/flows/suggestions. A request overtaken
// by a newer one from the same caller answers 204.
func (h *FlowHandlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	var req SuggestionsRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.suggester.Suggest(r.Context(), middleware.OwnerFromContext(r.Context()), inbound.SuggestionsQuery{
		Category: profile.Category(req.Category),
		Query:    req.Query,
	})
	if errors.Is(err, orchestration.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Compatibility handles POST /api/v1/flows/compatibility
func (h *FlowHandlers) Compatibility(w http.ResponseWriter, r *http.Request) {
	var req CompatibilityRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.flows.CheckItemCompatibility(r.Context(), inbound.CompatibilityCommand{
		Profile:  h.profileFor(r, req.Profile),
		ItemName: req.ItemName,
		Photos:   req.Photos,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Alternatives handles POST /api/v1/flows/alternatives
func (h *FlowHandlers) Alternatives(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.flows.SuggestAlternatives(r.Context(), inbound.ItemCommand{
		Profile:  h.profileFor(r, req.Profile),
		ItemName: req.ItemName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Advice handles POST /api/v1/flows/advice
func (h *FlowHandlers) Advice(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.flows.GetPostIngestionAdvice(r.Context(), inbound.ItemCommand{
		Profile:  h.profileFor(r, req.Profile),
		ItemName: req.ItemName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Tips handles POST /api/v1/flows/tips
func (h *FlowHandlers) Tips(w http.ResponseWriter, r *http.Request) {
	var req TipsRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.flows.GetLifestyleTips(r.Context(), inbound.TipsQuery{Profile: h.profileFor(r, req.Profile)})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *FlowHandlers) profileFor(r *http.Request, explicit *profile.Snapshot) profile.Snapshot {
	if explicit != nil {
		return *explicit
	}
	return h.profiles.Get(r.Context(), middleware.OwnerFromContext(r.Context()))
}
