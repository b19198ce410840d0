package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/healthharmony/assistant/internal/application/orchestration"
	"github.com/healthharmony/assistant/internal/infrastructure/http/middleware"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// Checker tracks the caller's compatibility check
type Checker interface {
	Run(ctx context.Context, owner inbound.Owner, cmd inbound.CompatibilityCommand) (orchestration.CheckState, error)
	Current(owner inbound.Owner) orchestration.CheckState
	Reset(owner inbound.Owner)
	Subscribe(owner inbound.Owner) (<-chan orchestration.CheckState, func())
}

// CheckHandlers drives the compatibility panel
type CheckHandlers struct {
	checks    Checker
	flows     inbound.FlowService
	profiles  inbound.ProfileService
	validator Validator
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewCheckHandlers creates check handlers. originAllowed decides which
// browser origins may open the state stream.
func NewCheckHandlers(
	checks Checker,
	flows inbound.FlowService,
	profiles inbound.ProfileService,
	validator Validator,
	originAllowed func(r *http.Request) bool,
	logger *zap.Logger,
) *CheckHandlers {
	return &CheckHandlers{
		checks:    checks,
		flows:     flows,
		profiles:  profiles,
		validator: validator,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originAllowed,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.Named("check-handlers"),
	}
}

// Start handles POST /api/v1/checks. It answers with the caller's state
// once the check finishes; a check overtaken by a newer one answers 409
// with the newer state.
func (h *CheckHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req CompatibilityRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	owner := middleware.OwnerFromContext(r.Context())
	snapshot := h.profiles.Get(r.Context(), owner)
	if req.Profile != nil {
		snapshot = *req.Profile
	}

	state, err := h.checks.Run(r.Context(), owner, inbound.CompatibilityCommand{
		Profile:  snapshot,
		ItemName: req.ItemName,
		Photos:   req.Photos,
	})
	switch {
	case errors.Is(err, orchestration.ErrSuperseded):
		writeJSON(w, h.logger, http.StatusConflict, state)
	case apperrors.Is(err, apperrors.CodeValidationFailed):
		writeError(w, r, h.logger, err)
	default:
		// model failures are part of the state
		writeJSON(w, h.logger, http.StatusOK, state)
	}
}

// Current handles GET /api/v1/checks/current
func (h *CheckHandlers) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.checks.Current(middleware.OwnerFromContext(r.Context())))
}

// Reset handles DELETE /api/v1/checks/current
func (h *CheckHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	h.checks.Reset(owner)
	writeJSON(w, h.logger, http.StatusOK, h.checks.Current(owner))
}

// Alternatives handles POST /api/v1/checks/current/alternatives for the
// item of the displayed result
func (h *CheckHandlers) Alternatives(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.followUp(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.flows.SuggestAlternatives(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Advice handles POST /api/v1/checks/current/advice for the item of the
// displayed result
func (h *CheckHandlers) Advice(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.followUp(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.flows.GetPostIngestionAdvice(r.Context(), cmd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *CheckHandlers) followUp(r *http.Request) (inbound.ItemCommand, error) {
	owner := middleware.OwnerFromContext(r.Context())
	state := h.checks.Current(owner)
	if !state.FollowUp || state.ItemName == "" {
		return inbound.ItemCommand{}, apperrors.NewAppError(apperrors.CodeConflict,
			"No follow-up is available for the current result", "")
	}
	return inbound.ItemCommand{
		Profile:  h.profiles.Get(r.Context(), owner),
		ItemName: state.ItemName,
	}, nil
}

// Stream handles GET /api/v1/checks/stream. It upgrades to a websocket and
// pushes every state transition of the caller's check as JSON.
func (h *CheckHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	states, unsubscribe := h.checks.Subscribe(owner)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("WebSocket closed", zap.Error(err))
				}
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(state); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
