// Package handlers provides the HTTP handlers for the JSON API and the HTMX
// frontend
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

// Validator checks decoded request payloads
type Validator interface {
	Struct(s interface{}) error
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeError renders err as an ErrorResponse. Errors that are not AppErrors
// are reported as internal errors without their text.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := toAppError(err)
	status := appErr.StatusCode()
	requestID := chimiddleware.GetReqID(r.Context())

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}

	writeJSON(w, logger, status, apperrors.ToErrorResponse(appErr, requestID))
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.NewInternalError("An unexpected error occurred").WithCause(err)
}

// decodeJSON reads a JSON body into dst and validates it. An empty body is
// treated as an empty object.
func decodeJSON(r *http.Request, v Validator, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.NewAppError(apperrors.CodeBadRequest, "Request body too large", err.Error())
		}
		return apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid JSON payload", err.Error())
	}
	return v.Struct(dst)
}
