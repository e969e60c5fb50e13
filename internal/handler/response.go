package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error
// response from the API has the same shape:
//
//	{"error": "not_a_member", "message": "bo@x.com is not a member of project p1"}
//
// The "error" code is stable and machine-readable; the API client maps it
// back onto the same apperror sentinel the server raised.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/sprintium/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
	Field   string `json:"field,omitempty"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader; anything set later is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are gone already, all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error onto its HTTP status and error code.
//
//	ErrValidation      → 400 validation_error
//	ErrUnauthenticated → 401 unauthorized
//	ErrForbidden       → 403 forbidden
//	ErrNotFound        → 404 not_found
//	ErrNotAMember      → 404 not_a_member
//	ErrAlreadyMember   → 409 already_member
//	ErrConflict        → 409 conflict
//	anything else      → 500 internal_error
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotAMember):
		return http.StatusNotFound, "not_a_member"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrAlreadyMember):
		return http.StatusConflict, "already_member"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.As walks the chain to find the *AppError carrying the message;
// errors.Is (inside statusFor) finds the sentinel it wraps. An error with
// no AppError in its chain is unexpected: it is logged, and the client only
// sees a generic 500, never the raw text (which may contain SQL or paths).
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			appErr = &apperror.AppError{Message: "An internal error occurred"}
		}
		writeJSON(w, status, ErrorResponse{
			Error:   code,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
