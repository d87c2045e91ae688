package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/bake"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string `json:"error" validate:"required"`
	Result any    `json:"result,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps a command error to its HTTP status. Expected failures keep
// their message; anything else is reported as an internal error.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, apperr.ErrInsufficientPins),
		errors.Is(err, apperr.ErrNoSelection),
		errors.Is(err, apperr.ErrMissingRigStructure),
		errors.Is(err, apperr.ErrInvalidParameters):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, apperr.ErrBindingFailure), errors.Is(err, bake.ErrPartialCommit):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError writes err with its mapped status. partial, when non-nil, is
// the result of a command that failed halfway.
func writeError(w http.ResponseWriter, op string, err error, partial any) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errResponse{Error: msg, Result: partial})
}
