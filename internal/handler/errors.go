package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

type errorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Path      string    `json:"path"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationErrorResponse struct {
	Timestamp time.Time    `json:"timestamp"`
	Status    int          `json:"status"`
	Error     string       `json:"error"`
	Fields    []fieldError `json:"fields"`
	Path      string       `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
	})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, fields []fieldError) {
	writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Timestamp: time.Now(),
		Status:    http.StatusBadRequest,
		Error:     "Validation Error",
		Fields:    fields,
		Path:      r.URL.Path,
	})
}

// mapError translates business errors to HTTP semantics. This is the
// single place where the taxonomy is bound to status codes.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, pkgerrors.ErrLoginExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, pkgerrors.ErrInsufficientFunds):
		writeError(w, r, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, pkgerrors.ErrLockTimeout):
		// transient: the caller may retry
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidCredentials), errors.Is(err, pkgerrors.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		slog.Error("unhandled error", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "")
	}
}
