package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/med_store/internal/auth"
	"github.com/fjod/med_store/internal/cart"
	"github.com/fjod/med_store/internal/catalog"
	"github.com/fjod/med_store/internal/upload"
	"github.com/sony/gobreaker/v2"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain errors onto HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var providerErr *upload.ProviderError

	switch {
	case errors.Is(err, cart.ErrInvalidArgument), errors.Is(err, catalog.ErrInvalid):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, auth.ErrNoSession):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "admin session required")
	case errors.Is(err, cart.ErrPersistenceRead):
		slog.WarnContext(r.Context(), "cart storage unavailable",
			"path", r.URL.Path, "request_id", getRequestID(r.Context()), "error", err)
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart storage is unavailable, try again")
	case errors.Is(err, upload.ErrNotConfigured), errors.Is(err, gobreaker.ErrOpenState):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.As(err, &providerErr):
		respondError(w, http.StatusBadGateway, "upload_failed", providerErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", getRequestID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
