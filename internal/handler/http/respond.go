package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"snipr/internal/quota"
	"snipr/internal/service"
)

type errorResponse struct {
	Error  string `json:"error"`
	Window string `json:"window,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Unrecognized errors become a 500 and are logged with the full chain; the
// client only sees a generic message.
func respondServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var rateLimited *quota.RateLimitError

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrGone):
		respondError(w, http.StatusGone, "link is no longer available")
	case errors.Is(err, service.ErrConflict):
		respondError(w, http.StatusConflict, "short code already taken")
	case errors.Is(err, service.ErrPasswordRequired):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "password_required"})
	case errors.Is(err, service.ErrWrongPassword):
		respondError(w, http.StatusUnauthorized, "wrong password")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &rateLimited):
		respondJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:  "rate limit exceeded",
			Window: string(rateLimited.Window),
		})
	default:
		log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
