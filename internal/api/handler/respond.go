package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPollInProgress),
		errors.Is(err, domain.ErrQueueLocked):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
