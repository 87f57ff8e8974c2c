package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/suggestion-worker/internal/domain"
	"github.com/notifyhub/suggestion-worker/internal/worker"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates runner and validation errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, worker.ErrCycleInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMissingCategory), errors.Is(err, domain.ErrMissingDestination):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
