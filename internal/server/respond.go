package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tabletrouble/spyx-backend/internal"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// respondErr maps the engine's error taxonomy onto HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case internal.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, internal.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, internal.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, internal.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
