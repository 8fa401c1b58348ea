package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Retry   string            `json:"retry,omitempty"`
	Success bool              `json:"success"`
}

// writeJSON writes env with the given status code.
func writeJSON(w http.ResponseWriter, status int, env Envelope, logger zerolog.Logger) {
	env.Success = status < 400
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// success writes data with 200 OK.
func success(w http.ResponseWriter, data any, logger zerolog.Logger) {
	writeJSON(w, http.StatusOK, Envelope{Data: data}, logger)
}

// created writes data with 201 Created.
func created(w http.ResponseWriter, data any, logger zerolog.Logger) {
	writeJSON(w, http.StatusCreated, Envelope{Data: data}, logger)
}

// errorJSON writes an error message with the given status code.
func errorJSON(w http.ResponseWriter, status int, message string, logger zerolog.Logger) {
	writeJSON(w, status, Envelope{Error: message}, logger)
}
