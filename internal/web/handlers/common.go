package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/codewithmutahir/timeclock/internal/attendance"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}

// respondClockError maps clock engine failures onto API responses: state
// conflicts are rendered inline with their code at 409, validation at 400,
// anything else is a server failure.
func respondClockError(w http.ResponseWriter, err error) {
	var conflict *attendance.StateConflictError
	if errors.As(err, &conflict) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   conflict.Message,
			"code":    conflict.Code,
		})
		return
	}
	var invalid *attendance.ValidationError
	if errors.As(err, &invalid) {
		respondError(w, http.StatusBadRequest, invalid.Message)
		return
	}
	respondError(w, http.StatusInternalServerError, "storage error")
}

// respondRecord sends a successful clock operation response.
func respondRecord(w http.ResponseWriter, rec *attendance.Record) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"record":  rec,
	})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
