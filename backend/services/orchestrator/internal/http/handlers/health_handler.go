package handlers

import (
	"net/http"
	"time"
)

// NewHealthHandler returns GET /health handler.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "OK",
			"message":   "EV Orchestrator API is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// NewNotFoundHandler answers unknown routes.
func NewNotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	}
}
