package handler

import (
	"net/http"

	"github.com/capitalize-ai/agent-console/internal/session"
)

// StateSource produces the session summary.
type StateSource interface {
	State() session.State
}

// State handles GET /state
func State(src StateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.State())
	}
}
