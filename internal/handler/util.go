// Package handler serves the console's local status and control endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/agent-console/internal/api"
	"github.com/capitalize-ai/agent-console/internal/catalog"
	"github.com/capitalize-ai/agent-console/internal/channel"
	"github.com/capitalize-ai/agent-console/internal/chat"
	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/internal/query"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps a console error onto the status code reported to local callers.
func statusFor(err error) int {
	var reqErr *api.RequestError
	switch {
	case errors.Is(err, model.ErrEmptyContent),
		errors.Is(err, model.ErrContentTooLong),
		errors.Is(err, model.ErrInvalidUTF8),
		errors.Is(err, model.ErrEmptyConversation),
		errors.Is(err, chat.ErrAgentRequired),
		errors.Is(err, query.ErrInvalidPage),
		errors.Is(err, catalog.ErrInvalidRegistration):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrConversationNotFound), api.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, channel.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.As(err, &reqErr), errors.Is(err, api.ErrUnsuccessful):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
