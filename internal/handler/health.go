package handler

import (
	"net/http"

	"github.com/capitalize-ai/agent-console/internal/channel"
)

// ChannelStatus reports the realtime channel state.
type ChannelStatus interface {
	Status() channel.Status
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	channel ChannelStatus
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ch ChannelStatus) *HealthHandler {
	return &HealthHandler{
		channel: ch,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The console is ready while the channel is connected.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.channel == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "no channel",
		})
		return
	}
	if st := h.channel.Status(); st.State != channel.Connected {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "channel " + st.String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
