package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/channel"
	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/pkg/logger"
	"github.com/capitalize-ai/agent-console/pkg/metrics"
)

const (
	defaultHeartbeat = 30 * time.Second
	streamBuffer     = 64
)

// EventSource is the realtime channel as seen by the event stream.
type EventSource interface {
	ChannelStatus
	Subscribe(fn func(channel.Event)) (unsubscribe func())
}

// StreamHandler relays channel events to local clients over SSE.
type StreamHandler struct {
	events    EventSource
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(events EventSource, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		events:    events,
		heartbeat: defaultHeartbeat,
		logger:    logger.OrGlobal(log),
	}
}

// streamEvent is the JSON body of one SSE event.
type streamEvent struct {
	Kind    string                 `json:"kind"`
	Message *model.Message         `json:"message,omitempty"`
	Typing  *model.TypingIndicator `json:"typing,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Fatal   bool                   `json:"fatal,omitempty"`
	At      time.Time              `json:"at"`
}

func toStreamEvent(ev channel.Event) streamEvent {
	out := streamEvent{
		Kind:    ev.Kind.String(),
		Message: ev.Message,
		Typing:  ev.Typing,
		Reason:  ev.Reason,
		Fatal:   ev.Fatal,
		At:      ev.At,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

// Stream handles GET /events. The first event is the current channel status;
// events that arrive while the client is slow are dropped.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementStreamClients()
	defer metrics.DecrementStreamClients()

	queue := make(chan channel.Event, streamBuffer)
	var dropped atomic.Int64
	unsubscribe := h.events.Subscribe(func(ev channel.Event) {
		select {
		case queue <- ev:
		default:
			dropped.Add(1)
		}
	})
	defer unsubscribe()

	if err := sendSSEEvent(w, flusher, "status", h.events.Status()); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			unsubscribe()
			if n := dropped.Load(); n > 0 {
				h.logger.Warn("event stream dropped events", zap.Int64("dropped", n))
			}
			h.logger.Debug("event stream client disconnected")
			return

		case ev := <-queue:
			if err := sendSSEEvent(w, flusher, ev.Kind.String(), toStreamEvent(ev)); err != nil {
				return
			}

		case now := <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", map[string]time.Time{"timestamp": now}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
