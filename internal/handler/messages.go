package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/agent-console/internal/model"
)

type sendBody struct {
	Content string            `json:"content"`
	Type    model.MessageType `json:"type,omitempty"`
}

type typingBody struct {
	IsTyping bool `json:"isTyping"`
}

// Send handles POST /conversations/{id}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.store.SendMessage(r.Context(), model.SendMessageRequest{
		ConversationID: chi.URLParam(r, "id"),
		Content:        body.Content,
		Type:           body.Type,
	})
	if err != nil {
		h.fail(w, "failed to send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Typing handles PUT /conversations/{id}/typing
func (h *ConversationHandler) Typing(w http.ResponseWriter, r *http.Request) {
	var body typingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.SendTyping(r.Context(), chi.URLParam(r, "id"), body.IsTyping); err != nil {
		h.fail(w, "failed to send typing indicator", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
