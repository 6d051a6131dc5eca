package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/chat"
	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// Conversations is the part of the conversation store the handlers drive.
type Conversations interface {
	Snapshot() chat.Snapshot
	GetConversation(ctx context.Context, id string) (model.Conversation, error)
	CreateConversation(ctx context.Context, req model.CreateConversationRequest) (model.Conversation, error)
	SetActiveConversation(id string) error
	SendMessage(ctx context.Context, req model.SendMessageRequest) (model.Message, error)
	MarkAsRead(ctx context.Context, conversationID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	SendTyping(ctx context.Context, conversationID string, isTyping bool) error
}

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	store  Conversations
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(store Conversations, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		store:  store,
		logger: logger.OrGlobal(log),
	}
}

// Routes mounts the conversation endpoints on r.
func (h *ConversationHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Put("/active", h.Activate)
		r.Put("/read", h.MarkRead)
		r.Put("/typing", h.Typing)
		r.Post("/messages", h.Send)
	})
}

type conversationList struct {
	Conversations []model.Conversation `json:"conversations"`
	ActiveID      string               `json:"activeConversationId,omitempty"`
}

// List handles GET /conversations from the local snapshot.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	convs := snap.Conversations
	if convs == nil {
		convs = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversationList{
		Conversations: convs,
		ActiveID:      snap.ActiveID(),
	})
}

// Get handles GET /conversations/{id}, refreshing it from the API.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "failed to get conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Create handles POST /conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.store.CreateConversation(r.Context(), req)
	if err != nil {
		h.fail(w, "failed to create conversation", err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// Activate handles PUT /conversations/{id}/active
func (h *ConversationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SetActiveConversation(chi.URLParam(r, "id")); err != nil {
		h.fail(w, "failed to activate conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead handles PUT /conversations/{id}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.store.MarkAsRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "failed to mark conversation read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "failed to delete conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	writeError(w, status, err.Error())
}
