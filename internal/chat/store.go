// Package chat holds the conversation state of a session and the typing indicator
// derived from it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/channel"
	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/internal/notify"
	"github.com/capitalize-ai/agent-console/pkg/logger"
	"github.com/capitalize-ai/agent-console/pkg/metrics"
)

var (
	// ErrConversationNotFound is returned for ids absent from the local collection.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrAgentRequired is returned when a conversation is opened without an agent.
	ErrAgentRequired = errors.New("agent id is required")
)

// API is the remote side of the conversation collection.
type API interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (model.Conversation, error)
	CreateConversation(ctx context.Context, req model.CreateConversationRequest) (model.Conversation, error)
	SendMessage(ctx context.Context, req model.SendMessageRequest) (model.Message, error)
	MarkAsRead(ctx context.Context, conversationID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// EventSource delivers channel events in production order.
type EventSource interface {
	Subscribe(fn func(channel.Event)) (unsubscribe func())
}

// Channel is the realtime link as seen by the store.
type Channel interface {
	EventSource
	Send(ctx context.Context, msgType string, payload any) error
}

type joinPayload struct {
	ConversationID string `json:"conversationId"`
}

// Snapshot is an immutable view of the store. Slices must not be modified.
type Snapshot struct {
	Conversations []model.Conversation
	// Active is nil when no conversation is selected.
	Active *model.Conversation
}

// ActiveID returns the id of the active conversation or "".
func (s Snapshot) ActiveID() string {
	if s.Active == nil {
		return ""
	}
	return s.Active.ID
}

// Store exclusively owns the conversation collection and the active selection.
// Every commit replaces the affected values instead of mutating them, so
// snapshots handed out earlier stay valid.
type Store struct {
	api API
	ch  Channel
	log *logger.Logger

	mu       sync.Mutex
	convs    []model.Conversation
	activeID string

	feed  notify.Broadcaster[Snapshot]
	unsub func()
}

// NewStore creates an empty store fed by ch.
func NewStore(api API, ch Channel, log *logger.Logger) *Store {
	s := &Store{
		api: api,
		ch:  ch,
		log: logger.OrGlobal(log).Named("chat"),
	}
	s.unsub = ch.Subscribe(s.handleEvent)
	return s
}

// Close detaches the store from the channel.
func (s *Store) Close() {
	s.unsub()
}

// Subscribe registers fn for every committed snapshot.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.feed.Subscribe(fn)
}

// Snapshot returns the current view.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ActiveID returns the id of the active conversation or "".
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// GetConversations loads every conversation and replaces the local collection.
// The active selection survives when its conversation is still present.
func (s *Store) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	convs, err := s.api.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	if convs == nil {
		convs = []model.Conversation{}
	}

	s.mu.Lock()
	s.convs = convs
	if s.indexLocked(s.activeID) < 0 {
		s.activeID = ""
	}
	s.commitLocked()
	s.mu.Unlock()
	s.feed.Flush()

	s.log.Info("conversations loaded", zap.Int("count", len(convs)))
	return convs, nil
}

// GetConversation fetches one conversation and replaces or inserts it locally.
func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	if err := model.ValidateConversationID(id); err != nil {
		return model.Conversation{}, err
	}
	conv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("get conversation %s: %w", id, err)
	}

	s.mu.Lock()
	next := make([]model.Conversation, 0, len(s.convs)+1)
	if i := s.indexLocked(conv.ID); i >= 0 {
		next = append(next, s.convs...)
		next[i] = conv
	} else {
		next = append(next, conv)
		next = append(next, s.convs...)
	}
	s.convs = next
	s.commitLocked()
	s.mu.Unlock()
	s.feed.Flush()

	return conv, nil
}

// CreateConversation opens a conversation, puts it first and makes it active.
func (s *Store) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (model.Conversation, error) {
	if req.AgentID == "" {
		return model.Conversation{}, ErrAgentRequired
	}
	conv, err := s.api.CreateConversation(ctx, req)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	s.mu.Lock()
	next := make([]model.Conversation, 0, len(s.convs)+1)
	next = append(next, conv)
	for _, c := range s.convs {
		if c.ID != conv.ID {
			next = append(next, c)
		}
	}
	s.convs = next
	s.activeID = conv.ID
	s.commitLocked()
	s.mu.Unlock()
	s.feed.Flush()

	s.log.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("agent_id", conv.AgentID),
	)
	s.join(conv.ID)
	return conv, nil
}

// SetActiveConversation selects the active conversation; "" clears it.
// Selecting a conversation sends a best-effort join on the channel.
func (s *Store) SetActiveConversation(id string) error {
	s.mu.Lock()
	if id != "" && s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	s.activeID = id
	s.commitLocked()
	s.mu.Unlock()
	s.feed.Flush()

	if id != "" {
		s.join(id)
	}
	return nil
}

// SendMessage posts a message and merges the stored copy through the same path
// as realtime deliveries, so a later echo of it is ignored.
func (s *Store) SendMessage(ctx context.Context, req model.SendMessageRequest) (model.Message, error) {
	if req.Type == "" {
		req.Type = model.MessageTypeText
	}
	if err := req.Validate(); err != nil {
		return model.Message{}, err
	}
	msg, err := s.api.SendMessage(ctx, req)
	if err != nil {
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}
	s.Merge(msg)
	return msg, nil
}

// MarkAsRead marks every message of a conversation as read, remotely and locally.
func (s *Store) MarkAsRead(ctx context.Context, conversationID string) error {
	if err := model.ValidateConversationID(conversationID); err != nil {
		return err
	}
	if err := s.api.MarkAsRead(ctx, conversationID); err != nil {
		return fmt.Errorf("mark %s read: %w", conversationID, err)
	}

	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.feed.Flush()
	}()
	i := s.indexLocked(conversationID)
	if i < 0 {
		return nil
	}
	conv := s.convs[i]
	if conv.UnreadCount() == 0 {
		return nil
	}
	msgs := make([]model.Message, len(conv.Messages))
	for j, m := range conv.Messages {
		m.IsRead = true
		msgs[j] = m
	}
	conv.Messages = msgs
	if conv.LastMessage != nil {
		last := *conv.LastMessage
		last.IsRead = true
		conv.LastMessage = &last
	}
	s.replaceLocked(i, conv)
	s.commitLocked()
	return nil
}

// DeleteConversation removes a conversation remotely, then locally.
// Deleting the active conversation clears the selection.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := model.ValidateConversationID(conversationID); err != nil {
		return err
	}
	if err := s.api.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}

	s.mu.Lock()
	if i := s.indexLocked(conversationID); i >= 0 {
		next := make([]model.Conversation, 0, len(s.convs)-1)
		next = append(next, s.convs[:i]...)
		next = append(next, s.convs[i+1:]...)
		s.convs = next
	}
	if s.activeID == conversationID {
		s.activeID = ""
	}
	s.commitLocked()
	s.mu.Unlock()
	s.feed.Flush()

	s.log.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// SendTyping tells the agent whether the user is typing.
func (s *Store) SendTyping(ctx context.Context, conversationID string, isTyping bool) error {
	if err := model.ValidateConversationID(conversationID); err != nil {
		return err
	}
	return s.ch.Send(ctx, channel.CommandTyping, model.TypingIndicator{
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
}

// Merge applies one message: appended in arrival order to its conversation, which
// gets it as last message. Known ids and unknown conversations are ignored.
func (s *Store) Merge(msg model.Message) {
	s.mu.Lock()
	outcome := s.mergeLocked(msg)
	s.mu.Unlock()
	s.feed.Flush()

	metrics.MessagesMergedTotal.WithLabelValues(outcome).Inc()
	if outcome == metrics.MergeDropped {
		s.log.Debug("message for unknown conversation dropped",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("message_id", msg.ID),
		)
	}
}

func (s *Store) mergeLocked(msg model.Message) string {
	i := s.indexLocked(msg.ConversationID)
	if i < 0 {
		return metrics.MergeDropped
	}
	conv := s.convs[i]
	if conv.HasMessage(msg.ID) {
		return metrics.MergeDuplicate
	}

	msgs := make([]model.Message, len(conv.Messages), len(conv.Messages)+1)
	copy(msgs, conv.Messages)
	conv.Messages = append(msgs, msg)
	last := msg
	conv.LastMessage = &last
	conv.LastMessageAt = msg.Timestamp

	s.replaceLocked(i, conv)
	s.commitLocked()
	return metrics.MergeApplied
}

func (s *Store) handleEvent(ev channel.Event) {
	switch ev.Kind {
	case channel.KindMessageReceived:
		if ev.Message != nil {
			s.Merge(*ev.Message)
		}
	case channel.KindConnected:
		if id := s.ActiveID(); id != "" {
			s.join(id)
		}
	}
}

func (s *Store) join(id string) {
	if err := s.ch.Send(context.Background(), channel.CommandJoin, joinPayload{ConversationID: id}); err != nil {
		s.log.Debug("join not sent", zap.String("conversation_id", id), zap.Error(err))
	}
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.convs {
		if s.convs[i].ID == id {
			return i
		}
	}
	return -1
}

// replaceLocked swaps conversation i in a fresh slice.
func (s *Store) replaceLocked(i int, conv model.Conversation) {
	next := make([]model.Conversation, len(s.convs))
	copy(next, s.convs)
	next[i] = conv
	s.convs = next
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Conversations: s.convs}
	if i := s.indexLocked(s.activeID); i >= 0 {
		active := s.convs[i]
		snap.Active = &active
	}
	return snap
}

func (s *Store) commitLocked() {
	s.feed.Enqueue(s.snapshotLocked())
}
