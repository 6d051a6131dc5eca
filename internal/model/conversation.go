// Package model defines the data structures shared by the console client.
package model

import (
	"time"
)

// Conversation is a chat thread between the user and one agent.
// Values handed out by the store are snapshots; Messages must be treated as read-only.
type Conversation struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agentId"`
	AgentName      string    `json:"agentName"`
	AgentAvatarURL string    `json:"agentAvatarUrl,omitempty"`
	UserID         string    `json:"userId"`
	Messages       []Message `json:"messages"`
	LastMessage    *Message  `json:"lastMessage,omitempty"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	CreatedAt      time.Time `json:"createdAt"`
	IsActive       bool      `json:"isActive"`
}

// ParticipantID returns the remote participant of the conversation.
func (c Conversation) ParticipantID() string {
	return c.AgentID
}

// HasMessage reports whether a message with the given id is already part of the conversation.
func (c Conversation) HasMessage(id string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return true
		}
	}
	return false
}

// UnreadCount returns the number of messages not yet marked read.
func (c Conversation) UnreadCount() int {
	n := 0
	for i := range c.Messages {
		if !c.Messages[i].IsRead {
			n++
		}
	}
	return n
}

// CreateConversationRequest is the request to open a conversation with an agent.
type CreateConversationRequest struct {
	AgentID        string `json:"agentId"`
	InitialMessage string `json:"initialMessage,omitempty"`
}

// TypingIndicator is an ephemeral typing signal. It never enters conversation history.
type TypingIndicator struct {
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}
