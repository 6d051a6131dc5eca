package model

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "USER"
	SenderAgent  Sender = "AGENT"
	SenderSystem Sender = "SYSTEM"
)

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeFile   MessageType = "FILE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// IsMessageType reports whether s names a known message content type.
func IsMessageType(s string) bool {
	switch MessageType(s) {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message is a single chat message. Immutable once created.
type Message struct {
	ID              string           `json:"id"`
	ConversationID  string           `json:"conversationId"`
	Sender          Sender           `json:"sender"`
	SenderName      string           `json:"senderName,omitempty"`
	SenderAvatarURL string           `json:"senderAvatarUrl,omitempty"`
	Type            MessageType      `json:"type,omitempty"`
	Content         string           `json:"content"`
	Metadata        *MessageMetadata `json:"metadata,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	IsRead          bool             `json:"isRead"`
}

// MessageMetadata carries attachment details for non-text messages.
type MessageMetadata struct {
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// SendMessageRequest is the request to post a message to a conversation.
type SendMessageRequest struct {
	ConversationID string      `json:"conversationId"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
}
