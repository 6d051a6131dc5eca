package model

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxMessageContent is the largest accepted message body in bytes.
const MaxMessageContent = 100000

var (
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrContentTooLong    = errors.New("content exceeds maximum length")
	ErrInvalidUTF8       = errors.New("content must be valid UTF-8")
	ErrEmptyConversation = errors.New("conversation ID cannot be empty")
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if len(content) > MaxMessageContent {
		return ErrContentTooLong
	}
	if !utf8.ValidString(content) {
		return ErrInvalidUTF8
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyConversation
	}
	return nil
}

// Validate checks a send request before it leaves the client.
func (r SendMessageRequest) Validate() error {
	if err := ValidateConversationID(r.ConversationID); err != nil {
		return err
	}
	return ValidateMessageContent(r.Content)
}
