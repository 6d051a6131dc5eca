package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/capitalize-ai/agent-console/internal/model"
)

// Inbound frame types.
const (
	TypeTyping      = "typing"
	TypeMessage     = "message"
	TypeChatMessage = "chat_message"
)

// Outbound command types.
const (
	CommandJoin   = "join"
	CommandTyping = "typing"
)

// envelope is the outbound command frame.
type envelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func encode(msgType string, payload any, at time.Time) ([]byte, error) {
	frame, err := json.Marshal(envelope{Type: msgType, Payload: payload, Timestamp: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", msgType, err)
	}
	return frame, nil
}

// Decode maps one inbound frame to a MessageReceived or TypingChanged event.
//
// Recognised shapes:
//
//	{"type":"typing", "data"|"payload": {conversationId, agentId, isTyping}}
//	{"type":"message"|"chat_message", "payload"|"data": <message>}
//	<message>  (a bare message whose type is TEXT, IMAGE, FILE or SYSTEM)
//
// Anything else returns an error wrapping ErrDecode.
func Decode(frame []byte) (Event, error) {
	if !gjson.ValidBytes(frame) {
		return Event{}, fmt.Errorf("%w: invalid JSON", ErrDecode)
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: frame is not an object", ErrDecode)
	}

	typ := root.Get("type").String()
	switch {
	case typ == TypeTyping:
		body := firstObject(root, "data", "payload")
		if !body.Exists() {
			return Event{}, fmt.Errorf("%w: typing frame without body", ErrDecode)
		}
		var ind model.TypingIndicator
		if err := json.Unmarshal([]byte(body.Raw), &ind); err != nil {
			return Event{}, fmt.Errorf("%w: typing: %v", ErrDecode, err)
		}
		if ind.ConversationID == "" {
			return Event{}, fmt.Errorf("%w: typing frame without conversationId", ErrDecode)
		}
		return Event{Kind: KindTypingChanged, Typing: &ind}, nil

	case typ == TypeMessage || typ == TypeChatMessage:
		body := firstObject(root, "payload", "data")
		if !body.Exists() {
			return Event{}, fmt.Errorf("%w: %s frame without body", ErrDecode, typ)
		}
		return decodeMessage(body.Raw)

	case model.IsMessageType(typ):
		return decodeMessage(root.Raw)

	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrDecode, typ)
	}
}

func decodeMessage(raw string) (Event, error) {
	var msg model.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Event{}, fmt.Errorf("%w: message: %v", ErrDecode, err)
	}
	if msg.ID == "" || msg.ConversationID == "" {
		return Event{}, fmt.Errorf("%w: message without id or conversationId", ErrDecode)
	}
	return Event{Kind: KindMessageReceived, Message: &msg}, nil
}

func firstObject(root gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := root.Get(k); v.IsObject() {
			return v
		}
	}
	return gjson.Result{}
}
