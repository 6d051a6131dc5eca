package channel

import (
	"errors"
	"testing"

	"github.com/capitalize-ai/agent-console/internal/model"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		kind    Kind
		wantErr bool
	}{
		{
			name:  "typing with data",
			frame: `{"type":"typing","data":{"conversationId":"c1","agentId":"a1","isTyping":true}}`,
			kind:  KindTypingChanged,
		},
		{
			name:  "typing with payload",
			frame: `{"type":"typing","payload":{"conversationId":"c1","isTyping":false}}`,
			kind:  KindTypingChanged,
		},
		{
			name:  "message envelope",
			frame: `{"type":"message","payload":{"id":"m1","conversationId":"c1","sender":"AGENT","content":"hello","timestamp":"2024-05-01T10:00:00Z"}}`,
			kind:  KindMessageReceived,
		},
		{
			name:  "chat_message envelope with data",
			frame: `{"type":"chat_message","data":{"id":"m2","conversationId":"c1","content":"x"}}`,
			kind:  KindMessageReceived,
		},
		{
			name:  "bare message",
			frame: `{"id":"m3","conversationId":"c2","type":"TEXT","sender":"AGENT","content":"hi"}`,
			kind:  KindMessageReceived,
		},
		{name: "invalid json", frame: `{"type":`, wantErr: true},
		{name: "array", frame: `[1,2]`, wantErr: true},
		{name: "unknown type", frame: `{"type":"presence"}`, wantErr: true},
		{name: "typing without body", frame: `{"type":"typing"}`, wantErr: true},
		{name: "typing without conversation", frame: `{"type":"typing","data":{"isTyping":true}}`, wantErr: true},
		{name: "message without id", frame: `{"type":"message","payload":{"conversationId":"c1"}}`, wantErr: true},
		{name: "message with bad timestamp", frame: `{"type":"message","payload":{"id":"m1","conversationId":"c1","timestamp":"yesterday"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			if tt.wantErr {
				if !errors.Is(err, ErrDecode) {
					t.Fatalf("expected ErrDecode, got %v (%+v)", err, ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Kind != tt.kind {
				t.Fatalf("expected %s, got %s", tt.kind, ev.Kind)
			}
		})
	}
}

func TestDecodeFields(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"typing","data":{"conversationId":"c1","agentId":"a1","isTyping":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Typing == nil || ev.Typing.ConversationID != "c1" || !ev.Typing.IsTyping {
		t.Fatalf("unexpected indicator %+v", ev.Typing)
	}

	ev, err = Decode([]byte(`{"id":"m3","conversationId":"c2","type":"IMAGE","sender":"AGENT","content":"pic","metadata":{"imageUrl":"https://x/y.png"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := ev.Message
	if m.Type != model.MessageTypeImage || m.Sender != model.SenderAgent || m.Metadata == nil || m.Metadata.ImageURL == "" {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestDialerFor(t *testing.T) {
	if d, err := DialerFor("wss://host/ws", TransportOptions{Token: "t"}); err != nil {
		t.Fatalf("wss: %v", err)
	} else if ws, ok := d.(WebSocketDialer); !ok || ws.Header.Get("Authorization") != "Bearer t" {
		t.Fatalf("expected websocket dialer with auth header, got %#v", d)
	}
	if d, err := DialerFor("nats://host:4222", TransportOptions{}); err != nil {
		t.Fatalf("nats: %v", err)
	} else if _, ok := d.(NATSDialer); !ok {
		t.Fatalf("expected NATS dialer, got %#v", d)
	}
	if _, err := DialerFor("ftp://host", TransportOptions{}); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}
