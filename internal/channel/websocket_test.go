package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"nhooyr.io/websocket"

	"github.com/capitalize-ai/agent-console/pkg/logger"
)

func TestWebSocketRoundTrip(t *testing.T) {
	commands := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "") //nolint:errcheck

		ctx := r.Context()
		frame := `{"type":"message","payload":{"id":"m1","conversationId":"c1","sender":"AGENT","content":"welcome"}}`
		if err := c.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
			return
		}
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			commands <- data
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	d, err := DialerFor(url, TransportOptions{Token: "secret"})
	if err != nil {
		t.Fatalf("dialer: %v", err)
	}
	m := NewManager(Config{URL: url, ReconnectInterval: 20 * time.Millisecond, MaxReconnectAttempts: 2}, d, logger.NewNop())
	defer m.Disconnect()

	events := make(chan Event, 16)
	m.Subscribe(func(e Event) { events <- e })
	m.Connect()

	var got *Event
	deadline := time.After(3 * time.Second)
	for got == nil {
		select {
		case e := <-events:
			if e.Kind == KindMessageReceived {
				got = &e
			}
		case <-deadline:
			t.Fatalf("no message received, status %v", m.Status())
		}
	}
	if got.Message.Content != "welcome" {
		t.Fatalf("unexpected message %+v", got.Message)
	}

	if err := m.Send(context.Background(), CommandJoin, map[string]string{"conversationId": "c1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case cmd := <-commands:
		if gjson.GetBytes(cmd, "type").String() != CommandJoin || gjson.GetBytes(cmd, "payload.conversationId").String() != "c1" {
			t.Fatalf("unexpected command %s", cmd)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the join command")
	}
}

func TestWebSocketHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	m := NewManager(Config{URL: url, ReconnectInterval: 5 * time.Millisecond, MaxReconnectAttempts: 2}, WebSocketDialer{}, logger.NewNop())
	defer m.Disconnect()

	failed := make(chan struct{})
	m.WatchState(func(s Status) {
		if s.State == Failed {
			close(failed)
		}
	})
	m.Connect()

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected Failed after rejected handshakes, status %v", m.Status())
	}
}

func TestWebSocketBinaryFrameReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "") //nolint:errcheck

		ctx := r.Context()
		if err := c.Write(ctx, websocket.MessageBinary, []byte{0x1, 0x2, 0x3}); err != nil {
			return
		}
		frame := `{"type":"message","payload":{"id":"m2","conversationId":"c1","sender":"AGENT","content":"after"}}`
		if err := c.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
			return
		}
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	m := NewManager(Config{URL: url, ReconnectInterval: 20 * time.Millisecond, MaxReconnectAttempts: 2}, WebSocketDialer{}, logger.NewNop())
	defer m.Disconnect()

	events := make(chan Event, 16)
	m.Subscribe(func(e Event) { events <- e })
	m.Connect()

	var sawDecodeErr bool
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			switch e.Kind {
			case KindErrorOccurred:
				if !errors.Is(e.Err, ErrDecode) {
					t.Fatalf("expected ErrDecode, got %v", e.Err)
				}
				sawDecodeErr = true
			case KindDisconnected:
				t.Fatalf("binary frame dropped the link: %s", e.Reason)
			case KindMessageReceived:
				if !sawDecodeErr {
					t.Fatal("binary frame was not reported")
				}
				if e.Message.Content != "after" {
					t.Fatalf("unexpected message %+v", e.Message)
				}
				if s := m.Status(); s.State != Connected {
					t.Fatalf("expected Connected, got %v", s)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no message after binary frame, status %v", m.Status())
		}
	}
}
