package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/capitalize-ai/agent-console/internal/channel"
	"github.com/capitalize-ai/agent-console/internal/chat"
	"github.com/capitalize-ai/agent-console/internal/config"
	"github.com/capitalize-ai/agent-console/pkg/logger"
)

type pipeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return nil, errors.New("closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *pipeConn) Write(context.Context, []byte) error { return nil }

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func backend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/conversations":
			_, _ = io.WriteString(w, `[{"id":"c1","agentId":"a1","messages":[]}]`)
		case "/agents":
			_, _ = io.WriteString(w, `{"agents":[],"pagination":{"page":1,"pageSize":10,"totalItems":0,"totalPages":0}}`)
		case "/mcp-servers":
			_, _ = io.WriteString(w, `{"servers":[],"pagination":{"page":1,"pageSize":6,"totalItems":0,"totalPages":0}}`)
		case "/tools":
			_, _ = io.WriteString(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSessionEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.APIBaseURL = backend(t)
	cfg.ReconnectInterval = 10 * time.Millisecond

	conn := &pipeConn{in: make(chan []byte, 4), closed: make(chan struct{})}
	dialer := channel.DialerFunc(func(context.Context, string) (channel.Conn, error) { return conn, nil })

	s, err := New("s1", cfg, dialer, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	defer s.Close()

	if got := len(s.Store.Snapshot().Conversations); got != 1 {
		t.Fatalf("expected 1 conversation loaded, got %d", got)
	}

	merged := make(chan struct{}, 1)
	s.Store.Subscribe(func(snap chat.Snapshot) {
		if len(snap.Conversations) == 1 && len(snap.Conversations[0].Messages) == 1 {
			select {
			case merged <- struct{}{}:
			default:
			}
		}
	})
	conn.in <- []byte(`{"type":"message","payload":{"id":"m1","conversationId":"c1","sender":"AGENT","content":"hi"}}`)

	select {
	case <-merged:
	case <-time.After(2 * time.Second):
		t.Fatalf("message never merged, channel %v", s.Channel.Status())
	}

	st := s.State()
	if st.Channel.State != channel.Connected || st.Conversations != 1 || st.Unread != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	if _, ok := st.Catalogs["agents"]; !ok {
		t.Fatalf("missing agents catalog in %+v", st.Catalogs)
	}
}

func TestSessionRejectsUnknownScheme(t *testing.T) {
	cfg := config.Default()
	cfg.ChannelURL = "gopher://nowhere"
	if _, err := New("s1", cfg, nil, logger.NewNop()); err == nil {
		t.Fatal("expected an error for an unsupported channel scheme")
	}
}

func TestSessionAcceptsOpaqueToken(t *testing.T) {
	cfg := config.Default()
	cfg.APIToken = "opaque"
	dialer := channel.DialerFunc(func(context.Context, string) (channel.Conn, error) {
		return nil, errors.New("offline")
	})
	if _, err := New("s1", cfg, dialer, logger.NewNop()); err != nil {
		t.Fatalf("opaque tokens are passed through, got %v", err)
	}
}

func TestStartRetriesTransientConversationLoad(t *testing.T) {
	prev := loadRetryInterval
	loadRetryInterval = 5 * time.Millisecond
	defer func() { loadRetryInterval = prev }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/conversations":
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error":"warming up"}`)
				return
			}
			_, _ = io.WriteString(w, `[{"id":"c1","agentId":"a1","messages":[]}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	dialer := channel.DialerFunc(func(context.Context, string) (channel.Conn, error) {
		return nil, errors.New("offline")
	})
	s, err := New("s1", cfg, dialer, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	defer s.Close()

	if n := calls.Load(); n != 2 {
		t.Fatalf("expected one retry after a 503, got %d calls", n)
	}
	if got := len(s.Store.Snapshot().Conversations); got != 1 {
		t.Fatalf("expected the retried load to land, got %d conversations", got)
	}
}

func TestStartDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chat/conversations" {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	dialer := channel.DialerFunc(func(context.Context, string) (channel.Conn, error) {
		return nil, errors.New("offline")
	})
	s, err := New("s1", cfg, dialer, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start(context.Background())
	defer s.Close()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected a single attempt for a 403, got %d", n)
	}
}
