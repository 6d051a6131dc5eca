package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/capitalize-ai/agent-console/pkg/logger"
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errors.New("connection reset")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, frame)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// scriptedDialer answers the n-th dial (1-based) with script(n).
type scriptedDialer struct {
	mu     sync.Mutex
	dials  int
	script func(n int) (Conn, error)
}

func (d *scriptedDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	return d.script(n)
}

func (d *scriptedDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

var errRefused = errors.New("connection refused")

func alwaysFail(int) (Conn, error) { return nil, errRefused }

type recorder struct {
	states chan Status
	events chan Event
}

func newManager(t *testing.T, max int, d Dialer) (*Manager, *recorder) {
	t.Helper()
	return newManagerWith(t, Config{
		URL:                  "ws://test/ws",
		ReconnectInterval:    10 * time.Millisecond,
		MaxReconnectAttempts: max,
	}, d)
}

func newManagerWith(t *testing.T, cfg Config, d Dialer) (*Manager, *recorder) {
	t.Helper()
	m := NewManager(cfg, d, logger.NewNop())
	rec := &recorder{states: make(chan Status, 128), events: make(chan Event, 128)}
	m.WatchState(func(s Status) { rec.states <- s })
	m.Subscribe(func(e Event) { rec.events <- e })
	t.Cleanup(m.Disconnect)
	return m, rec
}

// until collects statuses up to and including the first one in want.
func (r *recorder) until(t *testing.T, want State) []Status {
	t.Helper()
	var seen []Status
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-r.states:
			seen = append(seen, s)
			if s.State == want {
				return seen
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s, saw %v", want, seen)
		}
	}
}

func (r *recorder) event(t *testing.T, kind Kind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestFailuresBelowMaxNeverFail(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{script: func(n int) (Conn, error) {
		if n <= 4 {
			return nil, errRefused
		}
		return conn, nil
	}}
	m, rec := newManager(t, 5, d)

	m.Connect()
	seen := rec.until(t, Connected)

	attempts := 0
	for _, s := range seen {
		if s.State == Failed {
			t.Fatalf("reached Failed below the attempt limit: %v", seen)
		}
		if s.State == Reconnecting {
			attempts++
			if s.Attempt != attempts {
				t.Fatalf("expected Reconnecting(%d), got %v", attempts, s)
			}
		}
	}
	if attempts != 4 {
		t.Fatalf("expected 4 reconnect waits, got %d (%v)", attempts, seen)
	}
}

func TestExhaustionReachesFailed(t *testing.T) {
	d := &scriptedDialer{script: alwaysFail}
	m, rec := newManager(t, 3, d)

	m.Connect()
	seen := rec.until(t, Failed)

	want := []Status{
		{State: Connecting},
		{State: Reconnecting, Attempt: 1},
		{State: Connecting},
		{State: Reconnecting, Attempt: 2},
		{State: Connecting},
		{State: Failed},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: expected %v, got %v", i, want[i], seen[i])
		}
	}

	fatal := false
	for !fatal {
		e := rec.event(t, KindErrorOccurred)
		if e.Fatal {
			fatal = true
			if !errors.Is(e.Err, ErrExhausted) {
				t.Fatalf("expected ErrExhausted, got %v", e.Err)
			}
		}
	}

	time.Sleep(50 * time.Millisecond)
	if n := d.count(); n != 3 {
		t.Fatalf("expected no dials after Failed, got %d", n)
	}
	if s := m.Status(); s.State != Failed {
		t.Fatalf("expected Failed, got %v", s)
	}
}

func TestStalledHandshakeCountsAsFailure(t *testing.T) {
	var dials atomic.Int32
	d := DialerFunc(func(ctx context.Context, _ string) (Conn, error) {
		dials.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m, rec := newManagerWith(t, Config{
		URL:                  "ws://test/ws",
		ReconnectInterval:    10 * time.Millisecond,
		MaxReconnectAttempts: 2,
		HandshakeTimeout:     20 * time.Millisecond,
	}, d)

	m.Connect()
	seen := rec.until(t, Failed)

	want := []Status{
		{State: Connecting},
		{State: Reconnecting, Attempt: 1},
		{State: Connecting},
		{State: Failed},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: expected %v, got %v", i, want[i], seen[i])
		}
	}

	e := rec.event(t, KindErrorOccurred)
	if !errors.Is(e.Err, context.DeadlineExceeded) {
		t.Fatalf("expected the handshake deadline as cause, got %v", e.Err)
	}
	if n := dials.Load(); n != 2 {
		t.Fatalf("expected 2 dials, got %d", n)
	}
}

func TestConnectAfterFailedStartsFreshCycle(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{script: func(n int) (Conn, error) {
		if n == 1 {
			return nil, errRefused
		}
		return conn, nil
	}}
	m, rec := newManager(t, 1, d)

	m.Connect()
	rec.until(t, Failed)

	m.Connect()
	rec.until(t, Connected)
}

func TestConnectIsIdempotent(t *testing.T) {
	d := &scriptedDialer{script: func(int) (Conn, error) { return newFakeConn(), nil }}
	m, rec := newManager(t, 3, d)

	m.Connect()
	rec.until(t, Connected)
	m.Connect()
	m.Connect()

	if n := d.count(); n != 1 {
		t.Fatalf("expected a single dial, got %d", n)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{script: func(int) (Conn, error) { return conn, nil }}
	m, rec := newManager(t, 3, d)

	m.Connect()
	rec.until(t, Connected)
	rec.event(t, KindConnected)

	m.Disconnect()
	if s := m.Status(); s.State != Disconnected {
		t.Fatalf("expected Disconnected, got %v", s)
	}
	m.Disconnect()
	if s := m.Status(); s.State != Disconnected {
		t.Fatalf("expected Disconnected after second call, got %v", s)
	}

	rec.event(t, KindDisconnected)
	time.Sleep(30 * time.Millisecond)
	for {
		select {
		case e := <-rec.events:
			if e.Kind == KindDisconnected {
				t.Fatal("duplicate Disconnected event")
			}
		default:
			if n := d.count(); n != 1 {
				t.Fatalf("expected no redial after Disconnect, got %d dials", n)
			}
			return
		}
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := &scriptedDialer{script: alwaysFail}
	m := NewManager(Config{
		URL:                  "ws://test/ws",
		ReconnectInterval:    40 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}, d, logger.NewNop())
	events := make(chan Event, 16)
	m.Subscribe(func(e Event) { events <- e })
	reconnecting := make(chan struct{}, 1)
	m.WatchState(func(s Status) {
		if s.State == Reconnecting {
			select {
			case reconnecting <- struct{}{}:
			default:
			}
		}
	})

	m.Connect()
	select {
	case <-reconnecting:
	case <-time.After(time.Second):
		t.Fatal("never reached Reconnecting")
	}
	m.Disconnect()

	time.Sleep(100 * time.Millisecond)
	if n := d.count(); n != 1 {
		t.Fatalf("expected the reconnect timer to be cancelled, got %d dials", n)
	}
	for len(events) > 0 {
		if e := <-events; e.Kind == KindDisconnected {
			t.Fatal("Disconnected emitted although the link never came up")
		}
	}
}

func TestUnexpectedCloseEmitsDisconnectedAndReconnects(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	d := &scriptedDialer{script: func(n int) (Conn, error) {
		if n == 1 {
			return first, nil
		}
		return second, nil
	}}
	m, rec := newManager(t, 3, d)

	m.Connect()
	rec.until(t, Connected)
	rec.event(t, KindConnected)

	first.Close()
	e := rec.event(t, KindDisconnected)
	if e.Reason == "" {
		t.Fatal("expected a reason on unexpected close")
	}
	seen := rec.until(t, Connected)
	if seen[0] != (Status{State: Reconnecting, Attempt: 1}) {
		t.Fatalf("expected Reconnecting(1) first, got %v", seen)
	}
	if n := d.count(); n != 2 {
		t.Fatalf("expected two dials, got %d", n)
	}
}

func TestUndecodableFrameKeepsState(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{script: func(int) (Conn, error) { return conn, nil }}
	m, rec := newManager(t, 3, d)

	m.Connect()
	rec.until(t, Connected)

	conn.frames <- []byte("not json")
	conn.frames <- []byte(`{"type":"presence","payload":{}}`)
	conn.frames <- []byte(`{"type":"message","payload":{"id":"m1","conversationId":"c1","content":"hi"}}`)

	for i := 0; i < 2; i++ {
		e := rec.event(t, KindErrorOccurred)
		if !errors.Is(e.Err, ErrDecode) || e.Fatal {
			t.Fatalf("expected non-fatal decode error, got %+v", e)
		}
	}
	e := rec.event(t, KindMessageReceived)
	if e.Message.ID != "m1" {
		t.Fatalf("unexpected message %+v", e.Message)
	}
	if s := m.Status(); s.State != Connected {
		t.Fatalf("decode errors must not change state, got %v", s)
	}
}

func TestSend(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{script: func(int) (Conn, error) { return conn, nil }}
	m, rec := newManager(t, 3, d)

	if err := m.Send(context.Background(), CommandJoin, map[string]string{"conversationId": "c1"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before connect, got %v", err)
	}

	m.Connect()
	rec.until(t, Connected)

	if err := m.Send(context.Background(), CommandJoin, map[string]string{"conversationId": "c1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := conn.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one frame, got %d", len(sent))
	}
	var env struct {
		Type      string            `json:"type"`
		Payload   map[string]string `json:"payload"`
		Timestamp time.Time         `json:"timestamp"`
	}
	if err := json.Unmarshal(sent[0], &env); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if env.Type != CommandJoin || env.Payload["conversationId"] != "c1" || env.Timestamp.IsZero() {
		t.Fatalf("unexpected envelope %+v", env)
	}

	m.Disconnect()
	if err := m.Send(context.Background(), CommandTyping, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after disconnect, got %v", err)
	}
}
