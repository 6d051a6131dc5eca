package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/notify"
	"github.com/capitalize-ai/agent-console/pkg/logger"
	"github.com/capitalize-ai/agent-console/pkg/metrics"
)

const (
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultHandshakeTimeout     = 10 * time.Second
	defaultWriteTimeout         = 5 * time.Second
)

// Config holds the channel settings. It is fixed for the lifetime of a Manager.
type Config struct {
	URL string
	// ReconnectInterval is the constant delay between a failure and the next dial.
	ReconnectInterval time.Duration
	// MaxReconnectAttempts is the number of consecutive failures that moves the
	// manager to Failed.
	MaxReconnectAttempts int
	// HandshakeTimeout bounds one dial; a dial that does not finish in time
	// counts as a failed attempt.
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	return c
}

var stateNames = func() []string {
	names := make([]string, len(AllStates))
	for i, s := range AllStates {
		names[i] = s.String()
	}
	return names
}()

// Manager owns one duplex link and its reconnect cycle.
//
// Every dial starts a new epoch; results of dials and read loops from an older
// epoch are ignored, so Disconnect never races with a late handshake.
type Manager struct {
	cfg    Config
	dialer Dialer
	log    *logger.Logger

	mu       sync.Mutex
	status   Status
	failures int
	bo       backoff.BackOff
	epoch    uint64
	conn     Conn
	cancel   context.CancelFunc
	timer    *time.Timer

	writeMu sync.Mutex

	events notify.Broadcaster[Event]
	states notify.Broadcaster[Status]
}

// NewManager creates a manager in the Disconnected state.
func NewManager(cfg Config, dialer Dialer, log *logger.Logger) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:    cfg,
		dialer: dialer,
		log:    logger.OrGlobal(log).Named("channel"),
		bo: backoff.WithMaxRetries(
			backoff.NewConstantBackOff(cfg.ReconnectInterval),
			uint64(cfg.MaxReconnectAttempts-1),
		),
	}
	metrics.SetChannelState(Disconnected.String(), stateNames)
	return m
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers fn for every event, in the order the manager produced them.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.Subscribe(fn)
}

// WatchState registers fn for every status transition.
func (m *Manager) WatchState(fn func(Status)) (unsubscribe func()) {
	return m.states.Subscribe(fn)
}

// Connect starts dialing. It does nothing while a link is up or being established.
// From Failed it starts a fresh cycle with a full attempt budget.
func (m *Manager) Connect() {
	m.mu.Lock()
	switch m.status.State {
	case Connected, Connecting, Reconnecting:
		m.mu.Unlock()
		return
	}
	m.failures = 0
	m.bo.Reset()
	m.dialLocked()
	m.mu.Unlock()
	m.flush()
}

// Disconnect closes the link and cancels any pending dial or reconnect.
// A Disconnected event is emitted only when a link was up.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.status.State == Disconnected {
		m.mu.Unlock()
		return
	}
	wasConnected := m.status.State == Connected

	m.epoch++
	conn := m.stopLocked()
	m.failures = 0
	m.setStateLocked(Status{State: Disconnected})
	if wasConnected {
		m.emitLocked(Event{Kind: KindDisconnected, Reason: "closed by client"})
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.flush()

	m.log.Info("channel disconnected by client")
}

// Send writes a {type, payload, timestamp} command. It fails with ErrNotConnected
// unless the link is up; nothing is queued.
func (m *Manager) Send(ctx context.Context, msgType string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.status.State == Connected && conn != nil
	m.mu.Unlock()

	if !connected {
		metrics.RecordSend(msgType, ErrNotConnected)
		return ErrNotConnected
	}

	frame, err := encode(msgType, payload, time.Now())
	if err != nil {
		metrics.RecordSend(msgType, err)
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	defer cancel()

	m.writeMu.Lock()
	err = conn.Write(wctx, frame)
	m.writeMu.Unlock()
	metrics.RecordSend(msgType, err)
	if err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

func (m *Manager) dialLocked() {
	m.epoch++
	epoch := m.epoch
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setStateLocked(Status{State: Connecting})
	go m.dial(ctx, epoch)
}

func (m *Manager) dial(ctx context.Context, epoch uint64) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	conn, err := m.dialer.Dial(dialCtx, m.cfg.URL)
	cancel()

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.log.Warn("channel handshake failed", zap.Int("attempt", m.failures+1), zap.Error(err))
		m.emitLocked(Event{Kind: KindErrorOccurred, Err: fmt.Errorf("dial %s: %w", m.cfg.URL, err)})
		m.failLocked()
		m.mu.Unlock()
		m.flush()
		return
	}

	m.conn = conn
	m.failures = 0
	m.bo.Reset()
	m.setStateLocked(Status{State: Connected})
	m.emitLocked(Event{Kind: KindConnected})
	m.mu.Unlock()
	m.flush()

	m.log.Info("channel connected", zap.String("url", m.cfg.URL))
	m.readLoop(ctx, epoch, conn)
}

func (m *Manager) readLoop(ctx context.Context, epoch uint64, conn Conn) {
	for {
		frame, err := conn.Read(ctx)

		m.mu.Lock()
		if epoch != m.epoch {
			m.mu.Unlock()
			return
		}
		if errors.Is(err, ErrDecode) {
			m.log.Debug("frame dropped", zap.Error(err))
			m.emitLocked(Event{Kind: KindErrorOccurred, Err: err})
			m.mu.Unlock()
			m.flush()
			continue
		}
		if err != nil {
			m.conn = nil
			m.log.Warn("channel closed unexpectedly", zap.Error(err))
			m.emitLocked(Event{Kind: KindDisconnected, Reason: err.Error()})
			m.failLocked()
			m.mu.Unlock()
			_ = conn.Close()
			m.flush()
			return
		}

		ev, derr := Decode(frame)
		if derr != nil {
			m.log.Debug("frame dropped", zap.Error(derr))
			m.emitLocked(Event{Kind: KindErrorOccurred, Err: derr})
		} else {
			m.emitLocked(ev)
		}
		m.mu.Unlock()
		m.flush()
	}
}

// failLocked counts a failure and either schedules the next dial or gives up.
func (m *Manager) failLocked() {
	m.failures++
	m.stopLocked()

	wait := m.bo.NextBackOff()
	if wait == backoff.Stop {
		m.epoch++
		m.setStateLocked(Status{State: Failed})
		m.emitLocked(Event{
			Kind:  KindErrorOccurred,
			Err:   fmt.Errorf("%w after %d attempts", ErrExhausted, m.failures),
			Fatal: true,
		})
		m.log.Error("channel failed", zap.Int("attempts", m.failures))
		return
	}

	metrics.ChannelReconnectAttempts.Inc()
	m.setStateLocked(Status{State: Reconnecting, Attempt: m.failures})
	epoch := m.epoch
	m.timer = time.AfterFunc(wait, func() {
		m.retry(epoch)
	})
}

func (m *Manager) retry(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.status.State != Reconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.dialLocked()
	m.mu.Unlock()
	m.flush()
}

// stopLocked cancels the timer and dial of the current epoch and detaches the
// link, which the caller closes after unlocking.
func (m *Manager) stopLocked() Conn {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	return conn
}

func (m *Manager) setStateLocked(s Status) {
	m.status = s
	metrics.SetChannelState(s.State.String(), stateNames)
	m.log.Debug("channel state", zap.Stringer("state", s))
	m.states.Enqueue(s)
}

func (m *Manager) emitLocked(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	metrics.ChannelEventsTotal.WithLabelValues(ev.Kind.String()).Inc()
	m.events.Enqueue(ev)
}

func (m *Manager) flush() {
	m.states.Flush()
	m.events.Flush()
}
