// Package channel manages the lifecycle of the duplex realtime connection and turns
// its frames into a closed set of typed events.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/agent-console/internal/model"
)

var (
	// ErrNotConnected is returned by Send while the channel is not Connected.
	ErrNotConnected = errors.New("channel not connected")
	// ErrDecode marks an inbound frame that is not a known envelope.
	ErrDecode = errors.New("undecodable frame")
	// ErrExhausted is carried by the terminal error event.
	ErrExhausted = errors.New("reconnect attempts exhausted")
)

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

// AllStates lists every state, in declaration order.
var AllStates = []State{Disconnected, Connecting, Connected, Reconnecting, Failed}

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the state plus the consecutive failure count while Reconnecting.
type Status struct {
	State   State `json:"state"`
	Attempt int   `json:"attempt,omitempty"`
}

func (s Status) String() string {
	if s.State == Reconnecting {
		return fmt.Sprintf("%s(%d)", s.State, s.Attempt)
	}
	return s.State.String()
}

// Kind discriminates events.
type Kind int

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindMessageReceived
	KindTypingChanged
	KindErrorOccurred
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindMessageReceived:
		return "message_received"
	case KindTypingChanged:
		return "typing_changed"
	case KindErrorOccurred:
		return "error_occurred"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one item of the event stream. Only the fields of its Kind are set.
type Event struct {
	Kind Kind
	// Message is set for KindMessageReceived.
	Message *model.Message
	// Typing is set for KindTypingChanged.
	Typing *model.TypingIndicator
	// Reason explains a KindDisconnected.
	Reason string
	// Err and Fatal are set for KindErrorOccurred. Fatal means the manager reached Failed.
	Err   error
	Fatal bool
	At    time.Time
}

// Conn is an established duplex link carrying whole JSON frames.
type Conn interface {
	// Read blocks until the next frame or until the link fails or closes.
	// An error wrapping ErrDecode reports one unusable frame; the link stays open.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens links.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
