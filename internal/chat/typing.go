package chat

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/channel"
	"github.com/capitalize-ai/agent-console/internal/model"
	"github.com/capitalize-ai/agent-console/internal/notify"
	"github.com/capitalize-ai/agent-console/pkg/logger"
)

// ActiveSource reports the active conversation and its changes.
type ActiveSource interface {
	ActiveID() string
	Subscribe(fn func(Snapshot)) (unsubscribe func())
}

// Tracker derives whether the agent of the active conversation is typing.
// Only the latest indicator per conversation is kept.
type Tracker struct {
	log *logger.Logger

	mu       sync.Mutex
	latest   map[string]model.TypingIndicator
	activeID string
	typing   bool

	feed   notify.Broadcaster[bool]
	unsubs []func()
}

// NewTracker creates a tracker fed by channel events and the store's selection.
func NewTracker(events EventSource, active ActiveSource, log *logger.Logger) *Tracker {
	t := &Tracker{
		log:      logger.OrGlobal(log).Named("typing"),
		latest:   make(map[string]model.TypingIndicator),
		activeID: active.ActiveID(),
	}
	t.unsubs = append(t.unsubs,
		events.Subscribe(t.handleEvent),
		active.Subscribe(func(s Snapshot) { t.setActive(s.ActiveID()) }),
	)
	return t
}

// Close detaches the tracker from its sources.
func (t *Tracker) Close() {
	for _, unsub := range t.unsubs {
		unsub()
	}
}

// IsTyping reports whether the active conversation's agent is typing.
func (t *Tracker) IsTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// recorded returns the latest flag held for a conversation, active or not.
func (t *Tracker) recorded(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[conversationID].IsTyping
}

// Subscribe registers fn for changes of IsTyping.
func (t *Tracker) Subscribe(fn func(bool)) (unsubscribe func()) {
	return t.feed.Subscribe(fn)
}

func (t *Tracker) handleEvent(ev channel.Event) {
	switch ev.Kind {
	case channel.KindTypingChanged:
		if ev.Typing == nil {
			return
		}
		t.mu.Lock()
		t.latest[ev.Typing.ConversationID] = *ev.Typing
		t.recomputeLocked()
		t.mu.Unlock()
	case channel.KindDisconnected:
		t.mu.Lock()
		clear(t.latest)
		t.recomputeLocked()
		t.mu.Unlock()
	default:
		return
	}
	t.feed.Flush()
}

func (t *Tracker) setActive(id string) {
	t.mu.Lock()
	if id == t.activeID {
		t.mu.Unlock()
		return
	}
	t.activeID = id
	t.recomputeLocked()
	t.mu.Unlock()
	t.feed.Flush()
}

func (t *Tracker) recomputeLocked() {
	typing := false
	if t.activeID != "" {
		typing = t.latest[t.activeID].IsTyping
	}
	if typing == t.typing {
		return
	}
	t.typing = typing
	t.log.Debug("typing changed", zap.String("conversation_id", t.activeID), zap.Bool("typing", typing))
	t.feed.Enqueue(typing)
}
