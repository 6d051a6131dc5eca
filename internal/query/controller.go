package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-console/internal/notify"
	"github.com/capitalize-ai/agent-console/pkg/logger"
	"github.com/capitalize-ai/agent-console/pkg/metrics"
)

// DefaultDebounce is the quiet period applied to filter and sort edits.
const DefaultDebounce = 300 * time.Millisecond

// DefaultPageSize is used when Options.Defaults carries no page size.
const DefaultPageSize = 10

// Options configures a Controller.
type Options struct {
	// Defaults is the state restored by Reset and used initially.
	Defaults State
	// Debounce overrides DefaultDebounce. Zero keeps the default.
	Debounce time.Duration
	Logger   *logger.Logger
}

// Controller owns the query state of one collection view.
//
// Filter and sort edits reset the page to 1 and fire after the debounce window;
// page edits fire immediately. Every fetch gets a sequence number and only the
// response to the latest one is applied.
type Controller[T any] struct {
	name     string
	fetcher  Fetcher[T]
	defaults State
	debounce time.Duration
	log      *logger.Logger

	mu         sync.Mutex
	parent     context.Context
	state      State
	lastIssued State
	hasIssued  bool
	seq        uint64
	timer      *time.Timer
	timerGen   uint64
	cancel     context.CancelFunc
	current    Snapshot[T]
	closed     bool

	feed notify.Broadcaster[Snapshot[T]]
}

// New creates a controller named after its collection.
func New[T any](name string, fetcher Fetcher[T], opts Options) *Controller[T] {
	defaults := opts.Defaults.Clone()
	if defaults.Page.Number < 1 {
		defaults.Page.Number = 1
	}
	if defaults.Page.Size < 1 {
		defaults.Page.Size = DefaultPageSize
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	c := &Controller[T]{
		name:     name,
		fetcher:  fetcher,
		defaults: defaults,
		debounce: debounce,
		log:      logger.OrGlobal(opts.Logger).Named("query").With(zap.String("collection", name)),
		parent:   context.Background(),
		state:    defaults.Clone(),
	}
	c.current.Query = c.state.Clone()
	return c
}

// Name returns the collection name.
func (c *Controller[T]) Name() string {
	return c.name
}

// Start binds fetches to ctx and issues the initial query.
func (c *Controller[T]) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.parent = ctx
	c.issueLocked(true)
	c.mu.Unlock()
	c.feed.Flush()
}

// UpdateFilters merges partial into the filters and resets to page 1.
func (c *Controller[T]) UpdateFilters(partial Filters) {
	c.mutate(func(s *State) {
		s.Filters = s.Filters.Merge(partial)
		s.Page.Number = 1
	})
}

// UpdateSort replaces the sort criteria and resets to page 1.
func (c *Controller[T]) UpdateSort(sort Sort) {
	c.mutate(func(s *State) {
		s.Sort = sort
		s.Page.Number = 1
	})
}

// UpdatePage moves to page n and fetches immediately.
func (c *Controller[T]) UpdatePage(n int) error {
	if n < 1 {
		return ErrInvalidPage
	}
	c.apply(false, func(s *State) {
		s.Page.Number = n
	})
	return nil
}

// UpdatePageSize changes the page size, returns to page 1 and fetches immediately.
func (c *Controller[T]) UpdatePageSize(n int) error {
	if n < 1 {
		return ErrInvalidPage
	}
	c.apply(false, func(s *State) {
		s.Page.Size = n
		s.Page.Number = 1
	})
	return nil
}

// Reset restores the defaults and issues exactly one fetch.
func (c *Controller[T]) Reset() {
	c.apply(true, func(s *State) {
		*s = c.defaults.Clone()
	})
}

// Refresh re-issues the current state even if it was fetched already.
func (c *Controller[T]) Refresh() {
	c.apply(true, func(*State) {})
}

// State returns the current query state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Current returns the current snapshot.
func (c *Controller[T]) Current() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every committed snapshot.
func (c *Controller[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	return c.feed.Subscribe(fn)
}

// Close stops the debounce timer and abandons any in-flight fetch.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// mutate applies a debounced edit.
func (c *Controller[T]) mutate(edit func(*State)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	edit(&c.state)
	c.armTimerLocked()
	c.enqueueLocked()
	c.mu.Unlock()
	c.feed.Flush()
}

// apply applies an immediate edit; any pending debounced edit is folded into it.
func (c *Controller[T]) apply(force bool, edit func(*State)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	edit(&c.state)
	c.stopTimerLocked()
	c.issueLocked(force)
	c.mu.Unlock()
	c.feed.Flush()
}

func (c *Controller[T]) armTimerLocked() {
	c.stopTimerLocked()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() {
		c.fireDebounced(gen)
	})
}

func (c *Controller[T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// a callback that already started sees a newer generation and does nothing
	c.timerGen++
}

func (c *Controller[T]) fireDebounced(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.issueLocked(false)
	c.mu.Unlock()
	c.feed.Flush()
}

func (c *Controller[T]) issueLocked(force bool) {
	q := c.state.Clone()
	if !force && c.hasIssued && q.Equal(c.lastIssued) {
		metrics.RecordFetch(c.name, metrics.OutcomeSuppressed, 0)
		c.log.Debug("query unchanged, fetch suppressed")
		c.enqueueLocked()
		return
	}

	c.seq++
	seq := c.seq
	c.lastIssued = q
	c.hasIssued = true

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel

	c.current.Pending = true
	c.current.Seq = seq
	c.enqueueLocked()

	c.log.Debug("fetch issued",
		zap.Uint64("seq", seq),
		zap.Int("page", q.Page.Number),
		zap.Int("page_size", q.Page.Size),
	)

	go c.run(ctx, seq, q)
}

func (c *Controller[T]) run(ctx context.Context, seq uint64, q State) {
	start := time.Now()
	page, err := c.fetcher.Fetch(ctx, q)
	elapsed := time.Since(start).Seconds()

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		metrics.RecordFetch(c.name, metrics.OutcomeStale, elapsed)
		c.log.Debug("stale result discarded", zap.Uint64("seq", seq))
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.current.Pending = false
	if err != nil {
		c.current.Err = err
		metrics.RecordFetch(c.name, metrics.OutcomeError, elapsed)
		c.log.Warn("fetch failed", zap.Uint64("seq", seq), zap.Error(err))
	} else {
		c.current.Page = &page
		c.current.Err = nil
		metrics.RecordFetch(c.name, metrics.OutcomeSuccess, elapsed)
	}
	c.enqueueLocked()
	c.mu.Unlock()
	c.feed.Flush()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	s := c.current
	s.Query = c.state.Clone()
	return s
}

func (c *Controller[T]) enqueueLocked() {
	c.feed.Enqueue(c.snapshotLocked())
}
