// Package notify delivers committed state changes to listeners in commit order.
//
// Owners call Enqueue while still holding their own lock, so the queue order is the
// commit order, and Flush after releasing it. The first goroutine to Flush drains the
// queue; listeners that call back into the owner only enqueue, and their values are
// delivered by the outer drain once the current listener returns.
package notify

import (
	"sync"
	"sync/atomic"
)

type listener[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Broadcaster fans values out to subscribed listeners.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	listeners []*listener[T]
	queue     []T
	draining  bool
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	l := &listener[T]{fn: fn}
	l.active.Store(true)

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Store(false)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, cur := range b.listeners {
				if cur == l {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Enqueue appends v to the delivery queue without delivering it.
func (b *Broadcaster[T]) Enqueue(v T) {
	b.mu.Lock()
	b.queue = append(b.queue, v)
	b.mu.Unlock()
}

// Flush delivers queued values unless another Flush is already draining.
func (b *Broadcaster[T]) Flush() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	finished := false
	defer func() {
		// a listener panicked; release the drain so later flushes still deliver
		if !finished {
			b.mu.Lock()
			b.draining = false
			b.mu.Unlock()
		}
	}()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			finished = true
			b.mu.Unlock()
			return
		}
		var zero T
		v := b.queue[0]
		b.queue[0] = zero
		b.queue = b.queue[1:]
		ls := make([]*listener[T], len(b.listeners))
		copy(ls, b.listeners)
		b.mu.Unlock()

		for _, l := range ls {
			if l.active.Load() {
				l.fn(v)
			}
		}
	}
}

// Publish enqueues v and flushes.
func (b *Broadcaster[T]) Publish(v T) {
	b.Enqueue(v)
	b.Flush()
}

// Len returns the number of subscribed listeners.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
