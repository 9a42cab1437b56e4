// Package watch provides a minimal typed change-feed hub.
//
// A Hub is owned by exactly one producer — a graph store, a project
// store, a canvas — and fans that producer's change values out to
// subscribers. There is no global bus and no topic routing: components
// that want a feed hold a reference to the producer and subscribe to
// it directly, so every message path is explicit in the code.
package watch

import "sync"

// Hub fans values of one type out to subscribers. The zero value is
// not usable; construct with NewHub.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[int]func(T)
	nextID int
	closed bool
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn to receive every subsequent Notify value. The
// returned cancel func removes the subscription and is safe to call
// more than once. Subscribing to a closed hub is a no-op.
func (h *Hub[T]) Subscribe(fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Notify delivers v to every current subscriber, synchronously, on the
// caller's goroutine. The subscriber list is snapshotted before
// delivery, so handlers may subscribe or cancel while being notified.
// Producers must call Notify outside their own locks: handlers are
// allowed to call back into the producer.
func (h *Hub[T]) Notify(v T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the current subscriber count.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber. Subsequent Notify calls deliver
// nothing and subsequent Subscribe calls are no-ops.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	h.subs = make(map[int]func(T))
	h.closed = true
	h.mu.Unlock()
}
