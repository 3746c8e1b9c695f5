// Package hub is a keyed subscriber registry. Handlers are registered
// per key, persistent or one-shot, and invoked in registration order
// by Emit on the emitting goroutine.
package hub

import (
	"sync"
)

// Subscription identifies one registered handler.
type Subscription uint64

type entry[V any] struct {
	id   Subscription
	fn   func(V)
	once bool
}

type Hub[K comparable, V any] struct {
	mu      sync.Mutex
	next    Subscription
	subs    map[K][]entry[V]
	onPanic func(key K, recovered any)
}

func NewHub[K comparable, V any]() *Hub[K, V] {
	return &Hub[K, V]{subs: make(map[K][]entry[V])}
}

// SetPanicHandler installs fn to receive panics raised by handlers.
// Without one a panicking handler unwinds through Emit.
func (h *Hub[K, V]) SetPanicHandler(fn func(key K, recovered any)) {
	h.mu.Lock()
	h.onPanic = fn
	h.mu.Unlock()
}

func (h *Hub[K, V]) On(key K, fn func(V)) Subscription {
	return h.add(key, fn, false)
}

// Once registers fn for the next Emit on key only.
func (h *Hub[K, V]) Once(key K, fn func(V)) Subscription {
	return h.add(key, fn, true)
}

func (h *Hub[K, V]) add(key K, fn func(V), once bool) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.subs[key] = append(h.subs[key], entry[V]{id: h.next, fn: fn, once: once})
	return h.next
}

// Off removes the handler registered under id. It reports whether the
// handler was still registered.
func (h *Hub[K, V]) Off(key K, id Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[key]
	for i, e := range list {
		if e.id == id {
			h.subs[key] = append(list[:i:i], list[i+1:]...)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			return true
		}
	}
	return false
}

// Emit invokes every handler registered for key and returns how many
// ran. One-shot handlers are dropped before any handler runs, so a
// handler that emits the same key again does not see them twice.
func (h *Hub[K, V]) Emit(key K, v V) int {
	h.mu.Lock()
	list := h.subs[key]
	if len(list) == 0 {
		h.mu.Unlock()
		return 0
	}
	snapshot := make([]entry[V], len(list))
	copy(snapshot, list)
	kept := list[:0:0]
	for _, e := range list {
		if !e.once {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(h.subs, key)
	} else {
		h.subs[key] = kept
	}
	onPanic := h.onPanic
	h.mu.Unlock()

	for _, e := range snapshot {
		h.invoke(key, e.fn, v, onPanic)
	}
	return len(snapshot)
}

func (h *Hub[K, V]) invoke(key K, fn func(V), v V, onPanic func(K, any)) {
	if onPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				onPanic(key, r)
			}
		}()
	}
	fn(v)
}

// RemoveAll drops every handler for every key.
func (h *Hub[K, V]) RemoveAll() {
	h.mu.Lock()
	clear(h.subs)
	h.mu.Unlock()
}

func (h *Hub[K, V]) Len(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
