// Package events provides the named-event plumbing the hub components
// use to talk to each other and to the real-time sink.
package events

import "sync"

// Handler receives an event payload. Handlers run synchronously on the
// emitting goroutine, so queue→processor ordering is the emit order.
type Handler func(payload any)

// Sink is the contract the core exposes to the real-time subscriber
// fabric. The core emits `message`, `station_ids`, `system_status` and
// `adsb_snapshot`; how clients subscribe is not its concern.
type Sink interface {
	Emit(event string, payload any)
}

// Emitter is a minimal named-event dispatcher. Registration is rare and
// emission is hot, so it keeps handlers behind an RWMutex.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]Handler)}
}

// On registers a handler for the named event.
func (e *Emitter) On(event string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], h)
}

// Emit dispatches payload to every handler registered for event, in
// registration order.
func (e *Emitter) Emit(event string, payload any) {
	e.mu.RLock()
	hs := e.handlers[event]
	e.mu.RUnlock()
	for _, h := range hs {
		h(payload)
	}
}

// ListenerCount returns the number of handlers for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[event])
}

// RemoveAll drops every registered handler. Test hook.
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string][]Handler)
}
