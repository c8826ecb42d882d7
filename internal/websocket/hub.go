package websocket

import (
	"sync"
)

// Hub fans agent events out to every connected UI stream. Publishing never
// blocks: a subscriber that cannot keep up drops events rather than stalling
// the session state machine.
type Hub struct {
	mu   sync.Mutex
	subs map[chan interface{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan interface{}]struct{})}
}

// Publish delivers an event to all current subscribers.
func (h *Hub) Publish(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe registers a new event channel. The returned cancel func must be
// called when the stream closes.
func (h *Hub) Subscribe() (<-chan interface{}, func()) {
	ch := make(chan interface{}, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
