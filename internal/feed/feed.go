package feed

import (
	"context"
	"sync"

	"github.com/example/dispatchlite/internal/ride/domain"
)

// Hub fans confirmed ride transitions out to stream subscribers. It
// implements domain.EventPublisher so the dispatch service can feed it
// alongside the broker publisher.
type Hub struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]chan domain.RideEvent
	buffer      int
}

// NewHub constructs a hub. buffer bounds each subscriber channel; slow
// subscribers drop events rather than blocking dispatch.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subscribers: make(map[int]chan domain.RideEvent), buffer: buffer}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription.
func (h *Hub) Subscribe() (<-chan domain.RideEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan domain.RideEvent, h.buffer)
	h.subscribers[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish satisfies domain.EventPublisher.
func (h *Hub) Publish(_ context.Context, event domain.RideEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}
