package usecase

import (
	"sync"

	"CoinPull/internal/domain/models"
)

const subscriberBuffer = 64

// ProgressHub fans progress events out to any number of subscribers.
// Publish never blocks: a subscriber that falls behind loses intermediate
// events, but always receives the terminal one.
type ProgressHub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan models.ProgressEvent
	closed bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[int]chan models.ProgressEvent)}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel.
func (h *ProgressHub) Subscribe() (<-chan models.ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ProgressEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking. A full
// subscriber drops ev, unless ev is terminal: then its oldest buffered events
// are evicted to make room.
func (h *ProgressHub) Publish(ev models.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		if ev.Terminal() {
			deliverTerminal(ch, ev)
			continue
		}
		select {
		case ch <- ev:
		default:
			// drop on backpressure
		}
	}
}

func deliverTerminal(ch chan models.ProgressEvent, ev models.ProgressEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribers returns the number of active listeners.
func (h *ProgressHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
