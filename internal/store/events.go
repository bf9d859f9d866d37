package store

import (
	"sync"
	"time"
)

// EventType names a store notification
type EventType string

const (
	EventUserChanged   EventType = "user.changed"
	EventOrderAdded    EventType = "order.added"
	EventOrderUpdated  EventType = "order.updated"
	EventPersisted     EventType = "store.persisted"
	EventPersistFailed EventType = "store.persist_failed"
)

// Event is published after every mutation and every persistence attempt
type Event struct {
	Type    EventType `json:"type"`
	OrderID string    `json:"orderId,omitempty"`
	Keys    []string  `json:"keys,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// broadcaster fans events out to subscribers. Slow subscribers miss events
// rather than stall the store.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// closeAll may already have closed it
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (b *broadcaster) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeAll ends every subscription; later subscribers get a closed channel
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
