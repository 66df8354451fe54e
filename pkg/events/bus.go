// Package events provides the lifecycle notification bus. Observability
// consumers subscribe to it; the core never depends on a logging or UI layer
// for its notifications.
package events

import (
	"sync"
	"time"
)

// Type describes what happened.
type Type string

const (
	RoutingStarted     Type = "routing-started"
	RoutingCompleted   Type = "routing-completed"
	RoutingFailed      Type = "routing-failed"
	ConsensusStarted   Type = "consensus-started"
	ConsensusCompleted Type = "consensus-completed"
	ConsensusFailed    Type = "consensus-failed"
)

// Event is the notification payload.
type Event struct {
	Type      Type           `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Bus broadcasts events to subscribers. Publish never blocks: events are
// dropped for subscribers whose channel buffer is full.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish broadcasts an event to all subscribers.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; drop rather than stall the pipeline.
		}
	}
}
