// Package events broadcasts pipeline lifecycle events to observers such as
// a UI layer or the API's event stream. Delivery is best-effort: a slow
// subscriber loses events rather than stalling the pipeline.
package events

import (
	"sync"
	"time"
)

// Kind enumerates the closed set of pipeline lifecycle events.
type Kind string

const (
	KindFinancialDetected Kind = "financial_detected"
	KindParsed            Kind = "parsed"
	KindValidationFailed  Kind = "validation_failed"
	KindDuplicateDetected Kind = "duplicate_detected"
	KindPersisted         Kind = "persisted"
	KindQueued            Kind = "queued"
	KindSyncCompleted     Kind = "sync_completed"
	KindError             Kind = "error"
)

// Event is one pipeline observation. RecordID is empty for events raised
// before a record exists (detection, duplicates).
type Event struct {
	Kind     Kind      `json:"kind"`
	RecordID string    `json:"record_id,omitempty"`
	OwnerID  string    `json:"owner_id,omitempty"`
	SenderID string    `json:"sender_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Bus fans events out to any number of subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given buffer size and
// returns its channel plus an unsubscribe function. The channel is closed
// on unsubscribe or bus close.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber without blocking. An event
// is dropped for any subscriber whose buffer is full.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
