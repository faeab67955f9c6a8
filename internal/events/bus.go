package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Table identifies the entity store a change event belongs to.
type Table string

const (
	TableTrips      Table = "trips"
	TableVehicles   Table = "vehicles"
	TableMilestones Table = "milestones"
	TableMessages   Table = "messages"
	TableProfiles   Table = "profiles"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Change is a row-level change notification. It carries no row payload:
// consumers invalidate their cached views and refetch from the store of
// record, so delivery order across tables does not matter.
type Change struct {
	ID     string    `json:"id"`
	Table  Table     `json:"table"`
	Event  EventType `json:"event"`
	RowID  string    `json:"row_id"`
	TripID string    `json:"trip_id,omitempty"`
	At     time.Time `json:"at"`
}

// Bus fans change events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event and converges on its
// next refetch.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan Change
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan Change),
	}
}

// Subscribe registers a buffered subscription and returns its ID and channel.
func (b *Bus) Subscribe(buffer int) (string, <-chan Change) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish emits a change event to all subscribers.
func (b *Bus) Publish(table Table, event EventType, rowID, tripID string) {
	change := Change{
		ID:     uuid.NewString(),
		Table:  table,
		Event:  event,
		RowID:  rowID,
		TripID: tripID,
		At:     time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- change:
		default:
			log.WithFields(log.Fields{
				"subscriber": id,
				"table":      table,
				"event":      event,
			}).Warn("Subscriber buffer full, dropping change event")
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
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
