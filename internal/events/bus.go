// Package events carries product lifecycle notifications from the service layer to
// subscribers such as the websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	BarrierBreached   EventType = "BARRIER_BREACHED"
	KnockInTriggered  EventType = "KNOCK_IN_TRIGGERED"
	AutocallTriggered EventType = "AUTOCALL_TRIGGERED"
	IssuerCalled      EventType = "ISSUER_CALLED"
	CouponPaid        EventType = "COUPON_PAID"
	PricesUpdated     EventType = "PRICES_UPDATED"
	ProductCreated    EventType = "PRODUCT_CREATED"
	JobCompleted      EventType = "JOB_COMPLETED"
	JobFailed         EventType = "JOB_FAILED"
)

// AllTypes lists every event type a stream subscriber can ask for.
var AllTypes = []EventType{
	BarrierBreached,
	KnockInTriggered,
	AutocallTriggered,
	IssuerCalled,
	CouponPaid,
	PricesUpdated,
	ProductCreated,
	JobCompleted,
	JobFailed,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// Handler receives published events. Handlers run on the publisher's goroutine
// and must not block.
type Handler func(*Event)

// Bus is an in-process publish/subscribe hub.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[int]Handler),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers h for eventType and returns the id needed to unsubscribe.
func (b *Bus) Subscribe(eventType EventType, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]Handler)
	}
	b.handlers[eventType][b.nextID] = h
	return b.nextID
}

// Unsubscribe removes the handler registered under id.
func (b *Bus) Unsubscribe(eventType EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers[eventType], id)
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// SubscriberCount returns the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish delivers data to every handler subscribed to its event type.
func (b *Bus) Publish(module string, data EventData) {
	if data == nil {
		return
	}
	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Int("subscribers", len(handlers)).
		Msg("Event published")

	for _, h := range handlers {
		h(event)
	}
}
