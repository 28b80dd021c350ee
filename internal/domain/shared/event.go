package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate after a committed change
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventMeta is embedded by concrete events and satisfies DomainEvent
type EventMeta struct {
	ID        uuid.UUID `json:"event_id"`
	Type      string    `json:"event_type"`
	At        time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
	Kind      string    `json:"aggregate_type"`
}

// NewEventMeta stamps a new event of eventType raised by the aggregate
// aggID of kind aggType
func NewEventMeta(eventType, aggType string, aggID uuid.UUID, at time.Time) EventMeta {
	return EventMeta{
		ID:        uuid.New(),
		Type:      eventType,
		At:        at.UTC(),
		Aggregate: aggID,
		Kind:      aggType,
	}
}

func (m *EventMeta) EventID() uuid.UUID { return m.ID }
func (m *EventMeta) EventType() string { return m.Type }
func (m *EventMeta) OccurredAt() time.Time { return m.At }
func (m *EventMeta) AggregateID() uuid.UUID { return m.Aggregate }
func (m *EventMeta) AggregateType() string { return m.Kind }

// EventHandler consumes published events. EventTypes lists the types it
// wants; an empty list subscribes it to everything.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher with a subscriber registry and a lifecycle.
// Subscribe without explicit types falls back to handler.EventTypes().
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
