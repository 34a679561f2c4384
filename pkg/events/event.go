package events

import (
	"context"
	"time"
)

// Event types published by the assistant
const (
	TypeInstructionProcessed = "INSTRUCTION_PROCESSED"
	TypeCircuitStateChanged  = "CIRCUIT_STATE_CHANGED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "INSTRUCTION_PROCESSED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to a bus. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewInstructionProcessed describes one finished pipeline request
func NewInstructionProcessed(data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: TypeInstructionProcessed, Data: data, OccurredAt: time.Now()}
}

// NewCircuitStateChanged describes a breaker transition
func NewCircuitStateChanged(name, from, to, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeCircuitStateChanged,
		Data: map[string]interface{}{
			"breaker": name,
			"from":    from,
			"to":      to,
			"reason":  reason,
		},
		OccurredAt: time.Now(),
	}
}

// MultiPublisher fans an event out to every publisher and returns the first error
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
