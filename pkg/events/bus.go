package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DefaultTopic is the in-process topic carrying assistant events
const DefaultTopic = "assistant.events"

// Bus publishes events onto an in-process watermill channel
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
}

// NewBus wraps an existing GoChannel; the caller owns its lifecycle
func NewBus(pubSub *gochannel.GoChannel, topic string) *Bus {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Bus{pubSub: pubSub, topic: topic}
}

// Topic returns the topic events are published on
func (b *Bus) Topic() string {
	return b.topic
}

// Publish encodes the event as a BaseEvent JSON document
func (b *Bus) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	return b.pubSub.Publish(b.topic, msg)
}

// Decode reads a message produced by Publish
func Decode(msg *message.Message) (BaseEvent, error) {
	var event BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
