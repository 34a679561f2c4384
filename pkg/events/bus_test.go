package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDecode(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	bus := NewBus(pubSub, "")
	assert.Equal(t, DefaultTopic, bus.Topic())

	messages, err := pubSub.Subscribe(context.Background(), bus.Topic())
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewCircuitStateChanged("llm", "closed", "open", "3 failures")))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, TypeCircuitStateChanged, msg.Metadata.Get("event_type"))
		event, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, TypeCircuitStateChanged, event.EventType())
		assert.Equal(t, "open", event.Payload()["to"])
		assert.False(t, event.Timestamp().IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

type stubPublisher struct {
	err   error
	count int
}

func (s *stubPublisher) Publish(context.Context, Event) error {
	s.count++
	return s.err
}

func TestMultiPublisher(t *testing.T) {
	first := errors.New("nats down")
	a := &stubPublisher{err: first}
	b := &stubPublisher{err: errors.New("second")}
	c := &stubPublisher{}

	err := MultiPublisher{a, nil, b, c}.Publish(context.Background(), NewInstructionProcessed(nil))
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 1, a.count)
	assert.Equal(t, 1, b.count)
	assert.Equal(t, 1, c.count)
}
