package service

import (
	"context"
	"sync"
	"time"

	"ai-editor-be/internal/dto"
	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	Counters() dto.EventCountersDTO
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger

	mu       sync.Mutex
	counters dto.EventCountersDTO
}

// NewConsumerService aggregates assistant events from the in-process bus into status counters
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	log logger.ILogger,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
		counters:  dto.EventCountersDTO{ByAction: make(map[string]int64)},
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	// every message is acked; counters are best effort and a retry would double count
	defer msg.Ack()

	event, err := events.Decode(msg)
	if err != nil {
		cs.logger.Warn("CONSUMER", "Discarding malformed event", map[string]interface{}{"error": err.Error()})
		cs.mu.Lock()
		cs.counters.MalformedDiscarded++
		cs.mu.Unlock()
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	cs.counters.LastEventAt = &at

	switch event.Type {
	case events.TypeInstructionProcessed:
		cs.counters.Processed++
		if action, ok := event.Data["action"].(string); ok && action != "" {
			cs.counters.ByAction[action]++
		}
	case events.TypeCircuitStateChanged:
		cs.counters.CircuitChanges++
		if to, ok := event.Data["to"].(string); ok {
			cs.counters.LastCircuitState = to
		}
		cs.logger.Info("CONSUMER", "Circuit state changed", event.Data)
	default:
		cs.logger.Debug("CONSUMER", "Ignoring event", map[string]interface{}{"type": event.Type})
	}
}

func (cs *consumerService) Counters() dto.EventCountersDTO {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := cs.counters
	out.ByAction = make(map[string]int64, len(cs.counters.ByAction))
	for k, v := range cs.counters.ByAction {
		out.ByAction[k] = v
	}
	if cs.counters.LastEventAt != nil {
		at := *cs.counters.LastEventAt
		out.LastEventAt = &at
	}
	return out
}
