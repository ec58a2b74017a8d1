package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IEventService publishes workflow lifecycle events onto the in-process
// bus. Publishing is best-effort: a bus failure is logged and never fails
// the operation that produced the event.
type IEventService interface {
	Publish(ctx context.Context, event events.Event)
}

type eventEnvelope struct {
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type eventService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
}

func NewEventService(pubSub *gochannel.GoChannel, topicName string, log logger.ILogger) IEventService {
	return &eventService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
	}
}

func (s *eventService) Publish(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(eventEnvelope{
		Type:       event.EventType(),
		Payload:    event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		s.logger.Error("EventService", "Failed to marshal event", map[string]interface{}{
			"event_type": event.EventType(), "error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.pubSub.Publish(s.topicName, msg); err != nil {
		s.logger.Error("EventService", "Failed to publish event", map[string]interface{}{
			"event_type": event.EventType(), "error": err.Error(),
		})
	}
}
