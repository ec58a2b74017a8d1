package service

import (
	"context"
	"encoding/json"

	"github.com/philippzach/growth-gpt-sub000/internal/pkg/logger"
	"github.com/philippzach/growth-gpt-sub000/pkg/events"
	pktNats "github.com/philippzach/growth-gpt-sub000/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process event bus. Every event is logged;
// when a NATS publisher is configured the event is also forwarded to the
// external stream for downstream systems (billing, analytics).
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var env eventEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal event", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid payloads never become valid; don't retry
		return
	}

	cs.logger.Info("ConsumerService", "Workflow event", map[string]interface{}{
		"event_type": env.Type,
		"payload":    env.Payload,
	})

	if cs.eventPublisher != nil {
		evt := events.BaseEvent{Type: env.Type, Data: env.Payload, OccurredAt: env.OccurredAt}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.logger.Error("ConsumerService", "Failed to forward event to NATS", map[string]interface{}{
				"event_type": env.Type, "error": err.Error(),
			})
			msg.Nack()
			return
		}
	}

	msg.Ack()
}
