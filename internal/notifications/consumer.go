package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/enums"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/gearshare-backend/pkg/outbox/registry"
)

const notificationConsumer = "booking-notifications"

type eventDispatcher interface {
	Dispatch(ctx context.Context, event payloads.BookingEvent) error
	DispatchPayment(ctx context.Context, event payloads.WalletPaymentRecordedEvent) error
}

type onceProcessor interface {
	Process(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer feeds domain events from Pub/Sub into the dispatcher, at most once
// per event.
type Consumer struct {
	dispatcher   eventDispatcher
	subscription *pubsub.Subscriber
	idempotency  onceProcessor
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func NewConsumer(dispatcher eventDispatcher, subscription *pubsub.Subscriber, manager onceProcessor, logg *logger.Logger) (*Consumer, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dispatcher:   dispatcher,
		subscription: subscription,
		idempotency:  manager,
		decoders:     registry.NewDefaultDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": string(eventType),
		"consumer":   notificationConsumer,
	})

	if !eventType.IsValid() {
		c.logg.Debug(logCtx, "notification.consumer.skip")
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "notification.consumer.bad_envelope", err)
		return processResult{}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "notification.consumer.bad_event_id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "notification.consumer.bad_payload", err)
		return processResult{}
	}

	skipped, err := c.idempotency.Process(ctx, notificationConsumer, eventID, func(ctx context.Context) error {
		switch event := payload.(type) {
		case *payloads.BookingEvent:
			if event.EventID == uuid.Nil {
				event.EventID = eventID
			}
			return c.dispatcher.Dispatch(ctx, *event)
		case *payloads.WalletPaymentRecordedEvent:
			if event.EventID == uuid.Nil {
				event.EventID = eventID
			}
			return c.dispatcher.DispatchPayment(ctx, *event)
		}
		return nil
	})
	if errors.Is(err, idempotency.ErrInFlight) {
		c.logg.Warn(logCtx, "notification.consumer.in_flight")
		return processResult{nack: true}
	}
	if err != nil {
		c.logg.Error(logCtx, "notification.consumer.failed", err)
		return processResult{nack: true}
	}
	if skipped {
		c.logg.Info(logCtx, "notification.consumer.duplicate")
		return processResult{}
	}
	c.logg.Info(logCtx, "notification.consumer.delivered")
	return processResult{}
}
