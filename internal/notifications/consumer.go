package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/florist-backend/pkg/enums"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/outbox"
	"github.com/angelmondragon/florist-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/florist-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/florist-backend/pkg/outbox/registry"
)

const orderNotificationConsumer = "order-notifications"

// Idempotency is tracked per email, so a redelivery only resends what failed.
const (
	stepConfirmation = "confirmation"
	stepShopAlert    = "shop_alert"
	stepStatusUpdate = "status_update"
)

type step struct {
	name string
	send func(context.Context) error
}

type guard interface {
	Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

var _ guard = (*idempotency.Manager)(nil)

// Consumer receives order events from Pub/Sub and hands them to the mail service.
type Consumer struct {
	service      Service
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  guard
	logg         *logger.Logger
}

// NewConsumer builds the order notification consumer.
func NewConsumer(service Service, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notifications subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	c, err := newConsumer(service, manager, logg)
	if err != nil {
		return nil, err
	}
	c.subscription = subscription
	return c, nil
}

func newConsumer(service Service, manager guard, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:     service,
		decoders:    newDecoders(),
		idempotency: manager,
		logg:        logg,
	}, nil
}

func newDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	registry.RegisterJSON[payloads.OrderCreatedEvent](reg, enums.EventOrderCreated, 1)
	registry.RegisterJSON[payloads.OrderStatusChangedEvent](reg, enums.EventOrderStatusChanged, 1)
	return reg
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		ctx = c.logg.WithField(ctx, "message_id", msg.ID)
		if c.process(ctx, msg.Data, msg.Attributes) == outcomeRetry {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	outcomeHandled outcome = iota
	outcomeSkipped
	outcomeRetry
)

// process never panics on bad input: malformed messages are acked and logged
// since redelivery cannot fix them.
func (c *Consumer) process(ctx context.Context, data []byte, attrs map[string]string) outcome {
	eventType := enums.OutboxEventType(attrs["event_type"])
	logCtx := c.logg.WithField(ctx, "event_type", string(eventType))

	if !c.decoders.Handles(eventType) {
		c.logg.Debug(logCtx, "skipping unrelated event")
		return outcomeSkipped
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return outcomeSkipped
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return outcomeSkipped
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return outcomeSkipped
	}

	steps, err := c.steps(payload)
	if err != nil {
		c.logg.Error(logCtx, "unsupported payload", err)
		return outcomeSkipped
	}

	var (
		ranAny bool
		errs   error
	)
	for _, st := range steps {
		ran, err := c.idempotency.Guard(ctx, orderNotificationConsumer+":"+st.name, eventID, st.send)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		ranAny = ranAny || ran
	}
	if errs != nil {
		c.logg.Error(logCtx, "notification handling failed", errs)
		return outcomeRetry
	}
	if !ranAny {
		c.logg.Info(logCtx, "event already processed")
		return outcomeSkipped
	}
	c.logg.Info(logCtx, "order notification handled")
	return outcomeHandled
}

func (c *Consumer) steps(payload interface{}) ([]step, error) {
	switch evt := payload.(type) {
	case payloads.OrderCreatedEvent:
		return []step{
			{name: stepConfirmation, send: func(ctx context.Context) error { return c.service.SendOrderConfirmation(ctx, evt) }},
			{name: stepShopAlert, send: func(ctx context.Context) error { return c.service.SendShopAlert(ctx, evt) }},
		}, nil
	case payloads.OrderStatusChangedEvent:
		return []step{
			{name: stepStatusUpdate, send: func(ctx context.Context) error { return c.service.OrderStatusChanged(ctx, evt) }},
		}, nil
	default:
		return nil, errors.New("unsupported payload type")
	}
}
