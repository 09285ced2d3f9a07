package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/metrics"
	"github.com/angelmondragon/florist-backend/pkg/outbox/payloads"
)

// Service turns order events into transactional emails.
// Each method sends at most one email so callers can guard them one by one.
type Service interface {
	SendOrderConfirmation(ctx context.Context, evt payloads.OrderCreatedEvent) error
	SendShopAlert(ctx context.Context, evt payloads.OrderCreatedEvent) error
	OrderStatusChanged(ctx context.Context, evt payloads.OrderStatusChangedEvent) error
}

type service struct {
	mailer    Mailer
	shopEmail string
	metrics   *metrics.MailMetrics
	logg      *logger.Logger
}

// NewService wires the mailer. An empty shopEmail disables the shop alert.
func NewService(mailer Mailer, shopEmail string, mm *metrics.MailMetrics, logg *logger.Logger) (Service, error) {
	if mailer == nil {
		return nil, errors.New("mailer required")
	}
	return &service{
		mailer:    mailer,
		shopEmail: strings.TrimSpace(shopEmail),
		metrics:   mm,
		logg:      logg,
	}, nil
}

// SendOrderConfirmation mails the customer. A permanent rejection is logged and
// swallowed so the event is not redelivered forever.
func (s *service) SendOrderConfirmation(ctx context.Context, evt payloads.OrderCreatedEvent) error {
	msg, err := RenderOrderConfirmation(evt)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

// SendShopAlert mails the shop inbox, or does nothing when none is configured.
func (s *service) SendShopAlert(ctx context.Context, evt payloads.OrderCreatedEvent) error {
	if s.shopEmail == "" {
		return nil
	}
	msg, err := RenderShopAlert(evt, s.shopEmail)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *service) OrderStatusChanged(ctx context.Context, evt payloads.OrderStatusChangedEvent) error {
	msg, ok, err := RenderStatusUpdate(evt)
	if err != nil {
		return err
	}
	if !ok {
		if s.logg != nil {
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"order_id": evt.OrderID.String(),
				"field":    string(evt.Field),
				"to":       evt.To,
			}), "status change has no customer email")
		}
		return nil
	}
	return s.deliver(ctx, msg)
}

func (s *service) deliver(ctx context.Context, msg Message) error {
	err := s.mailer.Send(ctx, msg)
	switch {
	case err == nil:
		s.metrics.ObserveSend(msg.Template, "sent")
		return nil
	case errors.Is(err, ErrPermanent):
		s.metrics.ObserveSend(msg.Template, "rejected")
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"template": msg.Template,
				"error":    err.Error(),
			}), "mail rejected, not retrying")
		}
		return nil
	default:
		s.metrics.ObserveSend(msg.Template, "failed")
		return fmt.Errorf("send %s: %w", msg.Template, err)
	}
}
