// Package orders is the persistence gateway for submitted checkouts and the
// back-office status workflow.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/florist-backend/pkg/db"
	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/money"
	"github.com/angelmondragon/florist-backend/pkg/outbox"
	"github.com/angelmondragon/florist-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/florist-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway persists a finished checkout. It is the only dependency the wizard needs.
type Gateway interface {
	PlaceOrder(ctx context.Context, order *models.Order) (uuid.UUID, error)
}

// Service defines order operations for the storefront and the back office.
type Service interface {
	Gateway
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, actor *outbox.ActorRef) (*OrderDTO, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, actor *outbox.ActorRef) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// PlaceOrder inserts the order and its order_created event in one transaction.
// A repeated submission key returns the id of the order already stored.
func (s *service) PlaceOrder(ctx context.Context, order *models.Order) (uuid.UUID, error) {
	if err := validateNewOrder(order); err != nil {
		return uuid.Nil, err
	}

	var (
		placedID uuid.UUID
		replay   bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindBySubmissionKey(ctx, order.SubmissionKey)
		if err == nil {
			placedID, replay = existing.ID, true
			return nil
		}
		if !db.IsNotFound(err) {
			return err
		}

		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		placedID = order.ID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          payloads.NewOrderCreatedEvent(order),
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.FindBySubmissionKey(ctx, order.SubmissionKey)
			if findErr == nil {
				s.logReplay(ctx, existing.ID, order.SubmissionKey)
				return existing.ID, nil
			}
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	if replay {
		s.logReplay(ctx, placedID, order.SubmissionKey)
		return placedID, nil
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":       placedID.String(),
			"submission_key": order.SubmissionKey,
			"total_price":    order.TotalPrice.String(),
		}), "order placed")
	}
	return placedID, nil
}

func (s *service) logReplay(ctx context.Context, id uuid.UUID, key string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       id.String(),
		"submission_key": key,
	}), "order submission replayed")
}

func validateNewOrder(order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	order.SubmissionKey = strings.TrimSpace(order.SubmissionKey)
	details := map[string]string{}
	if order.SubmissionKey == "" {
		details["submissionKey"] = "required"
	}
	if len(order.Items) == 0 {
		details["items"] = "at least one item is required"
	}
	for i, item := range order.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity < 1 || money.IsNegative(item.UnitPrice) {
			details[fmt.Sprintf("items[%d]", i)] = "invalid line"
		}
	}
	if money.IsNegative(order.TotalPrice) {
		details["totalPrice"] = "must not be negative"
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPending
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = enums.PaymentStatusPending
	}
	if order.Status != enums.OrderStatusPending {
		details["status"] = "must be pending"
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		details["paymentStatus"] = "must be pending"
	}
	switch order.Delivery.Type.OrDefault() {
	case enums.FulfillmentDelivery:
		if order.ShippingAddress == nil {
			details["shippingAddress"] = "required for delivery"
		}
		order.PickupStore = nil
	case enums.FulfillmentPickup:
		// pickupStore stays nil when the shop had no active stores at checkout
		order.ShippingAddress = nil
	default:
		details["delivery.type"] = "unknown fulfillment type"
	}
	order.Delivery.Type = order.Delivery.Type.OrDefault()
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order payload").WithDetails(details)
	}
	return nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	page, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Orders = append(out.Orders, FromModel(&page.Items[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, actor *outbox.ActorRef) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	return s.transition(ctx, id, actor, func(order *models.Order) (payloads.StatusField, string, string, map[string]any, error) {
		from := order.Status
		if !CanTransition(order.Delivery.Type, from, status) {
			return "", "", "", nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", from, status).
				WithDetails(map[string]any{"from": from, "to": status, "fulfillment": order.Delivery.Type.OrDefault()})
		}
		order.Status = status
		return payloads.StatusFieldOrder, string(from), string(status), map[string]any{"status": status}, nil
	})
}

func (s *service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, actor *outbox.ActorRef) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", status)
	}
	return s.transition(ctx, id, actor, func(order *models.Order) (payloads.StatusField, string, string, map[string]any, error) {
		from := order.PaymentStatus
		if !CanTransitionPayment(from, status) {
			return "", "", "", nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move payment from %s to %s", from, status).
				WithDetails(map[string]any{"from": from, "to": status})
		}
		order.PaymentStatus = status
		return payloads.StatusFieldPayment, string(from), string(status), map[string]any{"payment_status": status}, nil
	})
}

type applyFn func(order *models.Order) (field payloads.StatusField, from, to string, updates map[string]any, err error)

func (s *service) transition(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef, apply applyFn) (*OrderDTO, error) {
	var (
		updated   *models.Order
		logFields map[string]any
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		field, from, to, updates, err := apply(order)
		if err != nil {
			return err
		}
		now := s.now()
		updates["updated_at"] = now
		if err := repo.UpdateColumns(ctx, order.ID, updates); err != nil {
			return err
		}
		order.UpdatedAt = now

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				Field:         field,
				From:          from,
				To:            to,
				Status:        order.Status,
				PaymentStatus: order.PaymentStatus,
				Fulfillment:   order.Delivery.Type.OrDefault(),
				CustomerName:  strings.TrimSpace(order.CustomerInfo.FirstName + " " + order.CustomerInfo.LastName),
				CustomerEmail: order.CustomerInfo.Email,
				ChangedAt:     now,
			},
		}); err != nil {
			return err
		}
		updated = order
		logFields = map[string]any{
			"order_id": order.ID.String(),
			"field":    string(field),
			"from":     from,
			"to":       to,
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, logFields), "order status changed")
	}
	dto := FromModel(updated)
	return &dto, nil
}
