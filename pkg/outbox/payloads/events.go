package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
)

// OrderCreatedEvent carries everything the confirmation emails render, so the
// notifications worker never reads the orders table.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID               `json:"orderId"`
	SubmissionKey   string                  `json:"submissionKey"`
	Items           []models.OrderItem      `json:"items"`
	TotalPrice      decimal.Decimal         `json:"totalPrice"`
	CustomerInfo    models.CustomerInfo     `json:"customerInfo"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty"`
	PickupStore     *models.PickupStoreRef  `json:"pickupStore,omitempty"`
	Delivery        models.DeliveryInfo     `json:"delivery"`
	Payment         models.PaymentInfo      `json:"payment"`
	CreatedAt       time.Time               `json:"createdAt"`
}

// StatusField names which order column a status change applies to.
type StatusField string

const (
	StatusFieldOrder   StatusField = "status"
	StatusFieldPayment StatusField = "paymentStatus"
)

// OrderStatusChangedEvent is emitted for every applied back-office transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID             `json:"orderId"`
	Field         StatusField           `json:"field"`
	From          string                `json:"from"`
	To            string                `json:"to"`
	Status        enums.OrderStatus     `json:"status"`
	PaymentStatus enums.PaymentStatus   `json:"paymentStatus"`
	Fulfillment   enums.FulfillmentType `json:"fulfillment"`
	CustomerName  string                `json:"customerName"`
	CustomerEmail string                `json:"customerEmail"`
	ChangedAt     time.Time             `json:"changedAt"`
}

// NewOrderCreatedEvent snapshots the persisted order into the event payload.
func NewOrderCreatedEvent(order *models.Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:         order.ID,
		SubmissionKey:   order.SubmissionKey,
		Items:           order.Items,
		TotalPrice:      order.TotalPrice,
		CustomerInfo:    order.CustomerInfo,
		ShippingAddress: order.ShippingAddress,
		PickupStore:     order.PickupStore,
		Delivery:        order.Delivery,
		Payment:         order.Payment,
		CreatedAt:       order.CreatedAt,
	}
}
