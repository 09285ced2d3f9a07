package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
)

// ListFilters narrows the admin order listing.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
}

// OrderDTO is the external order payload.
type OrderDTO struct {
	ID              uuid.UUID               `json:"id"`
	Items           []models.OrderItem      `json:"items"`
	TotalPrice      decimal.Decimal         `json:"totalPrice"`
	Status          enums.OrderStatus       `json:"status"`
	PaymentStatus   enums.PaymentStatus     `json:"paymentStatus"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty"`
	PickupStore     *models.PickupStoreRef  `json:"pickupStore,omitempty"`
	CustomerInfo    models.CustomerInfo     `json:"customerInfo"`
	Delivery        models.DeliveryInfo     `json:"delivery"`
	Payment         models.PaymentInfo      `json:"payment"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func FromModel(order *models.Order) OrderDTO {
	return OrderDTO{
		ID:              order.ID,
		Items:           order.Items,
		TotalPrice:      order.TotalPrice,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		ShippingAddress: order.ShippingAddress,
		PickupStore:     order.PickupStore,
		CustomerInfo:    order.CustomerInfo,
		Delivery:        order.Delivery,
		Payment:         order.Payment,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
