package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/enums"
)

// Order is the immutable snapshot written at checkout submission. Only the two
// status columns change afterwards.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SubmissionKey   string              `gorm:"column:submission_key;not null;uniqueIndex"`
	Items           []OrderItem         `gorm:"column:items;type:jsonb;serializer:json;not null"`
	TotalPrice      decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	ShippingAddress *ShippingAddress    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PickupStore     *PickupStoreRef     `gorm:"column:pickup_store;type:jsonb;serializer:json"`
	CustomerInfo    CustomerInfo        `gorm:"column:customer_info;type:jsonb;serializer:json;not null"`
	Delivery        DeliveryInfo        `gorm:"column:delivery;type:jsonb;serializer:json;not null"`
	Payment         PaymentInfo         `gorm:"column:payment;type:jsonb;serializer:json;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a cart line frozen into the order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"imageRef"`
}

type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Note      string `json:"note,omitempty"`
}

type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// PickupStoreRef copies the store so later edits to pickup_stores do not rewrite history.
type PickupStoreRef struct {
	StoreID    string `json:"storeId"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone,omitempty"`
}

type DeliveryInfo struct {
	Type     enums.FulfillmentType `json:"type"`
	ZoneID   string                `json:"zoneId,omitempty"`
	ZoneName string                `json:"zoneName,omitempty"`
	Price    decimal.Decimal       `json:"price"`
}

type PaymentInfo struct {
	MethodID   string `json:"methodId"`
	MethodName string `json:"methodName"`
}
