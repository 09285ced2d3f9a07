package checkout

import (
	"strings"

	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/internal/stores"
	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
)

// BuildOrder snapshots the draft, the cart lines and the derived totals into a new
// pending order keyed by submissionKey.
func BuildOrder(submissionKey string, d Draft, ref Reference, lines []cart.Line) *models.Order {
	cartTotal := cart.LinesTotal(lines)
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			ImageRef:  line.ImageRef,
		})
	}

	order := &models.Order{
		SubmissionKey: submissionKey,
		Items:         items,
		TotalPrice:    GrandTotal(d, ref, cartTotal),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		CustomerInfo: models.CustomerInfo{
			FirstName: strings.TrimSpace(d.Contact.FirstName),
			LastName:  strings.TrimSpace(d.Contact.LastName),
			Email:     strings.TrimSpace(d.Contact.Email),
			Phone:     strings.TrimSpace(d.Contact.Phone),
			Note:      strings.TrimSpace(d.Contact.Note),
		},
		Delivery: models.DeliveryInfo{
			Type:  d.FulfillmentType(),
			Price: DeliveryPrice(d, ref, cartTotal),
		},
		Payment: models.PaymentInfo{MethodID: d.Payment.MethodID},
	}

	switch d.FulfillmentType() {
	case enums.FulfillmentPickup:
		if store, ok := ref.Store(d.Fulfillment.StoreID); ok {
			order.PickupStore = stores.Snapshot(store)
		}
	default:
		order.ShippingAddress = &models.ShippingAddress{
			Street:     strings.TrimSpace(d.Address.Street),
			City:       strings.TrimSpace(d.Address.City),
			PostalCode: strings.TrimSpace(d.Address.PostalCode),
		}
		if zone, ok := ref.Zone(d.Fulfillment.ZoneID); ok {
			order.Delivery.ZoneID = zone.ID
			order.Delivery.ZoneName = zone.Name
		}
	}
	if method, ok := ref.Method(d.Payment.MethodID); ok {
		order.Payment.MethodName = method.Name
	}
	return order
}
