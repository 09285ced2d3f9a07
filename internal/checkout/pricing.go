package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/enums"
	"github.com/angelmondragon/florist-backend/pkg/money"
)

// DeliveryPrice derives the delivery fee. Pickup, no zone, or an unknown zone id cost nothing;
// a zone's fee is waived once cartTotal reaches its free-over threshold.
func DeliveryPrice(d Draft, ref Reference, cartTotal decimal.Decimal) decimal.Decimal {
	if d.FulfillmentType() == enums.FulfillmentPickup || blank(d.Fulfillment.ZoneID) {
		return money.Zero
	}
	zone, ok := ref.Zone(d.Fulfillment.ZoneID)
	if !ok {
		return money.Zero
	}
	if threshold, ok := zone.Threshold(); ok && cartTotal.GreaterThanOrEqual(threshold) {
		return money.Zero
	}
	return zone.Price
}

func GrandTotal(d Draft, ref Reference, cartTotal decimal.Decimal) decimal.Decimal {
	return cartTotal.Add(DeliveryPrice(d, ref, cartTotal))
}
