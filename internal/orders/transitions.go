package orders

import "github.com/angelmondragon/florist-backend/pkg/enums"

var statusTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusReady, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusReady:      {enums.OrderStatusDelivered},
}

// Only collected money can be refunded.
var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending: {enums.PaymentStatusPaid},
	enums.PaymentStatusPaid:    {enums.PaymentStatusRefunded},
}

// CanTransition reports whether an order with the given fulfillment type may move from -> to.
// shipped is reserved for delivery orders and ready for pickup orders.
func CanTransition(fulfillment enums.FulfillmentType, from, to enums.OrderStatus) bool {
	switch to {
	case enums.OrderStatusShipped:
		if fulfillment.OrDefault() != enums.FulfillmentDelivery {
			return false
		}
	case enums.OrderStatusReady:
		if fulfillment.OrDefault() != enums.FulfillmentPickup {
			return false
		}
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
