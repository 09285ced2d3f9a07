package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("ready")
	if err != nil || status != OrderStatusReady {
		t.Fatalf("expected ready, got %q err=%v", status, err)
	}
	if _, err := ParseOrderStatus("shipped/ready"); err == nil {
		t.Fatal("expected composite value to be rejected")
	}
	if !OrderStatusCancelled.IsTerminal() || OrderStatusShipped.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestFulfillmentTypeDefaults(t *testing.T) {
	var unset FulfillmentType
	if unset.OrDefault() != FulfillmentDelivery {
		t.Fatalf("unset fulfillment should default to delivery")
	}
	if FulfillmentPickup.OrDefault() != FulfillmentPickup {
		t.Fatalf("explicit pickup must be preserved")
	}
	parsed, err := ParseFulfillmentType(" Pickup ")
	if err != nil || parsed != FulfillmentPickup {
		t.Fatalf("expected pickup, got %q err=%v", parsed, err)
	}
}

func TestPaymentStatusValidity(t *testing.T) {
	if !PaymentStatusRefunded.IsValid() {
		t.Fatal("refunded should be valid")
	}
	if PaymentStatus("settled").IsValid() {
		t.Fatal("settled is not a shop payment status")
	}
}

func TestOutboxEventTypes(t *testing.T) {
	if _, err := ParseOutboxEventType("order_status_changed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !AggregateOrder.IsValid() {
		t.Fatal("order aggregate should be valid")
	}
}
