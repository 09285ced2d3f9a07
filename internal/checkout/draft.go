package checkout

import (
	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
)

// Contact is the customer block of the draft.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Note      string `json:"note"`
}

// Address is only evaluated for delivery orders.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// Fulfillment holds the delivery choice. Only the id matching Type is retained.
type Fulfillment struct {
	Type    enums.FulfillmentType `json:"type"`
	ZoneID  string                `json:"zoneId,omitempty"`
	StoreID string                `json:"storeId,omitempty"`
}

type Payment struct {
	MethodID string `json:"methodId,omitempty"`
}

// Draft is the unpersisted accumulation of checkout choices. Totals are derived, never stored.
type Draft struct {
	Contact     Contact     `json:"contact"`
	Address     Address     `json:"address"`
	Fulfillment Fulfillment `json:"fulfillment"`
	Payment     Payment     `json:"payment"`
}

// FulfillmentType returns the effective type; unset means delivery.
func (d Draft) FulfillmentType() enums.FulfillmentType {
	return d.Fulfillment.Type.OrDefault()
}

// Reference is the reference-data snapshot taken when the checkout starts.
type Reference struct {
	Zones   []models.DeliveryZone  `json:"zones"`
	Stores  []models.PickupStore   `json:"stores"`
	Methods []models.PaymentMethod `json:"methods"`
}

func (r Reference) Zone(id string) (models.DeliveryZone, bool) {
	for _, zone := range r.Zones {
		if zone.ID == id {
			return zone, true
		}
	}
	return models.DeliveryZone{}, false
}

func (r Reference) Store(id string) (models.PickupStore, bool) {
	for _, store := range r.Stores {
		if store.ID == id {
			return store, true
		}
	}
	return models.PickupStore{}, false
}

func (r Reference) Method(id string) (models.PaymentMethod, bool) {
	for _, method := range r.Methods {
		if method.ID == id {
			return method, true
		}
	}
	return models.PaymentMethod{}, false
}
