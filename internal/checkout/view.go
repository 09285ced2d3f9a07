package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/internal/deliveryzones"
	"github.com/angelmondragon/florist-backend/internal/paymentmethods"
	"github.com/angelmondragon/florist-backend/internal/stores"
)

// View is the checkout payload rendered to the storefront. Totals are recomputed on every build.
type View struct {
	SessionID        string                     `json:"sessionId"`
	CartID           string                     `json:"cartId"`
	Stage            Stage                      `json:"stage"`
	StageName        string                     `json:"stageName"`
	Draft            Draft                      `json:"draft"`
	Zones            []deliveryzones.ZoneDTO    `json:"deliveryZones"`
	Stores           []stores.StoreDTO          `json:"pickupStores"`
	PaymentMethods   []paymentmethods.MethodDTO `json:"paymentMethods"`
	Lines            []cart.Line                `json:"lines"`
	CartTotal        decimal.Decimal            `json:"cartTotal"`
	DeliveryPrice    decimal.Decimal            `json:"deliveryPrice"`
	GrandTotal       decimal.Decimal            `json:"grandTotal"`
	StageValidity    map[string]bool            `json:"stageValidity"`
	Notices          []Notice                   `json:"notices"`
	OrderID          *uuid.UUID                 `json:"orderId,omitempty"`
	CartClearPending bool                       `json:"cartClearPending,omitempty"`
	// ExitToCart tells the client to leave checkout for the cart view.
	ExitToCart bool `json:"exitToCart,omitempty"`
}

func buildView(session *Session, store *cart.Store) *View {
	state := session.State
	lines := store.Lines()
	cartTotal := store.Total()
	notices := session.Notices
	if notices == nil {
		notices = []Notice{}
	}
	return &View{
		SessionID:      state.SessionID,
		CartID:         session.CartID,
		Stage:          state.Stage,
		StageName:      state.Stage.String(),
		Draft:          state.Draft,
		Zones:          deliveryzones.FromModels(state.Reference.Zones),
		Stores:         stores.FromModels(state.Reference.Stores),
		PaymentMethods: paymentmethods.FromModels(state.Reference.Methods),
		Lines:          lines,
		CartTotal:      cartTotal,
		DeliveryPrice:  DeliveryPrice(state.Draft, state.Reference, cartTotal),
		GrandTotal:     GrandTotal(state.Draft, state.Reference, cartTotal),
		StageValidity: map[string]bool{
			StageContact.String():  ContactValid(state.Draft),
			StageDelivery.String(): DeliveryValid(state.Draft, state.Reference),
			StagePayment.String():  PaymentValid(state.Draft),
		},
		Notices:          notices,
		OrderID:          state.OrderID,
		CartClearPending: state.CartClearPending,
		ExitToCart:       state.Stage != StageConfirmation && len(lines) == 0,
	}
}
