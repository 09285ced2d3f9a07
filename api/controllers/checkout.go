package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/florist-backend/api/responses"
	"github.com/angelmondragon/florist-backend/api/validators"
	"github.com/angelmondragon/florist-backend/internal/checkout"
	"github.com/angelmondragon/florist-backend/pkg/logger"
)

type contactPayload struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"max=254"`
	Phone     string `json:"phone" validate:"max=40"`
	Note      string `json:"note" validate:"max=1000"`
}

type addressPayload struct {
	Street     string `json:"street" validate:"max=200"`
	City       string `json:"city" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"max=20"`
}

// Completeness is checked by the wizard on advance, so the draft accepts
// partial input here and only bounds lengths.
type updateDraftRequest struct {
	Contact         *contactPayload `json:"contact"`
	Address         *addressPayload `json:"address"`
	FulfillmentType *string         `json:"fulfillmentType" validate:"omitempty,oneof=delivery pickup"`
	ZoneID          *string         `json:"zoneId" validate:"omitempty,max=64"`
	StoreID         *string         `json:"storeId" validate:"omitempty,max=64"`
	PaymentMethodID *string         `json:"paymentMethodId" validate:"omitempty,max=64"`
}

func (p updateDraftRequest) toPatch() checkout.DraftPatch {
	patch := checkout.DraftPatch{
		FulfillmentType: p.FulfillmentType,
		ZoneID:          p.ZoneID,
		StoreID:         p.StoreID,
		PaymentMethodID: p.PaymentMethodID,
	}
	if p.Contact != nil {
		patch.Contact = &checkout.Contact{
			FirstName: p.Contact.FirstName,
			LastName:  p.Contact.LastName,
			Email:     p.Contact.Email,
			Phone:     p.Contact.Phone,
			Note:      p.Contact.Note,
		}
	}
	if p.Address != nil {
		patch.Address = &checkout.Address{
			Street:     p.Address.Street,
			City:       p.Address.City,
			PostalCode: p.Address.PostalCode,
		}
	}
	return patch
}

func sessionID(r *http.Request, logg *logger.Logger) (*http.Request, string) {
	id := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	if logg != nil {
		r = r.WithContext(logg.WithCheckoutSession(r.Context(), id))
	}
	return r, id
}

// CheckoutStart opens a wizard session over the caller's cart.
func CheckoutStart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withCart(r, logg)
		view, err := svc.Start(r.Context(), cartID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func CheckoutGet(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, id := sessionID(r, logg)
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CheckoutUpdateDraft(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, id := sessionID(r, logg)
		var payload updateDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateDraft(r.Context(), id, payload.toPatch())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CheckoutAdvance(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, id := sessionID(r, logg)
		view, err := svc.Advance(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutBack moves one stage back. From contact the view carries exitToCart.
func CheckoutBack(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, id := sessionID(r, logg)
		view, err := svc.Back(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutSubmit persists the order. Failures leave the session on the payment stage.
func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, id := sessionID(r, logg)
		view, err := svc.Submit(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}
