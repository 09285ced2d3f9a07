package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/api/middleware"
	"github.com/angelmondragon/florist-backend/api/responses"
	"github.com/angelmondragon/florist-backend/api/validators"
	cartsvc "github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/pkg/logger"
)

type addCartItemRequest struct {
	ProductID string          `json:"productId" validate:"required,max=128"`
	Name      string          `json:"name" validate:"required,max=256"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	ImageRef  string          `json:"imageRef" validate:"max=1024"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func cartID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(middleware.CartIDHeader))
}

func withCart(r *http.Request, logg *logger.Logger) *http.Request {
	if logg == nil {
		return r
	}
	return r.WithContext(logg.WithCartID(r.Context(), cartID(r)))
}

// CartGet returns the lines and totals for the cart named by X-Cart-Id.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withCart(r, logg)
		view, err := svc.Get(r.Context(), cartID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem adds one unit of a product, creating the line when absent.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withCart(r, logg)
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.AddItem(r.Context(), cartID(r), cartsvc.Item{
			ProductID: validators.SanitizeText(payload.ProductID, validators.MaxProductIDRunes),
			Name:      validators.SanitizeText(payload.Name, validators.MaxProductNameRunes),
			UnitPrice: payload.UnitPrice,
			ImageRef:  strings.TrimSpace(payload.ImageRef),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartSetQuantity replaces a line's quantity. Zero or less removes the line.
func CartSetQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withCart(r, logg)
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.SetQuantity(r.Context(), cartID(r), productIDParam(r), *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withCart(r, logg)
		view, err := svc.RemoveItem(r.Context(), cartID(r), productIDParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = withCart(r, logg)
		view, err := svc.Clear(r.Context(), cartID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func productIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "productId"))
}
