package controllers

import (
	"net/http"

	"github.com/angelmondragon/florist-backend/api/responses"
	"github.com/angelmondragon/florist-backend/internal/deliveryzones"
	"github.com/angelmondragon/florist-backend/internal/paymentmethods"
	"github.com/angelmondragon/florist-backend/internal/stores"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/logger"
)

func DeliveryZones(provider deliveryzones.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zones, err := provider.ActiveZones(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery zones"))
			return
		}
		responses.WriteSuccess(w, deliveryzones.FromModels(zones))
	}
}

func PickupStores(provider stores.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := provider.ActivePickupStores(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickup stores"))
			return
		}
		responses.WriteSuccess(w, stores.FromModels(list))
	}
}

func PaymentMethods(provider paymentmethods.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		methods, err := provider.ActiveMethods(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods"))
			return
		}
		responses.WriteSuccess(w, paymentmethods.FromModels(methods))
	}
}
