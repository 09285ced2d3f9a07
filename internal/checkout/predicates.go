package checkout

import (
	"strings"

	"github.com/angelmondragon/florist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
)

const reasonRequired = "required"

// FieldErrors maps a draft field path to the reason it fails validation.
type FieldErrors map[string]string

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func contactErrors(d Draft) FieldErrors {
	errs := FieldErrors{}
	required := map[string]string{
		"contact.firstName": d.Contact.FirstName,
		"contact.lastName":  d.Contact.LastName,
		"contact.email":     d.Contact.Email,
		"contact.phone":     d.Contact.Phone,
	}
	if d.FulfillmentType() == enums.FulfillmentDelivery {
		required["address.street"] = d.Address.Street
		required["address.city"] = d.Address.City
		required["address.postalCode"] = d.Address.PostalCode
	}
	for field, value := range required {
		if blank(value) {
			errs[field] = reasonRequired
		}
	}
	return errs
}

func deliveryErrors(d Draft, ref Reference) FieldErrors {
	errs := FieldErrors{}
	switch d.FulfillmentType() {
	case enums.FulfillmentPickup:
		// no configured stores passes vacuously so checkout cannot deadlock
		if blank(d.Fulfillment.StoreID) && len(ref.Stores) > 0 {
			errs["fulfillment.storeId"] = reasonRequired
		}
	default:
		if blank(d.Fulfillment.ZoneID) {
			errs["fulfillment.zoneId"] = reasonRequired
		}
	}
	return errs
}

func paymentErrors(d Draft) FieldErrors {
	errs := FieldErrors{}
	if blank(d.Payment.MethodID) {
		errs["payment.methodId"] = reasonRequired
	}
	return errs
}

// ContactValid reports whether the contact stage can be left forward.
func ContactValid(d Draft) bool {
	return len(contactErrors(d)) == 0
}

func DeliveryValid(d Draft, ref Reference) bool {
	return len(deliveryErrors(d, ref)) == 0
}

func PaymentValid(d Draft) bool {
	return len(paymentErrors(d)) == 0
}

// StageErrors returns the failing fields of stage. Confirmation has no predicate.
func StageErrors(stage Stage, d Draft, ref Reference) FieldErrors {
	switch stage {
	case StageContact:
		return contactErrors(d)
	case StageDelivery:
		return deliveryErrors(d, ref)
	case StagePayment:
		return paymentErrors(d)
	default:
		return FieldErrors{}
	}
}

func StageValid(stage Stage, d Draft, ref Reference) bool {
	return len(StageErrors(stage, d, ref)) == 0
}

// ValidateStage returns a validation error carrying the inline field errors, or nil.
func ValidateStage(stage Stage, d Draft, ref Reference) error {
	errs := StageErrors(stage, d, ref)
	if len(errs) == 0 {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "%s stage is incomplete", stage).
		WithDetails(map[string]any{"stage": int(stage), "fields": errs})
}
