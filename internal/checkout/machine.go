package checkout

import (
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
)

var (
	// ErrAdvanceRejected is returned, with field details, when the current stage is incomplete.
	ErrAdvanceRejected = pkgerrors.New(pkgerrors.CodeValidation, "current stage is incomplete")
	// ErrSubmitRequired means confirmation is only reached by submitting the order.
	ErrSubmitRequired   = pkgerrors.New(pkgerrors.CodeStateConflict, "submit the order to continue")
	ErrCheckoutComplete = pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already completed")
	// ErrLeaveToCart means moving back from the first stage; the caller routes to the cart view.
	ErrLeaveToCart          = pkgerrors.New(pkgerrors.CodeStateConflict, "checkout left for the cart")
	ErrEmptyCart            = pkgerrors.New(pkgerrors.CodeCartEmpty, "cart is empty")
	ErrSubmitInFlight       = pkgerrors.New(pkgerrors.CodeConflict, "order submission already in progress")
	ErrDraftLocked          = pkgerrors.New(pkgerrors.CodeStateConflict, "draft cannot change after submission")
	ErrSubmitOutsidePayment = pkgerrors.New(pkgerrors.CodeStateConflict, "orders are submitted from the payment stage")
	ErrUnknownStage         = pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout stage")
)

// Advance moves from stage to the next one when stage's predicate holds.
// On rejection the returned stage equals the input.
func Advance(stage Stage, d Draft, ref Reference) (Stage, error) {
	switch stage {
	case StageConfirmation:
		return stage, ErrCheckoutComplete
	case StagePayment:
		return stage, ErrSubmitRequired
	case StageContact, StageDelivery:
	default:
		return stage, ErrUnknownStage
	}
	if errs := StageErrors(stage, d, ref); len(errs) > 0 {
		return stage, ErrAdvanceRejected.WithDetails(map[string]any{"stage": int(stage), "fields": errs})
	}
	return stage + 1, nil
}

// Retreat moves one stage back. The draft is never touched.
func Retreat(stage Stage) (Stage, error) {
	switch stage {
	case StageDelivery, StagePayment:
		return stage - 1, nil
	case StageContact:
		return stage, ErrLeaveToCart
	case StageConfirmation:
		return stage, ErrCheckoutComplete
	default:
		return stage, ErrUnknownStage
	}
}
