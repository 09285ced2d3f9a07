package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/logger"
)

// OrderGateway persists a finished checkout and returns the order id.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, order *models.Order) (uuid.UUID, error)
}

// State is the persisted part of a wizard.
type State struct {
	SessionID        string     `json:"sessionId"`
	Stage            Stage      `json:"stage"`
	Draft            Draft      `json:"draft"`
	Reference        Reference  `json:"reference"`
	OrderID          *uuid.UUID `json:"orderId,omitempty"`
	CartClearPending bool       `json:"cartClearPending"`
	// SubmittedLines are the cart lines the order was built from, kept until
	// they have been taken out of the cart.
	SubmittedLines []cart.Line `json:"submittedLines,omitempty"`
}

// Wizard drives one checkout over an injected cart and order gateway.
type Wizard struct {
	mu         sync.Mutex
	state      State
	cart       *cart.Store
	gateway    OrderGateway
	logg       *logger.Logger
	submitting bool
}

// Begin enters the contact stage. An empty cart aborts with ErrEmptyCart.
func Begin(ctx context.Context, sessionID string, store *cart.Store, ref Reference, gateway OrderGateway, logg *logger.Logger) (*Wizard, error) {
	if store == nil || store.IsEmpty() {
		return nil, ErrEmptyCart
	}
	return &Wizard{
		state: State{
			SessionID: sessionID,
			Stage:     StageContact,
			Draft:     Draft{Fulfillment: Fulfillment{Type: enums.FulfillmentDelivery}},
			Reference: ref,
		},
		cart:    store,
		gateway: gateway,
		logg:    logg,
	}, nil
}

// Resume rebuilds a wizard from persisted state.
func Resume(state State, store *cart.Store, gateway OrderGateway, logg *logger.Logger) *Wizard {
	return &Wizard{state: state, cart: store, gateway: gateway, logg: logg}
}

// State returns a copy of the persisted part of the wizard.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Stage
}

func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Draft
}

func (w *Wizard) Cart() *cart.Store {
	return w.cart
}

func (w *Wizard) ensureCart() error {
	if w.state.Stage != StageConfirmation && w.cart.IsEmpty() {
		return ErrEmptyCart
	}
	return nil
}

func (w *Wizard) edit(fn func(d *Draft) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Stage.Editable() {
		return ErrDraftLocked
	}
	if w.submitting {
		return ErrSubmitInFlight
	}
	draft := w.state.Draft
	if err := fn(&draft); err != nil {
		return err
	}
	w.state.Draft = draft
	return nil
}

func (w *Wizard) UpdateContact(c Contact) error {
	return w.edit(func(d *Draft) error {
		d.Contact = c
		return nil
	})
}

func (w *Wizard) UpdateAddress(a Address) error {
	return w.edit(func(d *Draft) error {
		d.Address = a
		return nil
	})
}

// SetFulfillment switches the fulfillment type and drops the selection of the other type.
func (w *Wizard) SetFulfillment(t enums.FulfillmentType) error {
	return w.edit(func(d *Draft) error {
		if !t.IsValid() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid fulfillment type %q", t)
		}
		d.Fulfillment.Type = t
		switch t {
		case enums.FulfillmentDelivery:
			d.Fulfillment.StoreID = ""
		case enums.FulfillmentPickup:
			d.Fulfillment.ZoneID = ""
		}
		return nil
	})
}

// SelectZone picks a delivery zone from the snapshot, implying delivery. An empty id clears it.
func (w *Wizard) SelectZone(id string) error {
	id = strings.TrimSpace(id)
	return w.edit(func(d *Draft) error {
		if id != "" {
			if _, ok := w.state.Reference.Zone(id); !ok {
				return unknownSelection("fulfillment.zoneId", id)
			}
		}
		d.Fulfillment = Fulfillment{Type: enums.FulfillmentDelivery, ZoneID: id}
		return nil
	})
}

// SelectStore picks a pickup store from the snapshot, implying pickup. An empty id clears it.
func (w *Wizard) SelectStore(id string) error {
	id = strings.TrimSpace(id)
	return w.edit(func(d *Draft) error {
		if id != "" {
			if _, ok := w.state.Reference.Store(id); !ok {
				return unknownSelection("fulfillment.storeId", id)
			}
		}
		d.Fulfillment = Fulfillment{Type: enums.FulfillmentPickup, StoreID: id}
		return nil
	})
}

func (w *Wizard) SelectPaymentMethod(id string) error {
	id = strings.TrimSpace(id)
	return w.edit(func(d *Draft) error {
		if id != "" {
			if _, ok := w.state.Reference.Method(id); !ok {
				return unknownSelection("payment.methodId", id)
			}
		}
		d.Payment.MethodID = id
		return nil
	})
}

func unknownSelection(field, id string) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown selection %q", id).
		WithDetails(map[string]any{"fields": FieldErrors{field: "not available"}})
}

// Advance moves forward one stage when the current stage is valid.
func (w *Wizard) Advance(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureCart(); err != nil {
		return err
	}
	next, err := Advance(w.state.Stage, w.state.Draft, w.state.Reference)
	if err != nil {
		return err
	}
	w.state.Stage = next
	return nil
}

// Back moves one stage backward keeping the draft intact.
func (w *Wizard) Back(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureCart(); err != nil {
		return err
	}
	prev, err := Retreat(w.state.Stage)
	if err != nil {
		return err
	}
	w.state.Stage = prev
	return nil
}

// Submit places the order and then takes the submitted lines out of the cart.
// A failed cart update leaves CartClearPending set for Reconcile.
func (w *Wizard) Submit(ctx context.Context) (uuid.UUID, error) {
	id, err := w.Place(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if clearErr := w.Reconcile(ctx); clearErr != nil && w.logg != nil {
		w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
			"order_id": id.String(),
			"error":    clearErr.Error(),
		}), "cart clear after submission failed, will retry")
	}
	return id, nil
}

// Place persists the order from the payment stage without touching the cart.
// On gateway failure the stage, draft and cart are unchanged. On success the
// wizard is in confirmation with the cart clear pending.
func (w *Wizard) Place(ctx context.Context) (uuid.UUID, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return uuid.Nil, ErrSubmitInFlight
	}
	if w.state.Stage == StageConfirmation {
		w.mu.Unlock()
		return uuid.Nil, ErrCheckoutComplete
	}
	if w.state.Stage != StagePayment {
		w.mu.Unlock()
		return uuid.Nil, ErrSubmitOutsidePayment
	}
	if err := w.ensureCart(); err != nil {
		w.mu.Unlock()
		return uuid.Nil, err
	}
	errs := FieldErrors{}
	for _, stage := range []Stage{StageContact, StageDelivery, StagePayment} {
		for field, reason := range StageErrors(stage, w.state.Draft, w.state.Reference) {
			errs[field] = reason
		}
	}
	if len(errs) > 0 {
		w.mu.Unlock()
		return uuid.Nil, ErrAdvanceRejected.WithDetails(map[string]any{"stage": int(StagePayment), "fields": errs})
	}
	lines := w.cart.Lines()
	order := BuildOrder(w.state.SessionID, w.state.Draft, w.state.Reference, lines)
	w.submitting = true
	w.mu.Unlock()

	id, err := w.gateway.PlaceOrder(ctx, order)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			return uuid.Nil, err
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order could not be placed")
	}

	w.state.OrderID = &id
	w.state.Stage = StageConfirmation
	w.state.CartClearPending = true
	w.state.SubmittedLines = lines
	return id, nil
}

// Reconcile takes the submitted lines out of the cart when that is still pending.
// Items added to the cart after the submission stay.
func (w *Wizard) Reconcile(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.CartClearPending {
		return nil
	}
	var err error
	if len(w.state.SubmittedLines) == 0 {
		err = w.cart.Clear(ctx)
	} else {
		err = w.cart.RemoveLines(ctx, w.state.SubmittedLines)
	}
	if err != nil {
		return err
	}
	w.state.CartClearPending = false
	w.state.SubmittedLines = nil
	return nil
}
