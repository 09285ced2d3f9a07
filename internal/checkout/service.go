// Package checkout implements the four-stage checkout wizard over a cart.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/internal/deliveryzones"
	"github.com/angelmondragon/florist-backend/internal/paymentmethods"
	"github.com/angelmondragon/florist-backend/internal/stores"
	"github.com/angelmondragon/florist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/metrics"
)

// DraftPatch carries the draft edits of one request. Nil fields are left untouched.
type DraftPatch struct {
	Contact         *Contact
	Address         *Address
	FulfillmentType *string
	ZoneID          *string
	StoreID         *string
	PaymentMethodID *string
}

// Service orchestrates checkout sessions for the HTTP layer.
type Service interface {
	Start(ctx context.Context, cartID string) (*View, error)
	Get(ctx context.Context, sessionID string) (*View, error)
	UpdateDraft(ctx context.Context, sessionID string, patch DraftPatch) (*View, error)
	Advance(ctx context.Context, sessionID string) (*View, error)
	Back(ctx context.Context, sessionID string) (*View, error)
	Submit(ctx context.Context, sessionID string) (*View, error)
}

// ReferenceProviders groups the reference-data sources snapshotted at Start.
type ReferenceProviders struct {
	Zones   deliveryzones.Provider
	Stores  stores.Provider
	Methods paymentmethods.Provider
}

type ServiceParams struct {
	Sessions  SessionStore
	Carts     cart.Opener
	Gateway   OrderGateway
	Reference ReferenceProviders
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type service struct {
	sessions SessionStore
	carts    cart.Opener
	gateway  OrderGateway
	ref      ReferenceProviders
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session store required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart opener required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order gateway required")
	}
	if params.Reference.Zones == nil || params.Reference.Stores == nil || params.Reference.Methods == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reference providers required")
	}
	return &service{
		sessions: params.Sessions,
		carts:    params.Carts,
		gateway:  params.Gateway,
		ref:      params.Reference,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Start(ctx context.Context, cartID string) (*View, error) {
	if err := cart.ValidateCartID(cartID); err != nil {
		return nil, err
	}
	store, err := s.carts.Open(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	ref, notices := s.loadReference(ctx)
	sessionID := uuid.NewString()
	wizard, err := Begin(ctx, sessionID, store, ref, s.gateway, s.logg)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &Session{
		State:     wizard.State(),
		CartID:    cartID,
		Notices:   notices,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithCheckoutSession(s.logg.WithCartID(ctx, cartID), sessionID)
		s.logg.Info(ctx, "checkout started")
	}
	return buildView(session, store), nil
}

// loadReference snapshots each list once. A failing provider yields an empty list and a notice.
func (s *service) loadReference(ctx context.Context) (Reference, []Notice) {
	var (
		ref     Reference
		notices []Notice
	)
	zones, err := s.ref.Zones.ActiveZones(ctx)
	if err != nil {
		notices = append(notices, s.referenceNotice(ctx, "delivery_zones", err))
	}
	pickup, err := s.ref.Stores.ActivePickupStores(ctx)
	if err != nil {
		notices = append(notices, s.referenceNotice(ctx, "pickup_stores", err))
	}
	methods, err := s.ref.Methods.ActiveMethods(ctx)
	if err != nil {
		notices = append(notices, s.referenceNotice(ctx, "payment_methods", err))
	}
	ref.Zones, ref.Stores, ref.Methods = zones, pickup, methods
	return ref, notices
}

func (s *service) referenceNotice(ctx context.Context, source string, err error) Notice {
	if s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "source", source), "reference data unavailable", err)
	}
	return Notice{Code: NoticeReferenceUnavailable, Source: source}
}

func (s *service) Get(ctx context.Context, sessionID string) (*View, error) {
	session, wizard, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return buildView(session, wizard.Cart()), nil
}

func (s *service) UpdateDraft(ctx context.Context, sessionID string, patch DraftPatch) (*View, error) {
	return s.mutate(ctx, sessionID, func(w *Wizard) error {
		if patch.Contact != nil {
			if err := w.UpdateContact(*patch.Contact); err != nil {
				return err
			}
		}
		if patch.Address != nil {
			if err := w.UpdateAddress(*patch.Address); err != nil {
				return err
			}
		}
		if patch.FulfillmentType != nil {
			t, err := enums.ParseFulfillmentType(*patch.FulfillmentType)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fulfillment type")
			}
			if err := w.SetFulfillment(t); err != nil {
				return err
			}
		}
		if patch.ZoneID != nil {
			if err := w.SelectZone(*patch.ZoneID); err != nil {
				return err
			}
		}
		if patch.StoreID != nil {
			if err := w.SelectStore(*patch.StoreID); err != nil {
				return err
			}
		}
		if patch.PaymentMethodID != nil {
			if err := w.SelectPaymentMethod(*patch.PaymentMethodID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) Advance(ctx context.Context, sessionID string) (*View, error) {
	return s.mutate(ctx, sessionID, func(w *Wizard) error {
		from := w.Stage()
		err := w.Advance(ctx)
		s.metrics.ObserveTransition(from.String(), transitionResult("advanced", err))
		return err
	})
}

func (s *service) Back(ctx context.Context, sessionID string) (*View, error) {
	session, wizard, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	from := wizard.Stage()
	err = wizard.Back(ctx)
	s.metrics.ObserveTransition(from.String(), transitionResult("retreated", err))
	switch {
	case err == nil:
	case errors.Is(err, ErrLeaveToCart), errors.Is(err, ErrEmptyCart):
		view := buildView(session, wizard.Cart())
		view.ExitToCart = true
		return view, nil
	default:
		return nil, err
	}
	session.State = wizard.State()
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return buildView(session, wizard.Cart()), nil
}

func (s *service) Submit(ctx context.Context, sessionID string) (*View, error) {
	session, wizard, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithCheckoutSession(s.logg.WithCartID(ctx, session.CartID), sessionID)
	}

	start := time.Now()
	orderID, err := wizard.Place(ctx)
	s.metrics.ObserveSubmission(submissionOutcome(err), time.Since(start))
	if err != nil {
		if s.logg != nil && pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
			s.logg.Error(ctx, "order submission failed", err)
		}
		return nil, err
	}

	// The confirmation is stored before the cart changes. If this save fails the
	// cart still holds the lines and a retry replays the order by submission key.
	session.State = wizard.State()
	if err := s.save(ctx, session); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "order_id", orderID.String()), "order placed but session not saved", err)
		}
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()), "checkout submitted")
	}
	s.reconcile(ctx, session, wizard)
	return buildView(session, wizard.Cart()), nil
}

func (s *service) mutate(ctx context.Context, sessionID string, fn func(*Wizard) error) (*View, error) {
	session, wizard, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(wizard); err != nil {
		return nil, err
	}
	session.State = wizard.State()
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return buildView(session, wizard.Cart()), nil
}

// load reconstitutes the wizard and retries any cart clear left pending by a submission.
func (s *service) load(ctx context.Context, sessionID string) (*Session, *Wizard, error) {
	sessionID = strings.TrimSpace(sessionID)
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, nil, ErrSessionNotFound
	}
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, nil, err
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	store, err := s.carts.Open(ctx, session.CartID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	wizard := Resume(session.State, store, s.gateway, s.logg)
	s.reconcile(ctx, session, wizard)
	return session, wizard, nil
}

// reconcile retries a pending cart clear. Failures are logged and left flagged
// so the next load tries again.
func (s *service) reconcile(ctx context.Context, session *Session, wizard *Wizard) {
	if !session.CartClearPending {
		return
	}
	err := wizard.Reconcile(ctx)
	if err == nil {
		session.State = wizard.State()
		err = s.save(ctx, session)
	}
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"session_id": session.SessionID,
			"error":      err.Error(),
		}), "pending cart clear still failing")
	}
}

func (s *service) save(ctx context.Context, session *Session) error {
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return nil
}

func transitionResult(success string, err error) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, ErrEmptyCart):
		return "cart_empty"
	case errors.Is(err, ErrLeaveToCart):
		return "left_to_cart"
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		return "rejected"
	default:
		return "refused"
	}
}

func submissionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation):
		return "invalid"
	case pkgerrors.HasCode(err, pkgerrors.CodeDependency):
		return "failed"
	default:
		return "refused"
	}
}
