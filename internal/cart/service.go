package cart

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/florist-backend/pkg/errors"
	"github.com/angelmondragon/florist-backend/pkg/money"
)

// View is the API projection of a cart.
type View struct {
	CartID    string          `json:"cartId"`
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
}

// Service exposes cart operations addressed by a client-held cart id.
type Service interface {
	Get(ctx context.Context, cartID string) (*View, error)
	AddItem(ctx context.Context, cartID string, item Item) (*View, error)
	SetQuantity(ctx context.Context, cartID, productID string, quantity int) (*View, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*View, error)
	Clear(ctx context.Context, cartID string) (*View, error)
}

type service struct {
	opener Opener
}

func NewService(opener Opener) (Service, error) {
	if opener == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart opener required")
	}
	return &service{opener: opener}, nil
}

func (s *service) Get(ctx context.Context, cartID string) (*View, error) {
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return NewView(cartID, store), nil
}

func (s *service) AddItem(ctx context.Context, cartID string, item Item) (*View, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	item.Name = strings.TrimSpace(item.Name)
	if item.ProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if money.IsNegative(item.UnitPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unitPrice must not be negative")
	}
	return s.apply(ctx, cartID, func(store *Store) error {
		return store.AddItem(ctx, item)
	})
}

func (s *service) SetQuantity(ctx context.Context, cartID, productID string, quantity int) (*View, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return s.apply(ctx, cartID, func(store *Store) error {
		return store.SetQuantity(ctx, productID, quantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, cartID, productID string) (*View, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	return s.apply(ctx, cartID, func(store *Store) error {
		return store.RemoveItem(ctx, productID)
	})
}

func (s *service) Clear(ctx context.Context, cartID string) (*View, error) {
	return s.apply(ctx, cartID, func(store *Store) error {
		return store.Clear(ctx)
	})
}

func (s *service) apply(ctx context.Context, cartID string, fn func(*Store) error) (*View, error) {
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := fn(store); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return NewView(cartID, store), nil
}

func (s *service) open(ctx context.Context, cartID string) (*Store, error) {
	if err := ValidateCartID(cartID); err != nil {
		return nil, err
	}
	store, err := s.opener.Open(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return store, nil
}

// ValidateCartID requires the client-generated cart id to be a UUID.
func ValidateCartID(cartID string) error {
	if _, err := uuid.Parse(strings.TrimSpace(cartID)); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id must be a uuid")
	}
	return nil
}

// NewView snapshots store into its API projection.
func NewView(cartID string, store *Store) *View {
	lines := store.Lines()
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return &View{
		CartID:    cartID,
		Lines:     lines,
		ItemCount: count,
		Total:     LinesTotal(lines),
	}
}
