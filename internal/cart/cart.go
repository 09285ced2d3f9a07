// Package cart holds the customer's intended purchase, independent of checkout.
package cart

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/money"
)

// Line is one product in the cart. A cart holds at most one line per ProductID.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"imageRef"`
}

// Item is a line without a quantity, the input of AddItem.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	ImageRef  string
}

// Persister is the storage strategy for the serialized cart.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store is the in-memory cart backed by a Persister. Every mutation writes the
// full array and only takes effect in memory once the write succeeds.
type Store struct {
	mu        sync.Mutex
	lines     []Line
	persister Persister
}

// Open reads the persisted cart once. Missing or malformed data yields an empty cart.
func Open(ctx context.Context, persister Persister, logg *logger.Logger) (*Store, error) {
	raw, err := persister.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{lines: decodeLines(ctx, raw, logg), persister: persister}, nil
}

func decodeLines(ctx context.Context, raw []byte, logg *logger.Logger) []Line {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []Line{}
	}
	var stored []Line
	if err := json.Unmarshal(raw, &stored); err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "persisted cart is malformed, starting empty")
		}
		return []Line{}
	}

	lines := make([]Line, 0, len(stored))
	index := make(map[string]int, len(stored))
	dropped := 0
	for _, line := range stored {
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" || line.Quantity < 1 || money.IsNegative(line.UnitPrice) {
			dropped++
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			lines[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(lines)
		lines = append(lines, line)
	}
	if dropped > 0 && logg != nil {
		logg.Warn(logg.WithField(ctx, "dropped_lines", dropped), "persisted cart contained invalid lines")
	}
	return lines
}

// AddItem increments the matching line or appends a new one with quantity 1.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	return s.mutate(ctx, func(lines []Line) []Line {
		for i := range lines {
			if lines[i].ProductID == item.ProductID {
				lines[i].Quantity++
				return lines
			}
		}
		return append(lines, Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  1,
			ImageRef:  item.ImageRef,
		})
	})
}

// RemoveItem deletes the line for productID. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(lines []Line) []Line {
		out := lines[:0]
		for _, line := range lines {
			if line.ProductID != productID {
				out = append(out, line)
			}
		}
		return out
	})
}

// SetQuantity overwrites a line's quantity; quantity <= 0 removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}
	return s.mutate(ctx, func(lines []Line) []Line {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = quantity
			}
		}
		return lines
	})
}

// RemoveLines takes the given quantities out of the cart, line by line. A line whose
// quantity drops to zero is removed; products not in the cart are ignored.
func (s *Store) RemoveLines(ctx context.Context, taken []Line) error {
	return s.mutate(ctx, func(lines []Line) []Line {
		out := lines[:0]
		for _, line := range lines {
			for _, t := range taken {
				if t.ProductID == line.ProductID {
					line.Quantity -= t.Quantity
				}
			}
			if line.Quantity > 0 {
				out = append(out, line)
			}
		}
		return out
	})
}

// Clear empties the cart and overwrites storage with an empty array.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Line) []Line { return []Line{} })
}

// Total is the exact sum of unit price times quantity.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LinesTotal(s.lines)
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *Store) mutate(ctx context.Context, fn func([]Line) []Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(append([]Line(nil), s.lines...))
	if next == nil {
		next = []Line{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := s.persister.Save(ctx, data); err != nil {
		return err
	}
	s.lines = next
	return nil
}

// LinesTotal is the exact sum of unit price times quantity over lines.
func LinesTotal(lines []Line) decimal.Decimal {
	sum := money.Zero
	for _, line := range lines {
		sum = sum.Add(money.LineTotal(line.UnitPrice, line.Quantity))
	}
	return sum
}
