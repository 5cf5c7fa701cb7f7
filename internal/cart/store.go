// Package cart holds the client-side view of the cart and delegates
// persistence to a Backend chosen by the session mode.
package cart

import (
	"context"
	"errors"
	"sync"

	"freshcart/internal/apiclient"
	"freshcart/internal/model"
	"freshcart/internal/session"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Listener receives a snapshot of the cart after every change.
type Listener func(items []model.CartItem)

// Store is the single source of truth for what is in the cart. Every line
// has a positive quantity and no two lines share a product.
//
// Mutations are serialized, so the refetch of one remote mutation cannot
// overwrite the result of a later one.
type Store struct {
	opMu sync.Mutex

	mu        sync.RWMutex
	backend   Backend
	mode      session.Mode
	items     []model.CartItem
	listeners []Listener

	logger zerolog.Logger
}

// NewStore creates an empty store over backend. Call Reload to populate it.
func NewStore(backend Backend, mode session.Mode, logger zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		mode:    mode,
		items:   []model.CartItem{},
		logger:  logger.With().Str("component", "cart").Logger(),
	}
}

// OnChange registers a listener. Listeners run synchronously after the
// change is applied, outside of the store's locks.
func (s *Store) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetBackend switches the owning store and reloads the cart from it. The
// previous mode's lines are discarded, never merged.
func (s *Store) SetBackend(ctx context.Context, mode session.Mode, backend Backend) error {
	s.opMu.Lock()

	s.mu.Lock()
	s.backend = backend
	s.mode = mode
	s.mu.Unlock()

	items, err := backend.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("mode", mode.String()).Msg("cart load failed after mode switch, starting empty")
		items = nil
	}

	s.logger.Info().Str("mode", mode.String()).Int("lines", len(items)).Msg("cart backend switched")
	s.applyAndNotify(items)
	return err
}

// Reload refetches the cart from the current backend. On failure the cached
// lines are kept and the error is returned.
func (s *Store) Reload(ctx context.Context) error {
	s.opMu.Lock()

	items, err := s.currentBackend().Load(ctx)
	if err != nil {
		s.opMu.Unlock()
		s.logger.Warn().
			Err(err).
			Bool("network", errors.Is(err, apiclient.ErrNetwork)).
			Msg("cart reload failed, keeping cached lines")
		return err
	}

	s.applyAndNotify(items)
	return nil
}

// Add puts quantity units of product into the cart, accumulating onto an
// existing line. quantity must be at least 1.
func (s *Store) Add(ctx context.Context, product model.Product, quantity int) error {
	if quantity < 1 {
		return model.ErrInvalidQuantity
	}
	if product.ID == "" {
		return model.ErrProductNotFound
	}

	return s.mutate(func(b Backend) ([]model.CartItem, error) {
		return b.Add(ctx, product, quantity)
	})
}

// UpdateQuantity sets the absolute quantity of a line. A quantity of zero or
// less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	return s.mutate(func(b Backend) ([]model.CartItem, error) {
		return b.Update(ctx, productID, quantity)
	})
}

// Remove deletes a line. Removing an absent line is a no-op.
func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.mutate(func(b Backend) ([]model.CartItem, error) {
		return b.Remove(ctx, productID)
	})
}

// Clear empties the cart and its persisted representation.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(func(b Backend) ([]model.CartItem, error) {
		return nil, b.Clear(ctx)
	})
}

func (s *Store) mutate(op func(Backend) ([]model.CartItem, error)) error {
	s.opMu.Lock()

	items, err := op(s.currentBackend())
	if err != nil {
		s.opMu.Unlock()
		s.logger.Warn().Err(err).Msg("cart mutation failed")
		return err
	}

	s.applyAndNotify(items)
	return nil
}

// applyAndNotify stores items, releases opMu and then runs the listeners.
func (s *Store) applyAndNotify(items []model.CartItem) {
	items = normalize(items)

	s.mu.Lock()
	s.items = items
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.opMu.Unlock()

	for _, fn := range listeners {
		fn(copyItems(items))
	}
}

func (s *Store) currentBackend() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// Mode returns the session mode of the current backend.
func (s *Store) Mode() session.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []model.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyItems(s.items)
}

// Quantity returns the quantity of a product in the cart, or 0.
func (s *Store) Quantity(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// ProductIDs returns the product of every line in cart order.
func (s *Store) ProductIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.items))
	for i, item := range s.items {
		ids[i] = item.ProductID
	}
	return ids
}

// LineCount returns the number of lines.
func (s *Store) LineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// TotalQuantity returns the sum of all line quantities.
func (s *Store) TotalQuantity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalQuantity(s.items)
}

// TotalPrice returns the sum of quantity times cached unit price. It is not
// checked against live stock.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPrice(s.items)
}

// Summary returns the lines together with the derived totals.
func (s *Store) Summary() model.CartSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.CartSummary{
		Items:         copyItems(s.items),
		LineCount:     len(s.items),
		TotalQuantity: totalQuantity(s.items),
		TotalPrice:    totalPrice(s.items),
		Mode:          s.mode.String(),
	}
}

func totalQuantity(items []model.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func totalPrice(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func copyItems(items []model.CartItem) []model.CartItem {
	return append([]model.CartItem{}, items...)
}
