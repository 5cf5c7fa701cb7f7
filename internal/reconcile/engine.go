// Package reconcile keeps cart quantities consistent with live stock. It
// clamps quantities that exceed stock, flags (never removes) items that are
// out of stock, and announces each distinct change once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"freshcart/internal/model"
	"freshcart/internal/notify"

	"github.com/rs/zerolog"
)

// Mode selects whether a pass applies clamps.
type Mode int

const (
	// Mutate clamps cart quantities down to the available stock.
	Mutate Mode = iota
	// NotifyOnly reports the same findings without touching the cart.
	NotifyOnly
)

func (m Mode) String() string {
	if m == NotifyOnly {
		return "notify-only"
	}
	return "mutate"
}

// Kind classifies a finding.
type Kind string

const (
	KindClamped    Kind = "clamped"
	KindOutOfStock Kind = "out_of_stock"
)

// Finding is one cart line that disagrees with live stock.
type Finding struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Result describes one reconciliation pass.
type Result struct {
	Findings []Finding `json:"findings"`
	Lines    int       `json:"lines"`
	Notified int       `json:"notified"`
	Paused   bool      `json:"paused"`
}

// Clamped returns the findings whose stock is positive but short.
func (r Result) Clamped() []Finding {
	return r.filter(KindClamped)
}

// OutOfStock returns the findings whose stock is zero.
func (r Result) OutOfStock() []Finding {
	return r.filter(KindOutOfStock)
}

// AllOutOfStock reports whether every line of a nonempty cart is out of
// stock. The engine leaves such a cart intact; callers decide what to do.
func (r Result) AllOutOfStock() bool {
	return r.Lines > 0 && len(r.OutOfStock()) == r.Lines
}

func (r Result) filter(kind Kind) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Cart is the part of the cart store the engine reads and mutates.
type Cart interface {
	Items() []model.CartItem
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
}

// Notifier receives the batched toast of a pass.
type Notifier interface {
	Push(t notify.Toast) notify.Toast
}

// notifyState suppresses repeated announcements for one product. Warnings
// and applied clamps are tracked apart so a clamp is never silent.
type notifyState struct {
	warnedAvailable    *int // last shortfall announced without changing the cart
	clampAnnounced     *int // last quantity the cart was clamped to and told
	outOfStockNotified bool
}

// Engine runs reconciliation passes.
type Engine struct {
	cart     Cart
	notifier Notifier
	gate     *Gate

	mu     sync.Mutex
	states map[string]*notifyState

	logger zerolog.Logger
}

// NewEngine creates an engine. gate may be shared with the checkout flow.
func NewEngine(cart Cart, notifier Notifier, gate *Gate, logger zerolog.Logger) *Engine {
	if gate == nil {
		gate = NewGate()
	}
	return &Engine{
		cart:     cart,
		notifier: notifier,
		gate:     gate,
		states:   make(map[string]*notifyState),
		logger:   logger.With().Str("component", "reconcile").Logger(),
	}
}

// Gate returns the engine's suspend gate.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// Reconcile compares the cart against stock. Products missing from stock
// are unknown and left alone. While the gate is suspended the pass does
// nothing. Clamp failures are joined into the returned error; the other
// lines are still processed.
func (e *Engine) Reconcile(ctx context.Context, stock map[string]int, mode Mode) (Result, error) {
	if e.gate.Suspended() {
		e.logger.Debug().Msg("reconciliation suspended")
		return Result{Paused: true}, nil
	}

	// Serialize passes so notification state is updated in order
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.passLocked(ctx, stock, mode)
}

// Hold suspends reconciliation and returns once no pass is in flight, so
// the cart read by the holder no longer changes under automatic clamps.
func (e *Engine) Hold() (release func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.Suspend()
}

// Verify runs a notify-only pass regardless of the gate. It serves the
// holder of the gate, which needs the findings while passes are paused.
func (e *Engine) Verify(ctx context.Context, stock map[string]int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.passLocked(ctx, stock, NotifyOnly)
}

func (e *Engine) passLocked(ctx context.Context, stock map[string]int, mode Mode) (Result, error) {
	items := e.cart.Items()
	result := Result{Lines: len(items)}

	var announce []Finding
	var errs []error

	for _, item := range items {
		available, known := stock[item.ProductID]
		if !known {
			continue
		}
		if available < 0 {
			available = 0
		}

		state := e.stateLocked(item.ProductID)

		if available > 0 {
			state.outOfStockNotified = false
		}

		switch {
		case available == 0:
			f := newFinding(item, KindOutOfStock, 0)
			result.Findings = append(result.Findings, f)
			if !state.outOfStockNotified {
				state.outOfStockNotified = true
				announce = append(announce, f)
			}

		case available < item.Quantity:
			f := newFinding(item, KindClamped, available)
			result.Findings = append(result.Findings, f)

			if mode == NotifyOnly {
				if !sameQuantity(state.warnedAvailable, available) {
					state.warnedAvailable = intPtr(available)
					announce = append(announce, f)
				}
				continue
			}

			if err := e.cart.UpdateQuantity(ctx, item.ProductID, available); err != nil {
				e.logger.Warn().Err(err).Str("product_id", item.ProductID).Msg("failed to clamp cart quantity")
				errs = append(errs, fmt.Errorf("failed to clamp %s: %w", item.ProductID, err))
				continue
			}
			if !sameQuantity(state.clampAnnounced, available) {
				state.clampAnnounced = intPtr(available)
				state.warnedAvailable = intPtr(available)
				announce = append(announce, f)
			}
		}
	}

	e.pruneLocked(items)

	if len(announce) > 0 && e.notifier != nil {
		e.notifier.Push(notify.Toast{
			Level:      notify.LevelWarning,
			Message:    message(announce, mode),
			ProductIDs: productIDs(announce),
		})
	}
	result.Notified = len(announce)

	if len(result.Findings) > 0 {
		e.logger.Info().
			Str("mode", mode.String()).
			Int("findings", len(result.Findings)).
			Int("notified", result.Notified).
			Msg("cart reconciled against stock")
	}

	return result, errors.Join(errs...)
}

func (e *Engine) stateLocked(productID string) *notifyState {
	s, ok := e.states[productID]
	if !ok {
		s = &notifyState{}
		e.states[productID] = s
	}
	return s
}

// pruneLocked forgets products that left the cart, so a product added
// again later starts a fresh episode.
func (e *Engine) pruneLocked(items []model.CartItem) {
	inCart := make(map[string]bool, len(items))
	for _, item := range items {
		inCart[item.ProductID] = true
	}
	for id := range e.states {
		if !inCart[id] {
			delete(e.states, id)
		}
	}
}

func sameQuantity(recorded *int, quantity int) bool {
	return recorded != nil && *recorded == quantity
}

func intPtr(v int) *int {
	return &v
}

func newFinding(item model.CartItem, kind Kind, available int) Finding {
	name := item.Product.Name
	if name == "" {
		name = item.ProductID
	}
	return Finding{
		ProductID: item.ProductID,
		Name:      name,
		Kind:      kind,
		Requested: item.Quantity,
		Available: available,
	}
}

// message renders one toast for the whole pass: item-specific for a single
// finding, an aggregate count otherwise.
func message(findings []Finding, mode Mode) string {
	if len(findings) > 1 {
		if mode == NotifyOnly {
			return fmt.Sprintf("%d items in your cart have limited stock", len(findings))
		}
		return fmt.Sprintf("%d items in your cart were updated due to stock changes", len(findings))
	}

	f := findings[0]
	if f.Kind == KindOutOfStock {
		return fmt.Sprintf("%s is out of stock", f.Name)
	}
	if mode == NotifyOnly {
		return fmt.Sprintf("Only %d of %s available", f.Available, f.Name)
	}
	return fmt.Sprintf("Only %d of %s left, quantity updated", f.Available, f.Name)
}

func productIDs(findings []Finding) []string {
	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.ProductID
	}
	return ids
}
