package checkout

import (
	"errors"
	"fmt"
	"strings"

	"freshcart/internal/reconcile"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnauthorized means the server rejected the session token.
	ErrUnauthorized = errors.New("session is no longer valid, please log in again")

	// ErrAllOutOfStock means nothing in the cart can be fulfilled.
	ErrAllOutOfStock = errors.New("all items in the cart are out of stock")

	// ErrSubmissionInProgress rejects a second concurrent submission.
	ErrSubmissionInProgress = errors.New("an order submission is already in progress")
)

// MinOrderError blocks a submission whose subtotal is below the minimum
// order. Shortfall is the amount still missing.
type MinOrderError struct {
	Minimum   decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("minimum order is %s, add %s more", e.Minimum.String(), e.Shortfall.String())
}

// StockConflictError blocks a submission while the cart disagrees with
// live stock.
type StockConflictError struct {
	Findings      []reconcile.Finding
	AllOutOfStock bool
}

func (e *StockConflictError) Error() string {
	names := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		names[i] = f.Name
	}
	return fmt.Sprintf("stock changed for %s", strings.Join(names, ", "))
}

// Is matches ErrAllOutOfStock when every line is out of stock.
func (e *StockConflictError) Is(target error) bool {
	return e.AllOutOfStock && target == ErrAllOutOfStock
}
