package model

import "github.com/shopspring/decimal"

// CartItem is one line of the cart. Quantity is always at least 1 while the
// line is present.
type CartItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// LineTotal returns quantity times the cached unit price.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSummary holds the derived totals of a cart.
type CartSummary struct {
	Items         []CartItem      `json:"items"`
	LineCount     int             `json:"lineCount"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Mode          string          `json:"mode"`
}
