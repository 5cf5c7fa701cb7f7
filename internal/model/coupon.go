package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType is the kind of discount a coupon grants.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

// Coupon is a promotional code as served by the remote API.
// StartsAt and ExpiresAt are kept raw: a value that does not parse is
// treated as an open bound rather than a reason to reject the coupon.
type Coupon struct {
	Code          string           `json:"code"`
	Description   string           `json:"description,omitempty"`
	DiscountType  DiscountType     `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	StartsAt      string           `json:"startsAt,omitempty"`
	ExpiresAt     string           `json:"expiresAt,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

// Active reports the isActive flag, which defaults to true when absent.
func (c Coupon) Active() bool {
	return c.IsActive == nil || *c.IsActive
}

// Matches compares coupon codes case-insensitively.
func (c Coupon) Matches(code string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Code), strings.TrimSpace(code))
}

// FindCoupon returns the coupon with the given code, if any.
func FindCoupon(coupons []Coupon, code string) (Coupon, bool) {
	for _, c := range coupons {
		if c.Matches(code) {
			return c, true
		}
	}
	return Coupon{}, false
}
