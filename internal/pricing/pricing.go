// Package pricing computes the payable amount of a checkout from the cart
// subtotal, the applied coupon and the delivery settings. Everything here
// is pure.
package pricing

import (
	"freshcart/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is the price breakdown of a checkout.
type Quote struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	NetSubtotal      decimal.Decimal `json:"netSubtotal"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
	Total            decimal.Decimal `json:"total"`
	CouponCode       string          `json:"couponCode,omitempty"`
	FreeDelivery     bool            `json:"freeDelivery"`
	MinOrderSubtotal decimal.Decimal `json:"minOrderSubtotal"`
	Shortfall        decimal.Decimal `json:"shortfall"`
	MeetsMinimum     bool            `json:"meetsMinimum"`
}

// Calculate prices a checkout. coupon may be nil. The minimum-order check
// uses the subtotal before discount and delivery.
func Calculate(subtotal decimal.Decimal, coupon *model.Coupon, settings model.DeliverySettings) Quote {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}

	discount := Discount(coupon, subtotal)
	net := decimal.Max(decimal.Zero, subtotal.Sub(discount))
	fee := DeliveryFee(settings, net)
	shortfall := Shortfall(settings, subtotal)

	q := Quote{
		Subtotal:         subtotal,
		Discount:         discount,
		NetSubtotal:      net,
		DeliveryFee:      fee,
		Total:            decimal.Max(decimal.Zero, net.Add(fee)),
		FreeDelivery:     settings.Enabled && fee.IsZero(),
		MinOrderSubtotal: settings.MinOrderSubtotal,
		Shortfall:        shortfall,
		MeetsMinimum:     shortfall.IsZero(),
	}
	if coupon != nil {
		q.CouponCode = coupon.Code
	}
	return q
}

// Discount returns the amount a coupon takes off subtotal.
//
// Percentage coupons give floor(min(value% of subtotal, maxDiscount)); only
// a missing maxDiscount means no cap, so an explicit 0 gives nothing. Amount coupons give
// min(value, subtotal). The result is never negative.
func Discount(coupon *model.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || !subtotal.IsPositive() || !coupon.DiscountValue.IsPositive() {
		return decimal.Zero
	}

	switch coupon.DiscountType {
	case model.DiscountPercentage:
		d := coupon.DiscountValue.Mul(subtotal).Div(hundred)
		if coupon.MaxDiscount != nil {
			d = decimal.Min(d, *coupon.MaxDiscount)
		}
		return decimal.Max(decimal.Zero, d.Floor())

	case model.DiscountAmount:
		return decimal.Min(coupon.DiscountValue, subtotal)

	default:
		return decimal.Zero
	}
}

// DeliveryFee is zero when delivery is disabled or when a positive free
// delivery threshold is reached by the net subtotal, and the flat fee
// otherwise.
func DeliveryFee(settings model.DeliverySettings, netSubtotal decimal.Decimal) decimal.Decimal {
	if !settings.Enabled {
		return decimal.Zero
	}
	if settings.FreeDeliveryThreshold.IsPositive() && netSubtotal.GreaterThanOrEqual(settings.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, settings.DeliveryFee)
}

// Shortfall returns how much subtotal is below the minimum order, or zero.
func Shortfall(settings model.DeliverySettings, subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, settings.MinOrderSubtotal.Sub(subtotal))
}
