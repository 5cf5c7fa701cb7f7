package pricing

import (
	"sort"
	"strings"
	"time"

	"freshcart/internal/model"

	"github.com/shopspring/decimal"
)

// Status is a coupon's eligibility for a given subtotal and time.
type Status string

const (
	StatusEligible     Status = "eligible"
	StatusInactive     Status = "inactive"
	StatusNotStarted   Status = "not_started"
	StatusExpired      Status = "expired"
	StatusBelowMinimum Status = "below_minimum"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseBound parses a coupon timestamp. ok is false for empty or malformed
// values, which callers treat as an open bound. A date without a time
// covers the whole day.
func parseBound(raw string, end bool) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if end && layout == "2006-01-02" {
			parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		}
		return parsed, true
	}
	return time.Time{}, false
}

// Evaluate derives a coupon's status. Malformed timestamps never make a
// coupon ineligible.
func Evaluate(c model.Coupon, subtotal decimal.Decimal, now time.Time) Status {
	if !c.Active() {
		return StatusInactive
	}
	if starts, ok := parseBound(c.StartsAt, false); ok && now.Before(starts) {
		return StatusNotStarted
	}
	if expires, ok := parseBound(c.ExpiresAt, true); ok && now.After(expires) {
		return StatusExpired
	}
	if c.MinOrderValue != nil && c.MinOrderValue.IsPositive() && subtotal.LessThan(*c.MinOrderValue) {
		return StatusBelowMinimum
	}
	return StatusEligible
}

// RankedCoupon is a coupon with its status and the savings it would give.
type RankedCoupon struct {
	Coupon    model.Coupon    `json:"coupon"`
	Status    Status          `json:"status"`
	Savings   decimal.Decimal `json:"savings"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Best      bool            `json:"best"`
}

// RankCoupons lists eligible coupons first, by descending savings, then
// the rest. Ties and ineligible coupons keep their original order. The
// first eligible coupon with positive savings is marked Best.
func RankCoupons(coupons []model.Coupon, subtotal decimal.Decimal, now time.Time) []RankedCoupon {
	ranked := make([]RankedCoupon, len(coupons))
	for i, c := range coupons {
		r := RankedCoupon{
			Coupon:    c,
			Status:    Evaluate(c, subtotal, now),
			Savings:   Discount(&coupons[i], subtotal),
			Shortfall: decimal.Zero,
		}
		if r.Status == StatusBelowMinimum {
			r.Shortfall = c.MinOrderValue.Sub(subtotal)
		}
		ranked[i] = r
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		ei := ranked[i].Status == StatusEligible
		ej := ranked[j].Status == StatusEligible
		if ei != ej {
			return ei
		}
		if !ei {
			return false
		}
		return ranked[i].Savings.GreaterThan(ranked[j].Savings)
	})

	if len(ranked) > 0 && ranked[0].Status == StatusEligible && ranked[0].Savings.IsPositive() {
		ranked[0].Best = true
	}
	return ranked
}
