package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"freshcart/internal/checkout"
	"freshcart/internal/model"
	"freshcart/internal/pricing"

	"github.com/rs/zerolog"
)

// CheckoutService prices the cart and lists past orders.
type CheckoutService interface {
	Coupons(ctx context.Context) ([]pricing.RankedCoupon, error)
	Quote(ctx context.Context, couponCode string) (pricing.Quote, error)
	History(ctx context.Context) ([]model.Order, error)
}

// OrderSubmitter places orders.
type OrderSubmitter interface {
	Submit(ctx context.Context, req checkout.Request) (*checkout.Outcome, error)
}

// QuoteRequest is the body of POST /api/checkout/quote.
type QuoteRequest struct {
	CouponCode string `json:"couponCode"`
}

// CheckoutHandler handles coupon, quote and order requests.
type CheckoutHandler struct {
	service   CheckoutService
	submitter OrderSubmitter
	logger    zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service CheckoutService, submitter OrderSubmitter, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:   service,
		submitter: submitter,
		logger:    logger.With().Str("handler", "checkout").Logger(),
	}
}

// Coupons handles GET /api/coupons requests.
func (h *CheckoutHandler) Coupons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	coupons, err := h.service.Coupons(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, coupons)
}

// Quote handles POST /api/checkout/quote requests. An empty body prices
// the cart without a coupon.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	var req QuoteRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	quote, err := h.service.Quote(r.Context(), req.CouponCode)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Submit handles POST /api/checkout/orders requests. An order recorded only
// on this device is answered with 202.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	outcome, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if outcome.Local {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

// Orders handles GET /api/orders requests.
func (h *CheckoutHandler) Orders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	orders, err := h.service.History(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}
