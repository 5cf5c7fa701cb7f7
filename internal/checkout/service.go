// Package checkout prices and submits orders. Submission suspends stock
// reconciliation until it finishes, sends a fresh idempotency key with
// every attempt, and records the order locally when the server cannot be
// reached at all.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"freshcart/internal/apiclient"
	"freshcart/internal/model"
	"freshcart/internal/pricing"
	"freshcart/internal/reconcile"
	"freshcart/internal/session"
	"freshcart/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// API is the part of the remote API checkout uses.
type API interface {
	SettingsSource
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	CreateOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
}

// Cart is the part of the cart store checkout reads and clears.
type Cart interface {
	Items() []model.CartItem
	TotalPrice() decimal.Decimal
	Mode() session.Mode
	Clear(ctx context.Context) error
}

// StockCheck suspends reconciliation for the duration of a submission and
// checks the cart against stock while it is suspended.
type StockCheck interface {
	Hold() (release func())
	Verify(ctx context.Context, stock map[string]int) (reconcile.Result, error)
}

// StockSource provides the live stock map.
type StockSource interface {
	Snapshot() map[string]int
}

// Request is the customer's checkout form.
type Request struct {
	Address     string            `json:"address"`
	City        string            `json:"city,omitempty"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	PaymentMode model.PaymentMode `json:"paymentMode"`
	CouponCode  string            `json:"couponCode,omitempty"`
}

// Outcome is the result of a successful submission. Local is set when the
// order was only recorded on this device.
type Outcome struct {
	Order           *model.Order  `json:"order"`
	Quote           pricing.Quote `json:"quote"`
	ItemsOutOfStock []string      `json:"itemsOutOfStock,omitempty"`
	Local           bool          `json:"local"`
}

// Service implements checkout.
type Service struct {
	api      API
	cart     Cart
	check    StockCheck
	stock    StockSource
	settings *SettingsCache
	store    storage.Store

	submitting atomic.Bool
	now        func() time.Time
	newKey     func() string

	logger zerolog.Logger
}

// NewService creates a checkout service.
func NewService(
	api API,
	cart Cart,
	check StockCheck,
	stock StockSource,
	settings *SettingsCache,
	store storage.Store,
	logger zerolog.Logger,
) *Service {
	return &Service{
		api:      api,
		cart:     cart,
		check:    check,
		stock:    stock,
		settings: settings,
		store:    store,
		now:      time.Now,
		newKey:   uuid.NewString,
		logger:   logger.With().Str("service", "checkout").Logger(),
	}
}

// Coupons returns the server's coupons ranked for the current subtotal.
func (s *Service) Coupons(ctx context.Context) ([]pricing.RankedCoupon, error) {
	coupons, err := s.api.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch coupons: %w", err)
	}
	return pricing.RankCoupons(coupons, s.cart.TotalPrice(), s.now()), nil
}

// Quote prices the current cart with an optional coupon code.
func (s *Service) Quote(ctx context.Context, couponCode string) (pricing.Quote, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return pricing.Quote{}, err
	}

	subtotal := s.cart.TotalPrice()

	coupon, err := s.resolveCoupon(ctx, couponCode, subtotal)
	if err != nil {
		return pricing.Quote{}, err
	}

	return pricing.Calculate(subtotal, coupon, settings), nil
}

// resolveCoupon looks a code up and checks it is eligible for subtotal. An
// empty code resolves to no coupon.
func (s *Service) resolveCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*model.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	coupons, err := s.api.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch coupons: %w", err)
	}

	coupon, ok := model.FindCoupon(coupons, code)
	if !ok {
		return nil, model.ErrCouponNotFound
	}

	if status := pricing.Evaluate(coupon, subtotal, s.now()); status != pricing.StatusEligible {
		s.logger.Debug().Str("coupon_code", code).Str("status", string(status)).Msg("coupon not eligible")
		return nil, model.ErrCouponIneligible
	}
	return &coupon, nil
}

// Submit places an order for the current cart.
//
// The submission is blocked, without contacting the order endpoint, when
// the cart is empty, the minimum order is not met, the coupon is not
// eligible, or live stock disagrees with the cart. Reconciliation is
// suspended before the cart is read and stays suspended until Submit
// returns, so the order carries the quantities that were priced.
func (s *Service) Submit(ctx context.Context, req Request) (*Outcome, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer s.submitting.Store(false)

	release := s.check.Hold()
	defer release()

	// Validate request
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, model.ErrEmptyCart
	}
	if strings.TrimSpace(req.Address) == "" {
		return nil, model.NewDomainError(model.ErrCodeMissingField, "Delivery address is required")
	}
	switch req.PaymentMode {
	case "":
		req.PaymentMode = model.PaymentCashOnDelivery
	case model.PaymentCashOnDelivery, model.PaymentOnline:
	default:
		return nil, model.NewDomainError(model.ErrCodeMissingField, "Unknown payment mode")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !deliversTo(settings, req.City) {
		return nil, model.ErrDeliveryDisabled
	}

	// Price the order
	subtotal := s.cart.TotalPrice()
	coupon, err := s.resolveCoupon(ctx, req.CouponCode, subtotal)
	if err != nil {
		return nil, err
	}

	quote := pricing.Calculate(subtotal, coupon, settings)
	if !quote.MeetsMinimum {
		s.logger.Info().Str("shortfall", quote.Shortfall.String()).Msg("minimum order not met")
		return nil, &MinOrderError{Minimum: settings.MinOrderSubtotal, Shortfall: quote.Shortfall}
	}

	// Check the cart against live stock without changing it
	result, err := s.check.Verify(ctx, s.stock.Snapshot())
	if err != nil {
		s.logger.Warn().Err(err).Msg("stock check reported errors")
	}
	if len(result.Findings) > 0 {
		return nil, &StockConflictError{Findings: result.Findings, AllOutOfStock: result.AllOutOfStock()}
	}

	orderReq := &model.OrderRequest{
		Items:          orderItems(items),
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PaymentMode:    req.PaymentMode,
		IdempotencyKey: s.newKey(),
	}
	if coupon != nil {
		code := coupon.Code
		orderReq.CouponCode = &code
	}

	resp, err := s.api.CreateOrder(ctx, orderReq)
	if err != nil {
		if errors.Is(err, apiclient.ErrNetwork) {
			return s.recordLocally(ctx, orderReq, items, quote, err)
		}
		return nil, s.mapOrderError(err, settings)
	}

	s.logger.Info().
		Str("idempotency_key", orderReq.IdempotencyKey).
		Int("items_out_of_stock", len(resp.ItemsOutOfStock)).
		Msg("order placed")

	s.clearCart(ctx)

	return &Outcome{
		Order:           resp.Order,
		Quote:           quote,
		ItemsOutOfStock: resp.ItemsOutOfStock,
	}, nil
}

// mapOrderError turns a structured server error into a checkout error.
func (s *Service) mapOrderError(err error, settings model.DeliverySettings) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("failed to place order: %w", err)
	}

	s.logger.Warn().
		Int("status", apiErr.StatusCode).
		Str("reason", apiErr.Reason).
		Str("message", apiErr.Message).
		Msg("order rejected by server")

	switch {
	case apiErr.Reason == apiclient.ReasonMinOrderNotMet:
		shortfall := decimal.Zero
		if apiErr.Shortfall != nil {
			shortfall = *apiErr.Shortfall
		}
		return &MinOrderError{Minimum: settings.MinOrderSubtotal, Shortfall: shortfall}

	case apiErr.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized

	case apiErr.StatusCode == http.StatusConflict || apiErr.Reason == apiclient.ReasonAllOutOfStock:
		return fmt.Errorf("%w: %s", ErrAllOutOfStock, strings.Join(apiErr.ItemsOutOfStock, ", "))

	default:
		return fmt.Errorf("failed to place order: %w", err)
	}
}

// recordLocally keeps an order the server never answered for, then clears
// the cart. The cart is kept when the order cannot be stored.
func (s *Service) recordLocally(
	ctx context.Context,
	req *model.OrderRequest,
	items []model.CartItem,
	quote pricing.Quote,
	cause error,
) (*Outcome, error) {
	order := &model.Order{
		ID:             uuid.NewString(),
		Status:         model.OrderStatusLocalPending,
		Items:          items,
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PaymentMode:    req.PaymentMode,
		CouponCode:     req.CouponCode,
		Subtotal:       quote.Subtotal,
		Discount:       quote.Discount,
		DeliveryFee:    quote.DeliveryFee,
		Total:          quote.Total,
		IdempotencyKey: req.IdempotencyKey,
		Local:          true,
		CreatedAt:      s.now().UTC(),
	}

	orders, err := s.localOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record order locally: %w", errors.Join(cause, err))
	}
	orders = append(orders, *order)

	if err := storage.PutJSON(ctx, s.store, storage.KeyLocalOrders, orders); err != nil {
		return nil, fmt.Errorf("failed to record order locally: %w", errors.Join(cause, err))
	}

	s.logger.Warn().
		Err(cause).
		Str("order_id", order.ID).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("server unreachable, order recorded locally")

	s.clearCart(ctx)

	return &Outcome{Order: order, Quote: quote, Local: true}, nil
}

func (s *Service) clearCart(ctx context.Context) {
	if err := s.cart.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear cart after order")
	}
}

func (s *Service) localOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	_, err := storage.GetJSON(ctx, s.store, storage.KeyLocalOrders, &orders)
	if errors.Is(err, storage.ErrCorrupt) {
		s.logger.Warn().Err(err).Msg("discarding corrupt local orders")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// History returns server orders for authenticated sessions together with
// locally recorded orders, newest first. An unreachable server still
// yields the local orders.
func (s *Service) History(ctx context.Context) ([]model.Order, error) {
	orders, err := s.localOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read local orders: %w", err)
	}

	if s.cart.Mode() == session.Authenticated {
		remote, err := s.api.ListOrders(ctx)
		switch {
		case err == nil:
			orders = append(orders, remote...)
		case errors.Is(err, apiclient.ErrNetwork):
			s.logger.Warn().Err(err).Msg("order history unavailable, showing local orders")
		case apiclient.StatusCode(err) == http.StatusUnauthorized:
			return nil, ErrUnauthorized
		default:
			return nil, fmt.Errorf("failed to fetch orders: %w", err)
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func orderItems(items []model.CartItem) []model.OrderItemRequest {
	out := make([]model.OrderItemRequest, len(items))
	for i, item := range items {
		out[i] = model.OrderItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}

// deliversTo reports whether city is served. An empty city list or an
// empty city is not restricted.
func deliversTo(settings model.DeliverySettings, city string) bool {
	city = strings.TrimSpace(city)
	if city == "" || len(settings.Cities) == 0 {
		return true
	}
	for _, c := range settings.Cities {
		if strings.EqualFold(strings.TrimSpace(c), city) {
			return true
		}
	}
	return false
}
