package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"freshcart/internal/checkout"
	"freshcart/internal/model"
	"freshcart/internal/pricing"
	"freshcart/internal/reconcile"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Coupons(ctx context.Context) ([]pricing.RankedCoupon, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pricing.RankedCoupon), args.Error(1)
}

func (m *MockCheckoutService) Quote(ctx context.Context, couponCode string) (pricing.Quote, error) {
	args := m.Called(ctx, couponCode)
	return args.Get(0).(pricing.Quote), args.Error(1)
}

func (m *MockCheckoutService) History(ctx context.Context) ([]model.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockSubmitter is a mock implementation of OrderSubmitter.
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, req checkout.Request) (*checkout.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Outcome), args.Error(1)
}

func TestCheckoutHandler_Submit(t *testing.T) {
	order := &model.Order{ID: "o-1", Status: "placed", Total: decimal.NewFromInt(180)}

	tests := []struct {
		name           string
		method         string
		body           string
		mockReturn     *checkout.Outcome
		mockError      error
		expectedStatus int
		expectedCode   string
		expectSubmit   bool
	}{
		{
			name:           "Success",
			method:         http.MethodPost,
			body:           `{"address":"Market Street 1","paymentMode":"cod"}`,
			mockReturn:     &checkout.Outcome{Order: order},
			expectedStatus: http.StatusCreated,
			expectSubmit:   true,
		},
		{
			name:           "Recorded locally",
			method:         http.MethodPost,
			body:           `{"address":"Market Street 1"}`,
			mockReturn:     &checkout.Outcome{Order: order, Local: true},
			expectedStatus: http.StatusAccepted,
			expectSubmit:   true,
		},
		{
			name:           "Minimum order not met",
			method:         http.MethodPost,
			body:           `{"address":"Market Street 1"}`,
			mockError:      &checkout.MinOrderError{Minimum: decimal.NewFromInt(200), Shortfall: decimal.NewFromInt(20)},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   model.ErrCodeMinOrderNotMet,
			expectSubmit:   true,
		},
		{
			name:   "Stock changed",
			method: http.MethodPost,
			body:   `{"address":"Market Street 1"}`,
			mockError: &checkout.StockConflictError{Findings: []reconcile.Finding{
				{ProductID: "p1", Name: "Tomatoes", Kind: reconcile.KindClamped, Requested: 3, Available: 1},
			}},
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeStockConflict,
			expectSubmit:   true,
		},
		{
			name:           "Missing address",
			method:         http.MethodPost,
			body:           `{}`,
			mockError:      model.NewDomainError(model.ErrCodeMissingField, "Delivery address is required"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeMissingField,
			expectSubmit:   true,
		},
		{
			name:           "Invalid JSON",
			method:         http.MethodPost,
			body:           `{"address":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Method not allowed",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := new(MockSubmitter)
			h := NewCheckoutHandler(new(MockCheckoutService), submitter, zerolog.Nop())

			if tt.expectSubmit {
				submitter.On("Submit", mock.Anything, mock.AnythingOfType("checkout.Request")).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(tt.method, "/api/checkout/orders", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Submit(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var resp ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, tt.expectedCode, resp.Code)
			}

			if tt.expectSubmit {
				submitter.AssertExpectations(t)
			} else {
				submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCheckoutHandler_SubmitPassesForm(t *testing.T) {
	submitter := new(MockSubmitter)
	h := NewCheckoutHandler(new(MockCheckoutService), submitter, zerolog.Nop())

	expected := checkout.Request{
		Address:     "Market Street 1",
		City:        "Bengaluru",
		Latitude:    12.97,
		Longitude:   77.59,
		PaymentMode: model.PaymentOnline,
		CouponCode:  "SAVE10",
	}
	submitter.On("Submit", mock.Anything, expected).Return(&checkout.Outcome{Order: &model.Order{ID: "o-1"}}, nil)

	body, err := json.Marshal(expected)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Submit(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	submitter.AssertExpectations(t)
}

func TestCheckoutHandler_Quote(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode string
	}{
		{name: "Without coupon", body: ``, expectedCode: ""},
		{name: "Empty object", body: `{}`, expectedCode: ""},
		{name: "With coupon", body: `{"couponCode":"SAVE10"}`, expectedCode: "SAVE10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockCheckoutService)
			h := NewCheckoutHandler(service, new(MockSubmitter), zerolog.Nop())

			quote := pricing.Quote{Subtotal: decimal.NewFromInt(150), Total: decimal.NewFromInt(180), CouponCode: tt.expectedCode}
			service.On("Quote", mock.Anything, tt.expectedCode).Return(quote, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/checkout/quote", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Quote(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var resp pricing.Quote
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.True(t, resp.Total.Equal(decimal.NewFromInt(180)))
			service.AssertExpectations(t)
		})
	}
}

func TestCheckoutHandler_QuoteUnknownCoupon(t *testing.T) {
	service := new(MockCheckoutService)
	h := NewCheckoutHandler(service, new(MockSubmitter), zerolog.Nop())
	service.On("Quote", mock.Anything, "NOPE").Return(pricing.Quote{}, model.ErrCouponNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/quote", bytes.NewBufferString(`{"couponCode":"NOPE"}`))
	w := httptest.NewRecorder()
	h.Quote(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), model.ErrCodeCouponNotFound)
}

func TestCheckoutHandler_CouponsAndOrders(t *testing.T) {
	service := new(MockCheckoutService)
	h := NewCheckoutHandler(service, new(MockSubmitter), zerolog.Nop())

	service.On("Coupons", mock.Anything).Return([]pricing.RankedCoupon{
		{Coupon: model.Coupon{Code: "SAVE10"}, Status: pricing.StatusEligible, Best: true},
	}, nil)
	service.On("History", mock.Anything).Return([]model.Order{{ID: "o-2"}, {ID: "o-1"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/coupons", nil)
	w := httptest.NewRecorder()
	h.Coupons(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var coupons []pricing.RankedCoupon
	require.NoError(t, json.NewDecoder(w.Body).Decode(&coupons))
	require.Len(t, coupons, 1)
	assert.True(t, coupons[0].Best)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	w = httptest.NewRecorder()
	h.Orders(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []model.Order
	require.NoError(t, json.NewDecoder(w.Body).Decode(&orders))
	require.Len(t, orders, 2)
	assert.Equal(t, "o-2", orders[0].ID)

	service.AssertExpectations(t)
}
