package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMode is how the customer pays for an order.
type PaymentMode string

const (
	PaymentCashOnDelivery PaymentMode = "cod"
	PaymentOnline         PaymentMode = "online"
)

// OrderItemRequest is a single line of an order creation request.
type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the payload sent to the remote API to create an order.
type OrderRequest struct {
	Items          []OrderItemRequest `json:"items"`
	Address        string             `json:"address"`
	Latitude       float64            `json:"latitude"`
	Longitude      float64            `json:"longitude"`
	PaymentMode    PaymentMode        `json:"paymentMode"`
	IdempotencyKey string             `json:"idempotencyKey"`
	CouponCode     *string            `json:"couponCode,omitempty"`
}

// Order is a placed order, either returned by the server or recorded
// locally when submission could not reach it.
type Order struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Items          []CartItem      `json:"items"`
	Address        string          `json:"address"`
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	PaymentMode    PaymentMode     `json:"paymentMode"`
	CouponCode     *string         `json:"couponCode,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	DeliveryFee    decimal.Decimal `json:"deliveryFee"`
	Total          decimal.Decimal `json:"total"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Local          bool            `json:"local,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// OrderResponse is the remote API's reply to order creation. ItemsOutOfStock
// lists products the server could not fulfil when the order was only
// partially accepted.
type OrderResponse struct {
	Order           *Order   `json:"order,omitempty"`
	ItemsOutOfStock []string `json:"itemsOutOfStock,omitempty"`
}

// OrderStatusLocalPending marks an order recorded on the client only.
const OrderStatusLocalPending = "local_pending"
