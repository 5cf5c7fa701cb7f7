package apiclient

import (
	"context"
	"net/http"

	"freshcart/internal/model"
)

// ListOrders returns the authenticated user's order history.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder submits an order. The request's idempotency key makes a retry
// of the same submission safe.
func (c *Client) CreateOrder(ctx context.Context, req *model.OrderRequest) (*model.OrderResponse, error) {
	var resp model.OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
