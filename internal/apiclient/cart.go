package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"freshcart/internal/model"
)

type cartResponse struct {
	Items []model.CartItem `json:"items"`
}

type cartItemRequest struct {
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// GetCart returns the authenticated user's cart lines.
func (c *Client) GetCart(ctx context.Context) ([]model.CartItem, error) {
	var resp cartResponse
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// AddCartItem asks the server to add quantity units of a product.
func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart", cartItemRequest{ProductID: productID, Quantity: quantity}, nil)
}

// UpdateCartItem sets the absolute quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	return c.do(ctx, http.MethodPut, "/cart/"+url.PathEscape(productID), cartItemRequest{Quantity: quantity}, nil)
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(productID), nil, nil)
}
