package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"freshcart/internal/model"
)

// ListProducts returns the catalogue, optionally filtered by category slug.
func (c *Client) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	path := "/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}

	var products []model.Product
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns a single product. A 404 maps to model.ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, model.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListCategories returns the product categories.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListCoupons returns every coupon the server advertises.
func (c *Client) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	var coupons []model.Coupon
	if err := c.do(ctx, http.MethodGet, "/coupons", nil, &coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}

// GetDeliverySettings returns the store's delivery rules.
func (c *Client) GetDeliverySettings(ctx context.Context) (*model.DeliverySettings, error) {
	var settings model.DeliverySettings
	if err := c.do(ctx, http.MethodGet, "/delivery-settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}
