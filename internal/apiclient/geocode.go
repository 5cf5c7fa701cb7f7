package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"freshcart/internal/model"
)

// SearchAddress geocodes a free-form address query.
func (c *Client) SearchAddress(ctx context.Context, query string) ([]model.Place, error) {
	var places []model.Place
	if err := c.do(ctx, http.MethodGet, "/geocode/search?q="+url.QueryEscape(query), nil, &places); err != nil {
		return nil, err
	}
	return places, nil
}

// ReverseGeocode resolves coordinates to an address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*model.Place, error) {
	path := fmt.Sprintf("/geocode/reverse?lat=%s&lon=%s",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
	)

	var place model.Place
	if err := c.do(ctx, http.MethodGet, path, nil, &place); err != nil {
		return nil, err
	}
	return &place, nil
}
