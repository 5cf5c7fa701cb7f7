package apiclient

import (
	"context"
	"net/http"

	"freshcart/internal/model"
)

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	creds := model.Credentials{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup creates an account and returns its session token.
func (c *Client) Signup(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile returns the account of the current token.
func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	var profile model.Profile
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// RequestPasswordReset asks the server to send a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset", map[string]string{"email": email}, nil)
}
