// Package apiclient is a typed client of the remote storefront REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNetwork matches every failure where no HTTP response was received.
var ErrNetwork = errors.New("network error")

// NetworkError wraps a transport failure. errors.Is(err, ErrNetwork) holds
// for every NetworkError.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// Reasons reported by the server in structured errors.
const (
	ReasonMinOrderNotMet = "MIN_ORDER_NOT_MET"
	ReasonAllOutOfStock  = "ALL_OUT_OF_STOCK"
)

// APIError is a structured error returned by the server with a non-2xx status.
type APIError struct {
	StatusCode      int
	Reason          string
	Message         string
	Shortfall       *decimal.Decimal
	ItemsOutOfStock []string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Error           string           `json:"error"`
	Message         string           `json:"message"`
	Reason          string           `json:"reason"`
	Shortfall       *decimal.Decimal `json:"shortfall"`
	ItemsOutOfStock []string         `json:"itemsOutOfStock"`
}

// TokenSource supplies the bearer token of the current session. An empty
// token sends the request anonymously.
type TokenSource interface {
	Token() string
}

// Client talks to the remote storefront API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     zerolog.Logger
}

// New creates an API client. tokens may be nil for anonymous use.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger.With().Str("component", "api-client").Logger(),
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("request failed without response")
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response of %s: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body errorBody
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		apiErr.Reason = body.Reason
		apiErr.Shortfall = body.Shortfall
		apiErr.ItemsOutOfStock = body.ItemsOutOfStock
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
