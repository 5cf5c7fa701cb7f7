package handler

import (
	"context"
	"net/http"

	"freshcart/internal/geo"
	"freshcart/internal/model"
	"freshcart/internal/notify"
	"freshcart/internal/stock"

	"github.com/rs/zerolog"
)

// StockView exposes the live stock subscription.
type StockView interface {
	State() stock.State
	Watched() []string
	Snapshot() map[string]int
}

// Presence reports what the customer is looking at.
type Presence interface {
	SetVisible(visible bool)
	ViewProduct(productID string)
	SetCheckoutView(active bool)
}

// Inbox holds pending notifications.
type Inbox interface {
	Drain() []notify.Toast
}

// Locator resolves the customer's position.
type Locator interface {
	Resolve(ctx context.Context) (*geo.Location, error)
}

// StockResponse is the body of GET /api/stock.
type StockResponse struct {
	State   string         `json:"state"`
	Watched []string       `json:"watched"`
	Stock   map[string]int `json:"stock"`
}

// VisibilityRequest is the body of POST /api/visibility.
type VisibilityRequest struct {
	Visible *bool `json:"visible"`
}

// ViewRequest is the body of POST /api/view. An empty product ID stops
// watching the last viewed product.
type ViewRequest struct {
	ProductID string `json:"productId"`
	Checkout  bool   `json:"checkout"`
}

// StorefrontHandler handles stock, presence, notification and location
// requests.
type StorefrontHandler struct {
	stock    StockView
	presence Presence
	inbox    Inbox
	locator  Locator
	logger   zerolog.Logger
}

// NewStorefrontHandler creates a new storefront handler.
func NewStorefrontHandler(stock StockView, presence Presence, inbox Inbox, locator Locator, logger zerolog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		stock:    stock,
		presence: presence,
		inbox:    inbox,
		locator:  locator,
		logger:   logger.With().Str("handler", "storefront").Logger(),
	}
}

// Stock handles GET /api/stock requests.
func (h *StorefrontHandler) Stock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	watched := h.stock.Watched()
	if watched == nil {
		watched = []string{}
	}
	writeJSON(w, http.StatusOK, StockResponse{
		State:   h.stock.State().String(),
		Watched: watched,
		Stock:   h.stock.Snapshot(),
	})
}

// Visibility handles POST /api/visibility requests.
func (h *StorefrontHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	var req VisibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.Visible == nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "visible is required", h.logger)
		return
	}

	h.presence.SetVisible(*req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

// View handles POST /api/view requests.
func (h *StorefrontHandler) View(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	var req ViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	h.presence.ViewProduct(req.ProductID)
	h.presence.SetCheckoutView(req.Checkout)
	w.WriteHeader(http.StatusNoContent)
}

// Notifications handles GET /api/notifications requests. Returned toasts
// are removed from the queue.
func (h *StorefrontHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, h.inbox.Drain())
}

// Location handles GET /api/location requests.
func (h *StorefrontHandler) Location(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	loc, err := h.locator.Resolve(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, model.ErrCodeLocationFailed, geo.Message(err), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, loc)
}
