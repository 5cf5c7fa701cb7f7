package handler

import (
	"context"
	"net/http"

	"freshcart/internal/model"

	"github.com/rs/zerolog"
)

// CartStore is the part of the cart store the cart handler uses.
type CartStore interface {
	Summary() model.CartSummary
	Add(ctx context.Context, product model.Product, quantity int) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	Remove(ctx context.Context, productID string) error
}

// Catalog looks up the product being added.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}

// CartItemRequest is the body of cart mutations.
type CartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartHandler handles cart requests of the local surface.
type CartHandler struct {
	cart    CartStore
	catalog Catalog
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(cart CartStore, catalog Catalog, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		catalog: catalog,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, h.cart.Summary())
}

// AddItem handles POST /api/cart/items requests. The product is fetched
// so the cart line carries its current name and price.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	var req CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "productId is required", h.logger)
		return
	}
	if req.Quantity < 1 {
		writeServiceError(w, model.ErrInvalidQuantity, h.logger)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := h.cart.Add(r.Context(), *product, req.Quantity); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, h.cart.Summary())
}

// Item handles PUT and DELETE /api/cart/items/{productId} requests. A PUT
// with a quantity of zero or less removes the line.
func (h *CartHandler) Item(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "product ID is required", h.logger)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req CartItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
			return
		}
		if err := h.cart.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
			writeServiceError(w, err, h.logger)
			return
		}

	case http.MethodDelete:
		if err := h.cart.Remove(r.Context(), productID); err != nil {
			writeServiceError(w, err, h.logger)
			return
		}

	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, h.cart.Summary())
}
