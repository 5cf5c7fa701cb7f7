package router

import (
	"net/http"

	"freshcart/internal/handler"
	"freshcart/internal/middleware"

	"github.com/rs/zerolog"
)

// Handlers groups the handlers of the local surface.
type Handlers struct {
	Cart       *handler.CartHandler
	Checkout   *handler.CheckoutHandler
	Session    *handler.SessionHandler
	Storefront *handler.StorefrontHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, apiKey, allowedOrigin string, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	// Cart
	mux.HandleFunc("/api/cart", h.Cart.Get)
	mux.HandleFunc("/api/cart/items", h.Cart.AddItem)
	mux.HandleFunc("/api/cart/items/{productId}", h.Cart.Item)

	// Checkout
	mux.HandleFunc("/api/coupons", h.Checkout.Coupons)
	mux.HandleFunc("/api/checkout/quote", h.Checkout.Quote)
	mux.HandleFunc("/api/checkout/orders", h.Checkout.Submit)
	mux.HandleFunc("/api/orders", h.Checkout.Orders)

	// Session
	mux.HandleFunc("/api/session", h.Session.Session)
	mux.HandleFunc("/api/session/signup", h.Session.Signup)

	// Stock, presence and notifications
	mux.HandleFunc("/api/stock", h.Storefront.Stock)
	mux.HandleFunc("/api/visibility", h.Storefront.Visibility)
	mux.HandleFunc("/api/view", h.Storefront.View)
	mux.HandleFunc("/api/notifications", h.Storefront.Notifications)
	mux.HandleFunc("/api/location", h.Storefront.Location)

	// Apply middleware in order: Recovery -> Logging -> CORS -> APIKeyAuth
	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(apiKey, logger)(handler)
	handler = middleware.CORS(allowedOrigin)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
