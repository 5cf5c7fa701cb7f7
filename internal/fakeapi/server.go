// Package fakeapi is an in-process stand-in for the remote storefront API
// and its stock event stream. Tests run it behind httptest.Server.
package fakeapi

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"freshcart/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockRecord is the payload of stock events.
type StockRecord struct {
	ProductID string    `json:"productId"`
	Stock     int       `json:"stock"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type account struct {
	password string
	profile  model.Profile
}

type failure struct {
	status int
	body   gin.H
}

type streamMessage struct {
	event string
	data  any
}

type subscriber struct {
	ids  map[string]bool
	out  chan streamMessage
	done chan struct{}
}

// Server is a fake storefront API.
type Server struct {
	mu             sync.Mutex
	products       map[string]model.Product
	productOrder   []string
	carts          map[string][]model.CartItem
	accounts       map[string]*account
	tokens         map[string]string
	orders         map[string][]model.Order
	ordersByKey    map[string]*model.OrderResponse
	orderRequests  []model.OrderRequest
	coupons        []model.Coupon
	settings       model.DeliverySettings
	orderFailures  []failure
	streamFailures int
	streamConnects int
	streamQueries  []string
	subscribers    map[*subscriber]struct{}
	secret         []byte
	engine         *gin.Engine
}

// New creates an empty fake API with delivery disabled.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		products:    make(map[string]model.Product),
		carts:       make(map[string][]model.CartItem),
		accounts:    make(map[string]*account),
		tokens:      make(map[string]string),
		orders:      make(map[string][]model.Order),
		ordersByKey: make(map[string]*model.OrderResponse),
		subscribers: make(map[*subscriber]struct{}),
		secret:      []byte("fakeapi-secret"),
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/products", s.listProducts)
	r.GET("/products/:id", s.getProduct)
	r.GET("/categories", s.listCategories)
	r.GET("/coupons", s.listCoupons)
	r.GET("/delivery-settings", s.deliverySettings)

	r.GET("/cart", s.getCart)
	r.POST("/cart", s.addCartItem)
	r.PUT("/cart/:id", s.updateCartItem)
	r.DELETE("/cart/:id", s.removeCartItem)

	r.GET("/orders", s.listOrders)
	r.POST("/orders", s.createOrder)

	r.POST("/auth/login", s.login)
	r.POST("/auth/signup", s.signup)
	r.GET("/auth/profile", s.profile)
	r.POST("/auth/reset", s.resetPassword)

	r.GET("/geocode/search", s.searchAddress)
	r.GET("/geocode/reverse", s.reverseGeocode)

	r.GET("/stock/stream", s.stockStream)

	s.engine = r
	return s
}

// Handler returns the HTTP handler of the fake API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// AddProduct adds or replaces a catalogue product.
func (s *Server) AddProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		s.productOrder = append(s.productOrder, p.ID)
	}
	s.products[p.ID] = p
}

// SetStock changes a product's stock and pushes a stock:update event to
// every stream watching it.
func (s *Server) SetStock(productID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStockLocked(productID, stock)
}

func (s *Server) setStockLocked(productID string, stock int) {
	p, ok := s.products[productID]
	if !ok {
		return
	}
	p.Stock = stock
	s.products[productID] = p

	s.broadcastLocked(productID, streamMessage{
		event: "stock:update",
		data:  StockRecord{ProductID: productID, Stock: stock, UpdatedAt: time.Now().UTC()},
	})
}

// PushRaw sends an arbitrary event to every stream watching productID.
func (s *Server) PushRaw(productID, event, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(productID, streamMessage{event: event, data: data})
}

func (s *Server) broadcastLocked(productID string, msg streamMessage) {
	for sub := range s.subscribers {
		if !sub.ids[productID] {
			continue
		}
		select {
		case sub.out <- msg:
		default:
		}
	}
}

// SetCoupons replaces the advertised coupons.
func (s *Server) SetCoupons(coupons []model.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons = append([]model.Coupon(nil), coupons...)
}

// SetDeliverySettings replaces the delivery rules.
func (s *Server) SetDeliverySettings(settings model.DeliverySettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// RegisterUser creates an account that can log in.
func (s *Server) RegisterUser(email, password, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(email)] = &account{
		password: password,
		profile:  model.Profile{ID: uuid.NewString(), Name: name, Email: email},
	}
}

// DeleteUser removes an account while leaving its tokens in place.
func (s *Server) DeleteUser(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, strings.ToLower(email))
}

// FailNextOrder makes the next order submission answer with status and body.
func (s *Server) FailNextOrder(status int, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderFailures = append(s.orderFailures, failure{status: status, body: body})
}

// FailStockStream makes the next n stream connections answer 503.
func (s *Server) FailStockStream(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamFailures = n
}

// CloseStreams ends every open stock stream.
func (s *Server) CloseStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		close(sub.done)
		delete(s.subscribers, sub)
	}
}

// StreamConnects returns how many stream connections were attempted.
func (s *Server) StreamConnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamConnects
}

// StreamQueries returns the ids query of every stream connection attempt.
func (s *Server) StreamQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.streamQueries...)
}

// OpenStreams returns the number of currently connected streams.
func (s *Server) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// OrderRequests returns every order submission received.
func (s *Server) OrderRequests() []model.OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderRequest(nil), s.orderRequests...)
}

// Cart returns the server-side cart of an account.
func (s *Server) Cart(email string) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CartItem(nil), s.carts[strings.ToLower(email)]...)
}

func (s *Server) issueTokenLocked(email string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   email,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"jti":   uuid.NewString(),
	})
	signed, _ := token.SignedString(s.secret)
	s.tokens[signed] = strings.ToLower(email)
	return signed
}

// accountFor resolves the bearer token of the request to an account email.
func (s *Server) accountFor(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	return email, ok
}

func (s *Server) requireAccount(c *gin.Context) (string, bool) {
	email, ok := s.accountFor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return email, true
}

func parseIDs(raw string) map[string]bool {
	ids := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = true
		}
	}
	return ids
}

func (s *Server) snapshotLocked(ids map[string]bool) []StockRecord {
	records := make([]StockRecord, 0, len(ids))
	for id := range ids {
		if p, ok := s.products[id]; ok {
			records = append(records, StockRecord{ProductID: id, Stock: p.Stock, UpdatedAt: time.Now().UTC()})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ProductID < records[j].ProductID })
	return records
}

func (s *Server) subtotalLocked(items []model.OrderItemRequest) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if p, ok := s.products[item.ProductID]; ok {
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return total
}
