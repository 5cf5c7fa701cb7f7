package fakeapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"freshcart/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Server) listProducts(c *gin.Context) {
	category := c.Query("category")

	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]model.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		p := s.products[id]
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		products = append(products, p)
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) getProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	categories := make([]model.Category, 0)
	for _, id := range s.productOrder {
		name := s.products[id].Category
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		categories = append(categories, model.Category{ID: slug, Name: name, Slug: slug})
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) listCoupons(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupons := s.coupons
	if coupons == nil {
		coupons = []model.Coupon{}
	}
	c.JSON(http.StatusOK, coupons)
}

func (s *Server) deliverySettings(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.settings)
}

type cartItemBody struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) getCart(c *gin.Context) {
	email, ok := s.requireAccount(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[email]
	if items == nil {
		items = []model.CartItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) addCartItem(c *gin.Context) {
	email, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var body cartItemBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart item"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[body.ProductID]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	items := s.carts[email]
	for i := range items {
		if items[i].ProductID == body.ProductID {
			items[i].Quantity += body.Quantity
			items[i].Product = p
			s.carts[email] = items
			c.JSON(http.StatusOK, gin.H{"items": items})
			return
		}
	}
	s.carts[email] = append(items, model.CartItem{ProductID: p.ID, Quantity: body.Quantity, Product: p})
	c.JSON(http.StatusCreated, gin.H{"items": s.carts[email]})
}

func (s *Server) updateCartItem(c *gin.Context) {
	email, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var body cartItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart item"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	items := s.carts[email]
	for i := range items {
		if items[i].ProductID != id {
			continue
		}
		if body.Quantity <= 0 {
			s.carts[email] = append(items[:i], items[i+1:]...)
		} else {
			items[i].Quantity = body.Quantity
		}
		c.JSON(http.StatusOK, gin.H{"items": s.carts[email]})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
}

func (s *Server) removeCartItem(c *gin.Context) {
	email, ok := s.requireAccount(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	items := s.carts[email]
	for i := range items {
		if items[i].ProductID == id {
			s.carts[email] = append(items[:i], items[i+1:]...)
			break
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listOrders(c *gin.Context) {
	email, ok := s.requireAccount(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders := append([]model.Order{}, s.orders[email]...)
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	c.JSON(http.StatusOK, orders)
}

func (s *Server) createOrder(c *gin.Context) {
	email, _ := s.accountFor(c)

	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orderRequests = append(s.orderRequests, req)

	if len(s.orderFailures) > 0 {
		f := s.orderFailures[0]
		s.orderFailures = s.orderFailures[1:]
		c.JSON(f.status, f.body)
		return
	}

	if resp, ok := s.ordersByKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	subtotal := s.subtotalLocked(req.Items)
	if s.settings.MinOrderSubtotal.IsPositive() && subtotal.LessThan(s.settings.MinOrderSubtotal) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "minimum order not met",
			"reason":    "MIN_ORDER_NOT_MET",
			"shortfall": s.settings.MinOrderSubtotal.Sub(subtotal),
		})
		return
	}

	var fulfilled []model.CartItem
	var outOfStock []string
	for _, item := range req.Items {
		p, ok := s.products[item.ProductID]
		if !ok || p.Stock < item.Quantity {
			outOfStock = append(outOfStock, item.ProductID)
			continue
		}
		fulfilled = append(fulfilled, model.CartItem{ProductID: p.ID, Quantity: item.Quantity, Product: p})
	}

	if len(fulfilled) == 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":           "all items are out of stock",
			"reason":          "ALL_OUT_OF_STOCK",
			"itemsOutOfStock": outOfStock,
		})
		return
	}

	total := decimal.Zero
	for _, item := range fulfilled {
		total = total.Add(item.LineTotal())
		s.setStockLocked(item.ProductID, s.products[item.ProductID].Stock-item.Quantity)
	}

	order := model.Order{
		ID:             uuid.NewString(),
		Status:         "placed",
		Items:          fulfilled,
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PaymentMode:    req.PaymentMode,
		CouponCode:     req.CouponCode,
		Subtotal:       total,
		Total:          total,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	resp := &model.OrderResponse{Order: &order, ItemsOutOfStock: outOfStock}

	if email != "" {
		s.orders[email] = append(s.orders[email], order)
		delete(s.carts, email)
	}
	if req.IdempotencyKey != "" {
		s.ordersByKey[req.IdempotencyKey] = resp
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) login(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(creds.Email)]
	if !ok || acc.password != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	profile := acc.profile
	c.JSON(http.StatusOK, model.AuthResponse{Token: s.issueTokenLocked(creds.Email), Profile: &profile})
}

func (s *Server) signup(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil || creds.Email == "" || len(creds.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and a password of at least 8 characters are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(creds.Email)
	if _, exists := s.accounts[key]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		return
	}

	acc := &account{
		password: creds.Password,
		profile:  model.Profile{ID: uuid.NewString(), Name: creds.Name, Email: creds.Email},
	}
	s.accounts[key] = acc

	profile := acc.profile
	c.JSON(http.StatusCreated, model.AuthResponse{Token: s.issueTokenLocked(creds.Email), Profile: &profile})
}

func (s *Server) profile(c *gin.Context) {
	email, ok := s.requireAccount(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, exists := s.accounts[email]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, acc.profile)
}

func (s *Server) resetPassword(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, a reset link was sent"})
}

func (s *Server) searchAddress(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, []model.Place{})
		return
	}
	c.JSON(http.StatusOK, []model.Place{{DisplayName: q, Latitude: 12.9716, Longitude: 77.5946, City: "Bengaluru"}})
}

func (s *Server) reverseGeocode(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}
	c.JSON(http.StatusOK, model.Place{DisplayName: "Market Street 1", Latitude: lat, Longitude: lon, City: "Bengaluru"})
}

func (s *Server) stockStream(c *gin.Context) {
	s.mu.Lock()
	s.streamConnects++
	s.streamQueries = append(s.streamQueries, c.Query("ids"))
	if s.streamFailures > 0 {
		s.streamFailures--
		s.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream unavailable"})
		return
	}

	sub := &subscriber{
		ids:  parseIDs(c.Query("ids")),
		out:  make(chan streamMessage, 64),
		done: make(chan struct{}),
	}
	s.subscribers[sub] = struct{}{}
	snapshot := s.snapshotLocked(sub.ids)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.SSEvent("stock:snapshot", snapshot)
	c.Writer.Flush()

	for {
		select {
		case msg := <-sub.out:
			c.SSEvent(msg.event, msg.data)
			c.Writer.Flush()
		case <-sub.done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
