package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"freshcart/internal/checkout"
	"freshcart/internal/config"
	"freshcart/internal/fakeapi"
	"freshcart/internal/model"
	"freshcart/internal/storage"
	"freshcart/internal/storefront"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func startApp(t *testing.T, baseURL string, store storage.Store) *storefront.App {
	t.Helper()

	cfg := &config.Config{
		API: config.APIConfig{BaseURL: baseURL, StockPath: "/stock/stream", RequestTimeout: 2 * time.Second},
		Stock: config.StockConfig{
			DebounceWindow: 10 * time.Millisecond,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
		},
		Geo: config.GeoConfig{Timeout: time.Second},
	}

	app := storefront.New(cfg, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = app.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return app
}

func TestGuestCheckout_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	CleanupDB(t, testDB.Pool)
	store := storage.NewPostgresStore(testDB.Pool, zerolog.Nop())

	api := fakeapi.New()
	api.AddProduct(model.Product{ID: "p1", Name: "Tomatoes", Price: decimal.NewFromInt(50), Stock: 5})
	api.AddProduct(model.Product{ID: "p2", Name: "Mangoes", Price: decimal.NewFromInt(120), Stock: 3})
	api.SetDeliverySettings(model.DeliverySettings{
		Enabled:               true,
		DeliveryFee:           decimal.NewFromInt(30),
		FreeDeliveryThreshold: decimal.NewFromInt(300),
		MinOrderSubtotal:      decimal.NewFromInt(100),
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	app := startApp(t, srv.URL, store)

	tomatoes, err := app.API.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, app.Cart.Add(ctx, *tomatoes, 4))

	// Live stock below the cart quantity clamps the line
	require.Eventually(t, func() bool { return api.OpenStreams() == 1 }, waitFor, tick)
	api.SetStock("p1", 3)
	require.Eventually(t, func() bool { return app.Cart.Quantity("p1") == 3 }, waitFor, tick)

	// The clamped cart is what a second session on this device sees
	other := startApp(t, srv.URL, storage.NewPostgresStore(testDB.Pool, zerolog.Nop()))
	assert.Eventually(t, func() bool { return other.Cart.Quantity("p1") == 3 }, waitFor, tick)
	other.Close()

	outcome, err := app.Submit(ctx, checkout.Request{Address: "Market Street 1"})
	require.NoError(t, err)
	assert.False(t, outcome.Local)
	assert.True(t, outcome.Quote.Total.Equal(decimal.NewFromInt(180)))
	assert.Empty(t, app.Cart.Items())

	requests := api.OrderRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, []model.OrderItemRequest{{ProductID: "p1", Quantity: 3}}, requests[0].Items)
	assert.NotEmpty(t, requests[0].IdempotencyKey)
}

func TestOfflineOrder_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	CleanupDB(t, testDB.Pool)
	store := storage.NewPostgresStore(testDB.Pool, zerolog.Nop())

	api := fakeapi.New()
	api.AddProduct(model.Product{ID: "p2", Name: "Mangoes", Price: decimal.NewFromInt(120), Stock: 3})
	api.SetDeliverySettings(model.DeliverySettings{
		Enabled:               true,
		DeliveryFee:           decimal.NewFromInt(30),
		FreeDeliveryThreshold: decimal.NewFromInt(300),
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	app := startApp(t, srv.URL, store)

	mangoes, err := app.API.GetProduct(ctx, "p2")
	require.NoError(t, err)
	require.NoError(t, app.Cart.Add(ctx, *mangoes, 2))

	// Warm the delivery settings, then take the server away
	quote, err := app.Checkout.Quote(ctx, "")
	require.NoError(t, err)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(270)))

	app.SetVisible(false)
	require.Eventually(t, func() bool { return api.OpenStreams() == 0 }, waitFor, tick)
	srv.Close()

	outcome, err := app.Submit(ctx, checkout.Request{Address: "Market Street 1"})
	require.NoError(t, err)
	assert.True(t, outcome.Local)
	assert.Equal(t, model.OrderStatusLocalPending, outcome.Order.Status)
	assert.Empty(t, app.Cart.Items())

	history, err := app.Checkout.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, outcome.Order.ID, history[0].ID)

	// Local orders are durable
	var stored []model.Order
	found, err := storage.GetJSON(ctx, store, storage.KeyLocalOrders, &stored)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Total.Equal(decimal.NewFromInt(270)))
}
