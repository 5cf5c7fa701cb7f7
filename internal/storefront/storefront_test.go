package storefront

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freshcart/internal/checkout"
	"freshcart/internal/config"
	"freshcart/internal/fakeapi"
	"freshcart/internal/model"
	"freshcart/internal/session"
	"freshcart/internal/storage"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

var (
	tomatoes = model.Product{ID: "p1", Name: "Tomatoes", Price: decimal.NewFromInt(50), Stock: 5}
	mangoes  = model.Product{ID: "p2", Name: "Mangoes", Price: decimal.NewFromInt(120), Stock: 3}
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:        baseURL,
			StockPath:      "/stock/stream",
			RequestTimeout: 2 * time.Second,
		},
		Stock: config.StockConfig{
			DebounceWindow: 10 * time.Millisecond,
			InitialBackoff: 20 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
		},
		Geo: config.GeoConfig{
			Timeout:          time.Second,
			DefaultLatitude:  12.97,
			DefaultLongitude: 77.59,
		},
	}
}

func setup(t *testing.T) (*App, *fakeapi.Server, storage.Store) {
	t.Helper()

	api := fakeapi.New()
	api.AddProduct(tomatoes)
	api.AddProduct(mangoes)
	api.RegisterUser("asha@example.com", "correct-horse", "Asha")

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore()
	app := New(testConfig(srv.URL), store, zerolog.Nop())

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

	return app, api, store
}

func lastQuery(api *fakeapi.Server) string {
	queries := api.StreamQueries()
	if len(queries) == 0 {
		return ""
	}
	return queries[len(queries)-1]
}

func TestApp_CartDrivesStockSubscription(t *testing.T) {
	app, api, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, app.Cart.Add(ctx, tomatoes, 3))
	require.Eventually(t, func() bool { return api.OpenStreams() == 1 }, waitFor, tick)
	assert.Equal(t, "p1", lastQuery(api))

	app.ViewProduct("p2")
	require.Eventually(t, func() bool { return lastQuery(api) == "p1,p2" }, waitFor, tick)

	app.ViewProduct("")
	require.Eventually(t, func() bool { return lastQuery(api) == "p1" }, waitFor, tick)
}

func TestApp_StockDropClampsCart(t *testing.T) {
	app, api, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, app.Cart.Add(ctx, tomatoes, 3))
	require.Eventually(t, func() bool {
		n, ok := app.Stream.Stock("p1")
		return ok && n == 5
	}, waitFor, tick)

	api.SetStock("p1", 2)
	require.Eventually(t, func() bool { return app.Cart.Quantity("p1") == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return app.Notifications.Pending() == 1 }, waitFor, tick)

	toasts := app.Notifications.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Only 2 of Tomatoes left, quantity updated", toasts[0].Message)

	api.SetStock("p1", 0)
	require.Eventually(t, func() bool { return app.Notifications.Pending() == 1 }, waitFor, tick)
	assert.Equal(t, "Tomatoes is out of stock", app.Notifications.Drain()[0].Message)
	assert.Equal(t, 2, app.Cart.Quantity("p1"))
}

func TestApp_CheckoutViewOnlyNotifies(t *testing.T) {
	app, api, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, app.Cart.Add(ctx, tomatoes, 4))
	require.Eventually(t, func() bool {
		_, ok := app.Stream.Stock("p1")
		return ok
	}, waitFor, tick)

	app.SetCheckoutView(true)
	assert.True(t, app.CheckoutView())

	api.SetStock("p1", 1)
	require.Eventually(t, func() bool { return app.Notifications.Pending() == 1 }, waitFor, tick)
	assert.Equal(t, "Only 1 of Tomatoes available", app.Notifications.Drain()[0].Message)
	assert.Equal(t, 4, app.Cart.Quantity("p1"))

	app.SetCheckoutView(false)
	require.Eventually(t, func() bool { return app.Cart.Quantity("p1") == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return app.Notifications.Pending() == 1 }, waitFor, tick)
	assert.Equal(t, "Only 1 of Tomatoes left, quantity updated", app.Notifications.Drain()[0].Message)
}

func TestApp_LoginSwitchesCartWithoutMerging(t *testing.T) {
	app, api, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, app.Cart.Add(ctx, tomatoes, 2))

	profile, err := app.Login(ctx, "asha@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, session.Authenticated, app.Cart.Mode())
	assert.Empty(t, app.Cart.Items())

	require.NoError(t, app.Cart.Add(ctx, mangoes, 1))
	require.Len(t, api.Cart("asha@example.com"), 1)

	app.Logout()
	assert.Equal(t, session.Guest, app.Cart.Mode())
	assert.Equal(t, 2, app.Cart.Quantity("p1"))
	assert.Zero(t, app.Cart.Quantity("p2"))
}

func TestApp_LoginRejected(t *testing.T) {
	app, _, _ := setup(t)

	_, err := app.Login(context.Background(), "asha@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, session.Guest, app.Session.Mode())
}

func TestApp_ProfileExpiresDeletedAccount(t *testing.T) {
	app, api, _ := setup(t)
	ctx := context.Background()

	_, err := app.Profile(ctx)
	assert.ErrorIs(t, err, session.ErrSessionExpired)

	_, err = app.Login(ctx, "asha@example.com", "correct-horse")
	require.NoError(t, err)

	profile, err := app.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Asha", profile.Name)

	api.DeleteUser("asha@example.com")
	_, err = app.Profile(ctx)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Equal(t, session.Guest, app.Session.Mode())
}

func TestApp_GuestCheckout(t *testing.T) {
	app, api, store := setup(t)
	ctx := context.Background()

	api.SetDeliverySettings(model.DeliverySettings{
		Enabled:               true,
		DeliveryFee:           decimal.NewFromInt(30),
		FreeDeliveryThreshold: decimal.NewFromInt(500),
		MinOrderSubtotal:      decimal.NewFromInt(100),
	})

	require.NoError(t, app.Cart.Add(ctx, tomatoes, 3))
	require.Eventually(t, func() bool {
		_, ok := app.Stream.Stock("p1")
		return ok
	}, waitFor, tick)

	outcome, err := app.Submit(ctx, checkout.Request{Address: "Market Street 1"})
	require.NoError(t, err)
	require.NotNil(t, outcome.Order)
	assert.False(t, outcome.Local)
	assert.True(t, outcome.Quote.Total.Equal(decimal.NewFromInt(180)))
	assert.Empty(t, app.Cart.Items())

	// The guest cart is cleared in storage too
	raw, err := store.Get(ctx, storage.KeyGuestCart)
	if err == nil {
		assert.False(t, strings.Contains(string(raw), "p1"))
	}

	requests := api.OrderRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, model.PaymentCashOnDelivery, requests[0].PaymentMode)
}

func TestApp_LocateUsesDefaultPosition(t *testing.T) {
	app, _, _ := setup(t)

	loc, err := app.Locator.Resolve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.97, loc.Position.Latitude, 0.0001)
	require.NotNil(t, loc.Place)
	assert.Equal(t, "Market Street 1", loc.Place.DisplayName)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	app, _, _ := setup(t)

	app.Close()
	app.Close()
}
