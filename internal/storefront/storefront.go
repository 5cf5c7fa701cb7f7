// Package storefront wires the client core together: cart changes feed the
// watch set, the watch set drives the stock stream, and stock events drive
// reconciliation back into the cart.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"freshcart/internal/apiclient"
	"freshcart/internal/cart"
	"freshcart/internal/checkout"
	"freshcart/internal/config"
	"freshcart/internal/geo"
	"freshcart/internal/model"
	"freshcart/internal/notify"
	"freshcart/internal/reconcile"
	"freshcart/internal/session"
	"freshcart/internal/stock"
	"freshcart/internal/storage"

	"github.com/rs/zerolog"
)

// Watch set sources.
const (
	sourceCart    = "cart"
	sourceProduct = "product"
)

// Option configures an App.
type Option func(*options)

type options struct {
	streamOpts []stock.Option
	provider   geo.Provider
}

// WithStreamOptions passes options to the stock stream.
func WithStreamOptions(opts ...stock.Option) Option {
	return func(o *options) { o.streamOpts = append(o.streamOpts, opts...) }
}

// WithLocationProvider replaces the configured default position.
func WithLocationProvider(p geo.Provider) Option {
	return func(o *options) { o.provider = p }
}

// App is the running client core.
type App struct {
	Session       *session.Manager
	API           *apiclient.Client
	Cart          *cart.Store
	Registrar     *stock.Registrar
	Stream        *stock.Stream
	Engine        *reconcile.Engine
	Notifications *notify.Center
	Checkout      *checkout.Service
	Locator       *geo.Locator

	storage        storage.Store
	requestTimeout time.Duration

	mu           sync.Mutex
	checkoutView bool

	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// New builds the core over cfg and a storage backend. Nothing runs until
// Run is called.
func New(cfg *config.Config, store storage.Store, logger zerolog.Logger, opts ...Option) *App {
	o := &options{
		provider: geo.StaticProvider{Position: geo.Position{
			Latitude:  cfg.Geo.DefaultLatitude,
			Longitude: cfg.Geo.DefaultLongitude,
		}},
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{
		storage:        store,
		requestTimeout: cfg.API.RequestTimeout,
		kick:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		logger:         logger.With().Str("component", "storefront").Logger(),
	}

	a.Session = session.NewManager(logger)
	a.API = apiclient.New(cfg.API.BaseURL, cfg.API.RequestTimeout, a.Session, logger)
	a.Cart = cart.NewStore(cart.NewGuestBackend(store, logger), session.Guest, logger)
	a.Notifications = notify.NewCenter(notify.DefaultLimit, logger)
	a.Engine = reconcile.NewEngine(a.Cart, a.Notifications, reconcile.NewGate(), logger)

	streamOpts := append([]stock.Option{
		stock.WithBackoff(cfg.Stock.InitialBackoff, cfg.Stock.MaxBackoff),
	}, o.streamOpts...)
	a.Stream = stock.NewStream(cfg.API.StockURL(), a.Session, logger, streamOpts...)
	a.Registrar = stock.NewRegistrar(cfg.Stock.DebounceWindow, a.Stream.Open, logger)

	a.Checkout = checkout.NewService(
		a.API,
		a.Cart,
		a.Engine,
		a.Stream,
		checkout.NewSettingsCache(a.API, logger),
		store,
		logger,
	)
	a.Locator = geo.NewLocator(o.provider, a.API, cfg.Geo.Timeout, logger)

	// Cart -> watch set, and a reconciliation pass for the new quantities
	a.Cart.OnChange(func(items []model.CartItem) {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ProductID
		}
		a.Registrar.Watch(sourceCart, ids)
		a.trigger()
	})

	// Stock events -> reconciliation
	a.Stream.OnUpdate(func(map[string]int) { a.trigger() })

	// Session mode -> cart backend
	a.Session.OnChange(a.switchBackend)

	return a
}

// Run loads the cart and processes reconciliation passes until ctx is
// cancelled, then releases the stream and pending timers.
func (a *App) Run(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	err := a.Cart.Reload(loadCtx)
	cancel()
	if err != nil {
		a.logger.Warn().Err(err).Msg("initial cart load failed")
	}

	a.logger.Info().Str("mode", a.Cart.Mode().String()).Int("lines", a.Cart.LineCount()).Msg("storefront core started")

	for {
		select {
		case <-ctx.Done():
			a.Close()
			return nil
		case <-a.done:
			return nil
		case <-a.kick:
			a.reconcile(ctx)
		}
	}
}

// Close stops the registrar and the stock stream. It is safe to call more
// than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Registrar.Close()
		a.Stream.Close()
		close(a.done)
		a.logger.Info().Msg("storefront core stopped")
	})
}

// trigger schedules a reconciliation pass. Requests arriving while one is
// pending collapse into it.
func (a *App) trigger() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

func (a *App) reconcile(ctx context.Context) {
	mode := reconcile.Mutate
	if a.CheckoutView() {
		mode = reconcile.NotifyOnly
	}

	result, err := a.Engine.Reconcile(ctx, a.Stream.Snapshot(), mode)
	if err != nil {
		a.logger.Warn().Err(err).Msg("reconciliation pass incomplete")
	}
	if result.AllOutOfStock() {
		a.logger.Info().Int("lines", result.Lines).Msg("every cart item is out of stock")
	}
}

// SetCheckoutView switches reconciliation to notify-only while the
// customer is on the checkout page.
func (a *App) SetCheckoutView(active bool) {
	a.mu.Lock()
	a.checkoutView = active
	a.mu.Unlock()
	a.trigger()
}

// CheckoutView reports whether the checkout page is open.
func (a *App) CheckoutView() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkoutView
}

// ViewProduct adds the product being viewed to the watch set. An empty ID
// clears it.
func (a *App) ViewProduct(productID string) {
	if productID == "" {
		a.Registrar.Watch(sourceProduct, nil)
		return
	}
	a.Registrar.Watch(sourceProduct, []string{productID})
}

// SetVisible pauses or resumes the stock stream.
func (a *App) SetVisible(visible bool) {
	a.Stream.SetVisible(visible)
}

func (a *App) switchBackend(mode session.Mode) {
	ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout)
	defer cancel()

	var backend cart.Backend
	if mode == session.Authenticated {
		backend = cart.NewRemoteBackend(a.API, a.logger)
	} else {
		backend = cart.NewGuestBackend(a.storage, a.logger)
	}

	if err := a.Cart.SetBackend(ctx, mode, backend); err != nil {
		a.logger.Warn().Err(err).Str("mode", mode.String()).Msg("cart unavailable after session change")
	}
}

// Login authenticates against the server and switches the cart to the
// remote store.
func (a *App) Login(ctx context.Context, email, password string) (*model.Profile, error) {
	resp, err := a.API.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	a.Session.SetToken(resp.Token)
	return resp.Profile, nil
}

// Signup creates an account and logs it in.
func (a *App) Signup(ctx context.Context, creds model.Credentials) (*model.Profile, error) {
	resp, err := a.API.Signup(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	a.Session.SetToken(resp.Token)
	return resp.Profile, nil
}

// Logout returns to the guest cart.
func (a *App) Logout() {
	a.Session.Clear()
}

// Profile returns the logged-in account. A 401 or 404 ends the session and
// yields session.ErrSessionExpired.
func (a *App) Profile(ctx context.Context) (*model.Profile, error) {
	if a.Session.Mode() != session.Authenticated {
		return nil, session.ErrSessionExpired
	}

	profile, err := a.API.Profile(ctx)
	if err != nil {
		status := apiclient.StatusCode(err)
		if status == http.StatusUnauthorized || status == http.StatusNotFound {
			a.Session.Clear()
			return nil, session.ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return profile, nil
}

// Submit places an order. A rejected session is ended so the customer is
// sent to log in.
func (a *App) Submit(ctx context.Context, req checkout.Request) (*checkout.Outcome, error) {
	outcome, err := a.Checkout.Submit(ctx, req)
	// Passes are paused while an order is in flight.
	a.trigger()
	if errors.Is(err, checkout.ErrUnauthorized) {
		a.Session.Clear()
	}
	return outcome, err
}
