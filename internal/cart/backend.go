package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"freshcart/internal/apiclient"
	"freshcart/internal/model"
	"freshcart/internal/storage"

	"github.com/rs/zerolog"
)

// Backend is the store that owns the cart in one session mode. Every
// mutation returns the resulting cart as the backend sees it.
type Backend interface {
	// Load returns the persisted cart.
	Load(ctx context.Context) ([]model.CartItem, error)

	// Add accumulates quantity units of product.
	Add(ctx context.Context, product model.Product, quantity int) ([]model.CartItem, error)

	// Update sets the absolute quantity of an existing line.
	Update(ctx context.Context, productID string, quantity int) ([]model.CartItem, error)

	// Remove deletes a line. Removing an absent line is not an error.
	Remove(ctx context.Context, productID string) ([]model.CartItem, error)

	// Clear empties the cart.
	Clear(ctx context.Context) error
}

// guestBackend keeps the cart in durable client storage.
type guestBackend struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewGuestBackend creates the backend of unauthenticated sessions.
func NewGuestBackend(store storage.Store, logger zerolog.Logger) Backend {
	return &guestBackend{
		store:  store,
		logger: logger.With().Str("backend", "guest").Logger(),
	}
}

// Load treats an undecodable document as an empty cart; the next save
// overwrites it.
func (b *guestBackend) Load(ctx context.Context) ([]model.CartItem, error) {
	var items []model.CartItem
	_, err := storage.GetJSON(ctx, b.store, storage.KeyGuestCart, &items)
	if errors.Is(err, storage.ErrCorrupt) {
		b.logger.Warn().Err(err).Msg("discarding corrupt guest cart")
		return []model.CartItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guest cart: %w", err)
	}
	return normalize(items), nil
}

func (b *guestBackend) Add(ctx context.Context, product model.Product, quantity int) ([]model.CartItem, error) {
	items, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].ProductID == product.ID {
			items[i].Quantity += quantity
			items[i].Product = product
			found = true
			break
		}
	}
	if !found {
		items = append(items, model.CartItem{ProductID: product.ID, Quantity: quantity, Product: product})
	}

	return items, b.save(ctx, items)
}

func (b *guestBackend) Update(ctx context.Context, productID string, quantity int) ([]model.CartItem, error) {
	items, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return items, b.save(ctx, items)
		}
	}
	return items, nil
}

func (b *guestBackend) Remove(ctx context.Context, productID string) ([]model.CartItem, error) {
	items, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	for _, item := range items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return kept, nil
	}
	return kept, b.save(ctx, kept)
}

func (b *guestBackend) Clear(ctx context.Context) error {
	if err := b.store.Delete(ctx, storage.KeyGuestCart); err != nil {
		return fmt.Errorf("failed to clear guest cart: %w", err)
	}
	return nil
}

func (b *guestBackend) save(ctx context.Context, items []model.CartItem) error {
	if err := storage.PutJSON(ctx, b.store, storage.KeyGuestCart, items); err != nil {
		b.logger.Error().Err(err).Msg("failed to persist guest cart")
		return fmt.Errorf("failed to save guest cart: %w", err)
	}
	return nil
}

// RemoteAPI is the part of the remote API the authenticated cart uses.
type RemoteAPI interface {
	GetCart(ctx context.Context) ([]model.CartItem, error)
	AddCartItem(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, productID string) error
}

// remoteBackend proxies every mutation to the server and refetches the cart
// afterwards.
type remoteBackend struct {
	api    RemoteAPI
	logger zerolog.Logger
}

// NewRemoteBackend creates the backend of authenticated sessions.
func NewRemoteBackend(api RemoteAPI, logger zerolog.Logger) Backend {
	return &remoteBackend{
		api:    api,
		logger: logger.With().Str("backend", "remote").Logger(),
	}
}

func (b *remoteBackend) Load(ctx context.Context) ([]model.CartItem, error) {
	items, err := b.api.GetCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return normalize(items), nil
}

func (b *remoteBackend) Add(ctx context.Context, product model.Product, quantity int) ([]model.CartItem, error) {
	if err := b.api.AddCartItem(ctx, product.ID, quantity); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return b.Load(ctx)
}

func (b *remoteBackend) Update(ctx context.Context, productID string, quantity int) ([]model.CartItem, error) {
	if err := b.api.UpdateCartItem(ctx, productID, quantity); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return b.Load(ctx)
}

func (b *remoteBackend) Remove(ctx context.Context, productID string) ([]model.CartItem, error) {
	err := b.api.RemoveCartItem(ctx, productID)
	if err != nil && apiclient.StatusCode(err) != http.StatusNotFound {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}
	return b.Load(ctx)
}

// Clear removes every line the server reports. The server has no bulk
// delete endpoint.
func (b *remoteBackend) Clear(ctx context.Context) error {
	items, err := b.Load(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := b.api.RemoveCartItem(ctx, item.ProductID)
		if err != nil && apiclient.StatusCode(err) != http.StatusNotFound {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
	}
	return nil
}

// normalize drops lines without a positive quantity and merges lines of the
// same product, keeping first-seen order.
func normalize(items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			continue
		}
		if item.Product.ID == "" {
			item.Product.ID = item.ProductID
		}
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}
