package checkout

import (
	"context"
	"fmt"
	"sync"

	"freshcart/internal/model"

	"github.com/rs/zerolog"
)

// SettingsSource fetches delivery settings from the server.
type SettingsSource interface {
	GetDeliverySettings(ctx context.Context) (*model.DeliverySettings, error)
}

// SettingsCache fetches delivery settings once and serves the cached copy
// afterwards. Failed fetches are not cached.
type SettingsCache struct {
	source SettingsSource

	mu       sync.Mutex
	settings *model.DeliverySettings

	logger zerolog.Logger
}

// NewSettingsCache creates an empty cache.
func NewSettingsCache(source SettingsSource, logger zerolog.Logger) *SettingsCache {
	return &SettingsCache{
		source: source,
		logger: logger.With().Str("component", "delivery-settings").Logger(),
	}
}

// Get returns the delivery settings, fetching them on first use.
func (c *SettingsCache) Get(ctx context.Context) (model.DeliverySettings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settings != nil {
		return *c.settings, nil
	}

	settings, err := c.source.GetDeliverySettings(ctx)
	if err != nil {
		return model.DeliverySettings{}, fmt.Errorf("failed to fetch delivery settings: %w", err)
	}

	c.settings = settings
	c.logger.Debug().
		Bool("enabled", settings.Enabled).
		Str("delivery_fee", settings.DeliveryFee.String()).
		Str("min_order_subtotal", settings.MinOrderSubtotal.String()).
		Msg("delivery settings cached")
	return *settings, nil
}

// Invalidate drops the cached settings.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = nil
}
