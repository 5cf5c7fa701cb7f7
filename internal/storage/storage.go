// Package storage provides durable key/value client storage. The storefront
// keeps two namespaced documents in it: the guest cart and orders recorded
// locally when submission could not reach the server.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Namespaced keys used by the storefront.
const (
	KeyGuestCart   = "freshcart.guest-cart"
	KeyLocalOrders = "freshcart.local-orders"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrCorrupt is returned by GetJSON when the stored value cannot be decoded.
var ErrCorrupt = errors.New("storage: corrupt value")

// Store is a durable key/value store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value under key into v. It reports false, with a nil
// error, when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w: %w", key, ErrCorrupt, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}
