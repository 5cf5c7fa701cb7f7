// Package geo resolves the customer's position with a bounded wait and
// typed failures.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freshcart/internal/model"

	"github.com/rs/zerolog"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("location unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// DefaultTimeout bounds a lookup when the locator is given none.
const DefaultTimeout = 8 * time.Second

// Position is a coordinate pair. Accuracy is in metres, 0 when unknown.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Provider reports the current position.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Geocoder turns coordinates into an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*model.Place, error)
}

// Location is a position with its address when one could be found.
type Location struct {
	Position Position     `json:"position"`
	Place    *model.Place `json:"place,omitempty"`
}

// Locator bounds provider lookups with a timeout.
type Locator struct {
	provider Provider
	geocoder Geocoder
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewLocator creates a locator. geocoder may be nil.
func NewLocator(provider Provider, geocoder Geocoder, timeout time.Duration, logger zerolog.Logger) *Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locator{
		provider: provider,
		geocoder: geocoder,
		timeout:  timeout,
		logger:   logger.With().Str("component", "geo").Logger(),
	}
}

// Locate returns the current position. It never waits longer than the
// timeout; a provider that does not answer in time yields ErrTimeout.
func (l *Locator) Locate(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type answer struct {
		pos Position
		err error
	}
	done := make(chan answer, 1)

	go func() {
		pos, err := l.provider.CurrentPosition(ctx)
		done <- answer{pos: pos, err: err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			if errors.Is(a.err, context.DeadlineExceeded) {
				return Position{}, ErrTimeout
			}
			return Position{}, a.err
		}
		return a.pos, nil
	case <-ctx.Done():
		l.logger.Warn().Dur("timeout", l.timeout).Msg("location lookup timed out")
		return Position{}, ErrTimeout
	}
}

// Resolve locates the customer and reverse-geocodes the position. A
// geocoding failure still returns the position.
func (l *Locator) Resolve(ctx context.Context) (*Location, error) {
	pos, err := l.Locate(ctx)
	if err != nil {
		return nil, err
	}

	loc := &Location{Position: pos}
	if l.geocoder == nil {
		return loc, nil
	}

	place, err := l.geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		l.logger.Warn().Err(err).Msg("reverse geocoding failed")
		return loc, nil
	}
	loc.Place = place
	return loc, nil
}

// Message returns the text shown to the customer for a location error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Location access was denied. Please allow location access or enter your address manually."
	case errors.Is(err, ErrPositionUnavailable):
		return "Your location could not be determined. Please enter your address manually."
	case errors.Is(err, ErrTimeout):
		return "Finding your location took too long. Please try again or enter your address manually."
	default:
		return fmt.Sprintf("Could not get your location: %v", err)
	}
}

// StaticProvider answers with a fixed position, or Err when set. A zero
// position is reported as unavailable.
type StaticProvider struct {
	Position Position
	Err      error
}

func (p StaticProvider) CurrentPosition(ctx context.Context) (Position, error) {
	if p.Err != nil {
		return Position{}, p.Err
	}
	if p.Position.Latitude == 0 && p.Position.Longitude == 0 {
		return Position{}, ErrPositionUnavailable
	}
	return p.Position, nil
}
