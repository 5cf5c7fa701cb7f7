package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"freshcart/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingProvider struct{}

func (blockingProvider) CurrentPosition(ctx context.Context) (Position, error) {
	select {}
}

type ctxProvider struct{}

func (ctxProvider) CurrentPosition(ctx context.Context) (Position, error) {
	<-ctx.Done()
	return Position{}, ctx.Err()
}

type stubGeocoder struct {
	place *model.Place
	err   error
}

func (g stubGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*model.Place, error) {
	return g.place, g.err
}

func TestLocator_Locate(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		want     Position
		wantErr  error
	}{
		{
			name:     "static position",
			provider: StaticProvider{Position: Position{Latitude: 12.97, Longitude: 77.59}},
			want:     Position{Latitude: 12.97, Longitude: 77.59},
		},
		{
			name:     "zero position is unavailable",
			provider: StaticProvider{},
			wantErr:  ErrPositionUnavailable,
		},
		{
			name:     "permission denied",
			provider: StaticProvider{Err: ErrPermissionDenied},
			wantErr:  ErrPermissionDenied,
		},
		{
			name:     "provider ignoring context times out",
			provider: blockingProvider{},
			wantErr:  ErrTimeout,
		},
		{
			name:     "provider honouring context times out",
			provider: ctxProvider{},
			wantErr:  ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLocator(tt.provider, nil, 50*time.Millisecond, zerolog.Nop())

			start := time.Now()
			got, err := l.Locate(context.Background())

			assert.Less(t, time.Since(start), time.Second)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocator_Resolve(t *testing.T) {
	provider := StaticProvider{Position: Position{Latitude: 12.97, Longitude: 77.59}}

	l := NewLocator(provider, stubGeocoder{place: &model.Place{DisplayName: "MG Road", City: "Bengaluru"}}, 0, zerolog.Nop())
	loc, err := l.Resolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loc.Place)
	assert.Equal(t, "Bengaluru", loc.Place.City)

	l = NewLocator(provider, stubGeocoder{err: errors.New("geocoder down")}, 0, zerolog.Nop())
	loc, err = l.Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loc.Place)
	assert.InDelta(t, 12.97, loc.Position.Latitude, 1e-9)

	l = NewLocator(StaticProvider{Err: ErrPermissionDenied}, nil, 0, zerolog.Nop())
	_, err = l.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Contains(t, Message(ErrPermissionDenied), "denied")
	assert.Contains(t, Message(ErrPositionUnavailable), "could not be determined")
	assert.Contains(t, Message(ErrTimeout), "took too long")
	assert.Contains(t, Message(errors.New("boom")), "boom")
}
