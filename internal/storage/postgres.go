package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// postgresStore implements Store on the client_storage table.
type postgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore creates a PostgreSQL-backed store. The schema is created
// by database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) Store {
	return &postgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "postgres-storage").Logger(),
	}
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM client_storage
		WHERE key = $1
	`

	var value []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Str("key", key).Msg("failed to query storage value")
		return nil, fmt.Errorf("failed to query %s: %w", key, err)
	}

	return value, nil
}

func (s *postgresStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO client_storage (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to upsert storage value")
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(value)).Msg("value stored")
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM client_storage WHERE key = $1`, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to delete storage value")
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
