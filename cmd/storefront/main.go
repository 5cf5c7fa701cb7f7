package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freshcart/internal/config"
	"freshcart/internal/database"
	"freshcart/internal/handler"
	"freshcart/internal/router"
	"freshcart/internal/storage"
	"freshcart/internal/storefront"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("api", cfg.API.BaseURL).Msg("starting freshcart storefront")

	// Cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable client storage
	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	app := storefront.New(cfg, store, logger)

	// Initialize HTTP handlers
	handlers := router.Handlers{
		Cart:       handler.NewCartHandler(app.Cart, app.API, logger),
		Checkout:   handler.NewCheckoutHandler(app.Checkout, app, logger),
		Session:    handler.NewSessionHandler(app, logger),
		Storefront: handler.NewStorefrontHandler(app.Stream, app, app.Notifications, app.Locator, logger),
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router.New(handlers, cfg.Auth.APIKey, cfg.Server.AllowedOrigin, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.API.RequestTimeout + 15*time.Second, // submission waits on the remote API
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		app.Close()
		logger.Info().Msg("server shutdown completed")
		return nil
	})

	return g.Wait()
}

// openStorage opens the configured storage backend. The returned func
// releases it.
func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return storage.NewPostgresStore(pool, logger), pool.Close, nil

	case config.StorageS3:
		store, err := storage.NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return store, func() {}, nil

	default:
		store, err := storage.NewFileStore(cfg.Storage.Dir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		logger.Info().Str("dir", cfg.Storage.Dir).Msg("using local file storage")
		return store, func() {}, nil
	}
}
