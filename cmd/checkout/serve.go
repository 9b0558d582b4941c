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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/api"
	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/provider"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/internal/repository/postgres"
	"github.com/jafarshop/checkoutapi/internal/service"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the checkout HTTP API",
	Long: `Start the checkout HTTP API.

Examples:
  checkout serve
  checkout serve --migrate=false`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply pending database migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if serveMigrate {
		if err := postgres.MigrateUp(db); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	repos := postgres.NewRepositories(db, logger)
	checkout, closeTokens := newCheckoutService(cmd.Context(), cfg, repos, logger)
	defer closeTokens()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(cfg, checkout, repos.IdempotencyKey, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newCheckoutService wires providers onto repos. Redis backs the provider token
// cache when reachable; otherwise tokens are fetched per request.
func newCheckoutService(ctx context.Context, cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) (*service.CheckoutService, func()) {
	var tokens provider.TokenCache = provider.NoopTokenCache{}
	closeFn := func() {}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis unavailable, provider tokens will not be cached", zap.Error(err))
			client.Close()
		} else {
			tokens = provider.NewRedisTokenCache(client, logger)
			closeFn = func() { client.Close() }
		}
	}

	registry := provider.NewRegistry(cfg, tokens, logger)
	return service.NewCheckoutService(cfg, repos, registry, logger), closeFn
}
