package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dress-to-impress/internal/config"
	"dress-to-impress/internal/db"
	"dress-to-impress/internal/logging"
	"dress-to-impress/internal/server"
	"dress-to-impress/internal/store"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	autoMigrate bool
	devUsers    map[string]string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.autoMigrate, "auto-migrate", false, "run gorm auto-migrations on start (postgres backend)")
	cmd.Flags().StringToStringVar(&opts.devUsers, "dev-user", nil, "token=user_id pairs accepted by the memory backend")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg := config.Load()
	logger := logging.Setup(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(cfg, opts, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	srv := server.New(backend.games, backend.identity, cfg, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("backend", cfg.StoreBackend).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	stats := srv.Stats()
	logger.Info().Int("sessions", stats.Sessions).Int("rooms", stats.Rooms).Msg("server stopped")
	return nil
}

type backend struct {
	games    store.Games
	identity store.Identity
	close    func()
}

func openBackend(cfg config.Config, opts *serveOptions, logger zerolog.Logger) (*backend, error) {
	timeout := time.Duration(cfg.StoreTimeoutSeconds) * time.Second
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		client := store.NewSupabaseClient(cfg.SupabaseURL, cfg.EffectiveSupabaseKey(), timeout)
		var identity store.Identity = client
		if cfg.SupabaseJWTSecret != "" {
			identity = store.NewJWTIdentity(cfg.SupabaseJWTSecret)
		}
		return &backend{games: client, identity: identity, close: func() {}}, nil
	case config.BackendPostgres:
		conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if opts.autoMigrate {
			if err := db.Migrate(conn); err != nil {
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		closeDB := func() {
			if sqlDB, err := conn.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return &backend{games: store.NewPostgres(conn), identity: store.NewJWTIdentity(cfg.SupabaseJWTSecret), close: closeDB}, nil
	case config.BackendMemory:
		var identity store.Identity
		if cfg.SupabaseJWTSecret != "" {
			identity = store.NewJWTIdentity(cfg.SupabaseJWTSecret)
		} else {
			static := store.NewStaticIdentity(nil)
			for token, userID := range opts.devUsers {
				static.Add(token, store.Profile{ID: userID, Email: userID + "@localhost"})
			}
			if len(opts.devUsers) == 0 {
				logger.Warn().Msg("memory backend without SUPABASE_JWT_SECRET or --dev-user accepts no tokens")
			}
			identity = static
		}
		return &backend{games: store.NewMemory(), identity: identity, close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", strings.TrimSpace(cfg.StoreBackend))
	}
}
