package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabserve/internal/api"
	"tabserve/internal/app"
	"tabserve/internal/config"
	internaldb "tabserve/internal/db"
	"tabserve/internal/domain"
	"tabserve/internal/jobstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Job store: Redis when configured, otherwise in-process memory.
	var store domain.KeyValueStore
	if cfg.RedisURL != "" {
		store, err = jobstore.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		logger.Info("using redis job store")
	} else {
		store = jobstore.NewMemoryStore()
		logger.Info("using in-memory job store")
	}
	defer store.Close() //nolint:errcheck

	var historyDB *sql.DB
	if cfg.HistoryDBPath != "" {
		historyDB, err = internaldb.OpenSQLite(cfg.HistoryDBPath)
		if err != nil {
			return err
		}
		defer historyDB.Close() //nolint:errcheck
		if err := internaldb.RunMigrations(historyDB); err != nil {
			return err
		}
		logger.Info("job history enabled", "path", cfg.HistoryDBPath)
	}

	application, err := app.New(app.Deps{
		Cfg:       cfg,
		Store:     store,
		HistoryDB: historyDB,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(
		application.Jobs, application.Runner, application.Registry,
		application.History, logger.With("component", "api"),
	)
	router := handler.Routes(api.RouterConfig{
		SharedSecret:       cfg.SharedSecret,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Let in-flight jobs reach a terminal state before the store closes.
	application.Runner.Wait()
	return nil
}
