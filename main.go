package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/api"
	"github.com/serroba/annotated-docs/internal/collab"
	"github.com/serroba/annotated-docs/internal/config"
	"github.com/serroba/annotated-docs/internal/storage"
	"github.com/serroba/annotated-docs/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, config.ErrHelp) {
		return
	}

	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}

		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	store, closeStore, err := openStore(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}

	defer closeStore()

	hub := ws.NewHub()

	var events ws.Broadcaster = hub

	if rdb != nil {
		relay := ws.NewRelay(rdb, hub, logger)
		if err := relay.Start(ctx); err != nil {
			return err
		}

		defer func() { _ = relay.Close() }()

		events = relay
	}

	manager := collab.NewManager(collab.ManagerConfig{
		SavingDelay: cfg.SavingDelay,
		Logger:      logger,
	})

	server := api.NewServer(api.ServerConfig{
		Manager:    manager,
		Store:      store,
		PermStore:  acl.NewMemoryStore(),
		Hub:        hub,
		Events:     events,
		AdminRole:  cfg.AdminRole,
		ReadyLimit: cfg.ReadyLimit,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}

	return manager.CloseAll()
}

// openStore selects Postgres, then Redis, then the in-memory store.
func openStore(ctx context.Context, cfg config.Config, rdb *redis.Client, logger *slog.Logger) (storage.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		logger.Info("using postgres store")

		return store, store.Close, nil
	case rdb != nil:
		logger.Info("using redis store")

		return storage.NewRedisStoreWithClient(rdb), func() {}, nil
	default:
		logger.Info("using in-memory store")

		return storage.NewMemoryStore(), func() {}, nil
	}
}
