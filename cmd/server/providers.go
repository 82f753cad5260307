package main

import (
	"fmt"
	"log/slog"

	"github.com/Tyrowin/chatrouter/internal/server"
	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/Tyrowin/chatrouter/internal/store/badgerstore"
	"github.com/Tyrowin/chatrouter/internal/store/postgres"
)

func provideGateway(cfg *server.Config, logger *slog.Logger) (store.Gateway, func(), error) {
	switch cfg.StoreDriver {
	case server.DriverPostgres:
		return providePostgresGateway(cfg, logger)
	case server.DriverBadger:
		return provideBadgerGateway(cfg, logger)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func providePostgresGateway(cfg *server.Config, logger *slog.Logger) (store.Gateway, func(), error) {
	if err := postgres.RunMigrations(cfg.PostgresURL); err != nil {
		return nil, nil, err
	}
	db, err := postgres.NewDB(cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database opening failed: %w", err)
	}
	cleanup := func() {
		logger.Info("Closing PostgreSQL...")
		_ = db.Close()
	}
	return postgres.NewGateway(db, cfg.StoreTimeout), cleanup, nil
}

func provideBadgerGateway(cfg *server.Config, logger *slog.Logger) (store.Gateway, func(), error) {
	gateway, err := badgerstore.Open(badgerstore.Options(cfg.BadgerPath))
	if err != nil {
		return nil, nil, fmt.Errorf("database opening failed: %w", err)
	}
	if cfg.BadgerPath == "" {
		logger.Warn("BADGER_PATH is empty; conversations are kept in memory only")
	}
	cleanup := func() {
		logger.Info("Closing BadgerDB...")
		_ = gateway.Close()
	}
	return gateway, cleanup, nil
}
