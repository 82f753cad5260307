package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/chatrouter/internal/chat"
	"github.com/Tyrowin/chatrouter/internal/presence"
	"github.com/Tyrowin/chatrouter/internal/rooms"
	"github.com/Tyrowin/chatrouter/internal/server"
	"github.com/Tyrowin/chatrouter/internal/store/postgres"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// exitError carries the process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

var envFiles []string

func main() {
	rootCmd := &cobra.Command{
		Use:           "chatrouter",
		Short:         "Real-time conversation router over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file(s) to load before reading the environment")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket server (default)",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations and exit",
		RunE:  runMigrate,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatrouter terminated with error: %v\n", err)
		code := exitRuntime
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			code = exitErr.code
		}
		os.Exit(code)
	}
	os.Exit(exitOK)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := server.LoadConfig(envFiles...)
	if err != nil {
		return fail(exitConfig, err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	gateway, cleanup, err := provideGateway(cfg, logger)
	if err != nil {
		return fail(exitRuntime, err)
	}
	defer cleanup()

	fabric := rooms.NewFabric(logger)
	engine := chat.NewEngine(presence.NewRegistry(), fabric, gateway, logger, chat.WithHistoryLimit(cfg.HistoryLimit))

	hub := server.NewHub(engine, fabric, logger)
	hub.Start()

	policy := server.NewOriginPolicy(cfg.AllowedOrigins, logger)
	router := server.SetupRoutes(server.NewWebSocketHandler(hub, policy, *cfg))
	httpServer := server.CreateServer(cfg.Port, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting chat router", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := server.StartServer(httpServer, logger); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		_ = hub.Shutdown(cfg.ShutdownTimeout)
		return fail(exitRuntime, err)
	}

	logger.Info("Shutting down gracefully...")
	shutdownErr := errors.Join(
		server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger),
		hub.Shutdown(cfg.ShutdownTimeout),
	)
	if shutdownErr != nil {
		return fail(exitRuntime, shutdownErr)
	}
	logger.Info("Program stopped cleanly")
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := server.LoadConfig(envFiles...)
	if err != nil {
		return fail(exitConfig, err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	if cfg.StoreDriver != server.DriverPostgres {
		return fail(exitConfig, fmt.Errorf("migrate requires STORE_DRIVER=%s, got %q", server.DriverPostgres, cfg.StoreDriver))
	}
	if err := postgres.RunMigrations(cfg.PostgresURL); err != nil {
		return fail(exitRuntime, err)
	}
	logger.Info("Migrations applied")
	return nil
}
