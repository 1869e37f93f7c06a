package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	environment "wb-tariffs/internal/env"
)

func main() {
	os.Exit(run(context.Background()))
}

// run returns the process exit code. Resources are released before it
// returns, so deferred closers run even on failure.
func run(ctx context.Context) int {
	env, err := environment.Setup(ctx)
	if err != nil {
		log.Printf("Failed to setup environment: %v", err)
		return 1
	}
	defer env.Close()

	logger := env.Logger
	logger.Info("Starting wb-tariffs", "env", env.Config.Env)

	if env.Config.MigrateOnStart {
		if err := env.Services.Prepare(ctx, logger); err != nil {
			logger.Error("Failed to prepare database", slog.Any("error", err))
			return 1
		}
	}

	if env.Servers.HTTP.Observability != nil {
		go func() {
			logger.Info("Starting observability server", slog.String("addr", env.Servers.HTTP.Observability.Addr))
			if err := env.Servers.HTTP.Observability.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Observability server error", slog.Any("error", err))
			}
		}()
	}

	env.Services.WorkerService.Start()
	logger.Info("Tariff sync scheduled", "schedule", env.Config.Sync.Schedule)

	if env.Config.Sync.RunOnStart {
		if err := env.Services.WorkerService.Trigger(env.Services.TariffSync.Name()); err != nil {
			logger.Error("Failed to trigger startup sync", slog.Any("error", err))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("Shutting down application...", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Config.ShutdownDuration)
	defer cancel()

	env.Services.WorkerService.Stop(shutdownCtx)

	if env.Servers.HTTP.Observability != nil {
		if err := env.Servers.HTTP.Observability.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Observability server shutdown error", slog.Any("error", err))
		}
	}

	logger.Info("Application stopped")
	return 0
}
