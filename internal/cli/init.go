// Package cli provides common process initialization shared by
// cmd/expensectl and cmd/receipt-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/api"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
)

// LoadEnvFile loads .env files for local development. Missing files are
// ignored; variables already set in the environment win.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger builds the process logger at the given level, writing to out,
// and installs it as the slog default.
func SetupLogger(level string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stderr
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig(logger *log.Logger) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			"error_type", log.ErrorTypeConfiguration)
		return nil, err
	}
	return cfg, nil
}

// OpenState opens the persistent client state store.
func OpenState(logger *log.Logger, dbPath string) (*storage.StateStore, error) {
	store, err := storage.NewStateStore(dbPath, logger)
	if err != nil {
		logger.Error("Failed to open client state", log.FieldError, err, log.FieldPath, dbPath)
		return nil, fmt.Errorf("open client state: %w", err)
	}
	return store, nil
}

// NewAPIClient builds the API client for cfg reading its token from tokens.
func NewAPIClient(cfg *config.Config, tokens session.TokenStore, logger *log.Logger) (*api.Client, error) {
	client, err := api.New(cfg.APIBaseURL, tokens,
		api.WithLogger(logger),
		api.WithUserAgent("expensetracker-cli"),
	)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		cancel()

		if cleanup == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			cleanup(shutdownCtx)
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
