package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/log"
	"expensetracker/internal/session"
	"expensetracker/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout).WithComponent(log.ComponentWorker)
	logger.Info("Starting receipt-worker", log.FieldOperation, log.OpStartup)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	if err := cfg.RequireAMQP(); err != nil {
		logger.Error("Receipt inbox not configured", log.FieldError, err)
		os.Exit(1)
	}

	// The worker authenticates with the token saved by `expensectl login`.
	state, err := cli.OpenState(logger, cfg.StateDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer state.Close()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer startupCancel()
	if _, err := session.Require(startupCtx, state); err != nil {
		logger.Error("No stored session, run `expensectl login` first", log.FieldError, err)
		os.Exit(1)
	}

	apiClient, err := cli.NewAPIClient(cfg, state, logger)
	if err != nil {
		logger.Error("Failed to create API client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(startupCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		amqp.WithLogger(logger),
		amqp.WithPrefetch(cfg.AMQPPrefetch),
	)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger)
	catalog := cache.NewCatalog(apiClient, cfg.CacheTTL, cacheManager)
	cacheManager.StartCleanup(cfg.CacheTTL)

	receiptWorker := worker.NewReceiptWorker(apiClient, cfg.DefaultCurrency, cfg.ReceiptAutoCommit, logger,
		worker.WithCurrencySource(catalog))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		cacheManager.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
	})

	logger.Info("Consuming receipt uploads",
		"queue", cfg.AMQPQueue,
		"auto_commit", cfg.ReceiptAutoCommit,
		log.FieldCurrency, cfg.DefaultCurrency)

	if err := amqpClient.ConsumeReceiptUploads(ctx, receiptWorker.HandleReceiptUpload); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, worker.ErrSessionExpired) {
			logger.Error("Session expired, run `expensectl login` and restart the worker", log.FieldError, err)
		} else {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		_ = amqpClient.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
