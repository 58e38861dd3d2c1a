package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	if err := run(logger, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// run returns instead of exiting so the deferred cleanup always runs.
func run(logger *log.Logger, cfg *config.Config) error {
	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid backend configuration: %w", err)
	}
	// The worker only reads; the category cache would never be hit.
	backendCfg.CategoryCacheSize = 0

	b, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	if b.AMQP == nil {
		return errors.New("AMQP connection required for the worker")
	}

	balanceWorker := worker.NewBalanceWorker(services.NewTransactionService(b.Repository, nil))

	if err := balanceWorker.StartupBalanceCheck(ctx); err != nil {
		// keep going; the periodic check retries
		logger.Error("Failed startup balance check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.AMQP.ConsumeLedgerEvents(gctx, balanceWorker.HandleLedgerEvent)
	})
	g.Go(func() error {
		return balanceWorker.RunPeriodic(gctx, cfg.BalanceCheckInterval)
	})

	return g.Wait()
}
