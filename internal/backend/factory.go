package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/repository/memory"
	"ledger/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend opens the configured store, wraps it with the category cache
// and connects the optional event publisher.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b       *Backend
		err     error
		closers []func() error
	)
	switch config.Type {
	case SQLiteBackend:
		b, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		b, err = f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		b = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	if b.Cleanup != nil {
		closers = append(closers, b.Cleanup)
	}

	if config.CategoryCacheSize > 0 {
		categories := cache.NewLRUCache[string, core.Category](config.CategoryCacheSize, config.CategoryCacheTTL)
		b.Repository = repository.NewCached(b.Repository, categories)

		manager := cache.NewManager()
		manager.Register(categories)
		manager.StartCleanup(cacheSweepInterval(config.CategoryCacheTTL))
		closers = append(closers, func() error {
			manager.Stop()
			return nil
		})
		f.logger.Info("Category cache enabled",
			"size", config.CategoryCacheSize,
			"ttl", config.CategoryCacheTTL)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			b.AMQP = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	b.Cleanup = func() error {
		var errs []error
		// release in reverse order of acquisition
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return b, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Backend, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Backend{Repository: repo, Pinger: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*Backend, error) {
	repo, err := storage.ConnectPostgres(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &Backend{Repository: repo, Pinger: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *Backend {
	var store *memory.Store
	if config.MemorySeedDir != "" {
		store = memory.NewFromFiles(config.MemorySeedDir)
	} else {
		store = memory.New()
	}

	f.logger.Info("Initialized memory backend", "seed_directory", config.MemorySeedDir)

	return &Backend{Repository: store}
}

// cacheSweepInterval sweeps at the TTL, bounded to [1m, 10m].
func cacheSweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl, time.Minute), 10*time.Minute)
}
