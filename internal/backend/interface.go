package backend

import (
	"context"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/repository"
)

// CleanupFunc releases whatever a backend holds open.
type CleanupFunc func() error

// Backend bundles the store the services run on with its optional extras.
type Backend struct {
	// Repository is the store, wrapped by the category cache when enabled.
	Repository repository.Repository

	// Pinger is nil for the memory store.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// AMQP is nil when no broker is configured or the connection failed.
	AMQP *amqp.Client

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath  string
	DatabaseURL   string
	MemorySeedDir string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// CategoryCacheSize of zero disables the category cache.
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
