package backend

import (
	"context"
	"time"

	"expensetracker/internal/ledger"
)

// CleanupFunc releases whatever the backend opened.
type CleanupFunc func() error

// BackendResult is a ready-to-use ledger plus its cleanup.
type BackendResult struct {
	Ledger  ledger.Ledger
	Cleanup CleanupFunc
}

// Factory creates ledgers based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType selects the storage behind the ledger.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build a ledger.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// Optional; empty AMQPURL disables publication.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CacheSize int
	CacheTTL  time.Duration
}
