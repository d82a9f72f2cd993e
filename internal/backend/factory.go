package backend

import (
	"context"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/ledger"
	"expensetracker/internal/ledger/memory"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// PublisherDialer connects to the broker. Swapped out in tests.
type PublisherDialer func(url, exchange, queue string, logger *log.Logger) (services.Publisher, error)

func dialAMQP(url, exchange, queue string, logger *log.Logger) (services.Publisher, error) {
	return amqp.NewClient(url, exchange, queue, logger)
}

// DefaultFactory builds the backing ledger and wraps it in a LedgerService.
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
	dial    PublisherDialer
}

type FactoryOption func(*DefaultFactory)

func WithPublisherDialer(d PublisherDialer) FactoryOption {
	return func(f *DefaultFactory) { f.dial = d }
}

func NewFactory(logger *log.Logger, m *metrics.Metrics, opts ...FactoryOption) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	f := &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
		dial:    dialAMQP,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromAppConfig maps the application config onto a backend Config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bt := BackendType(appConfig.DataBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:         bt,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		CacheSize:    appConfig.CacheSize,
		CacheTTL:     appConfig.CacheTTL,
	}, nil
}

// CreateBackend implements Factory.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	backing, err := f.createLedger(cfg)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(f.logger),
		services.WithMetrics(f.metrics),
	}

	var manager *cache.Manager
	if cfg.CacheSize > 0 {
		lru := cache.NewLRUCache[[]core.Expense](cfg.CacheSize, cfg.CacheTTL)
		opts = append(opts, services.WithCache(lru))
		if cfg.CacheTTL > 0 {
			manager = cache.NewManager(f.logger)
			manager.Register(lru)
			manager.StartCleanup(cfg.CacheTTL)
		}
	}

	if pub := f.createPublisher(ctx, cfg); pub != nil {
		opts = append(opts, services.WithPublisher(pub))
	}

	svc := services.NewLedgerService(backing, opts...)

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		log.FieldBackend, cfg.Type.String(),
		"cache_size", cfg.CacheSize,
		"amqp_enabled", cfg.AMQPURL != "")

	return &BackendResult{
		Ledger: svc,
		Cleanup: func() error {
			if manager != nil {
				manager.Stop()
			}
			return svc.Close()
		},
	}, nil
}

func (f *DefaultFactory) createLedger(cfg Config) (ledger.Ledger, error) {
	switch cfg.Type {
	case SQLiteBackend:
		l, err := storage.NewSQLiteLedger(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite ledger: %w", err)
		}
		return l, nil
	case MemoryBackend:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// createPublisher connects to AMQP when configured. A broker that is down at
// startup is logged and the service runs without publication.
func (f *DefaultFactory) createPublisher(ctx context.Context, cfg Config) services.Publisher {
	if cfg.AMQPURL == "" {
		return nil
	}
	pub, err := f.dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without publication", log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return pub
}
