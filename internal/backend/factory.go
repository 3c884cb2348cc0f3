package backend

import (
	"context"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/ledger"
	"ledger/internal/ledger/memory"
	applog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is a ready ledger service plus the function that tears it down.
type Result struct {
	Service *services.LedgerService
	Cleanup CleanupFunc
}

type Factory struct {
	logger  *applog.Logger
	metrics *metrics.Metrics
}

// NewFactory returns a factory; m may be nil to skip instrumentation.
func NewFactory(logger *applog.Logger, m *metrics.Metrics) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend), metrics: m}
}

// Create builds the store selected by config and wraps it in a LedgerService.
// AMQP is optional: a broker that cannot be reached is logged and skipped.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var seed []ledger.SeedCustomer
	if config.Seed {
		seed = ledger.SampleCustomers()
	}

	var store ledger.Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, seed)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		store = repo
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath, "seed", config.Seed)
	case MemoryBackend:
		store = memory.New(seed)
		f.logger.InfoContext(ctx, "Initialized memory backend", "seed", config.Seed)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// Assigned only on success so the service never sees a typed nil.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", applog.FieldError, err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
		}
	}

	var recorder services.Recorder
	if f.metrics != nil {
		recorder = f.metrics
	}

	svc := services.NewLedgerService(store, publisher, recorder, f.logger)
	return &Result{Service: svc, Cleanup: svc.Close}, nil
}
