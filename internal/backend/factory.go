package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gmscanner/internal/amqp"
	"gmscanner/internal/ledger"
	"gmscanner/internal/storage"
)

// EventSource streams orchestrator events.
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler amqp.Handler) error
}

// BackendResult is a ready strategy plus whatever the caller must run or
// release alongside it.
type BackendResult struct {
	Strategy Strategy
	// Networked and Events are nil in standalone mode.
	Networked *NetworkedStrategy
	Events    EventSource
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config, groups ledger.GroupSource) (*BackendResult, error)
}

type closableStore interface {
	storage.KeyValueStore
	Close() error
}

type transport interface {
	Publisher
	EventSource
	Close() error
}

type DefaultFactory struct {
	logger    *slog.Logger
	openStore func(path string) (closableStore, error)
	dial      func(cfg amqp.Config) (transport, error)
}

func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		openStore: func(path string) (closableStore, error) {
			return storage.NewSQLiteStore(path)
		},
		dial: func(cfg amqp.Config) (transport, error) {
			return amqp.NewClient(cfg)
		},
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config, groups ledger.GroupSource) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	switch config.Mode {
	case Standalone:
		return f.createLocal(ctx, config, store, groups)
	case Networked:
		return f.createNetworked(ctx, config, store, groups)
	default:
		store.Close()
		return nil, fmt.Errorf("unsupported operating mode: %s", config.Mode)
	}
}

func (f *DefaultFactory) createLocal(ctx context.Context, config Config, store closableStore, groups ledger.GroupSource) (*BackendResult, error) {
	strategy := NewLocalStrategy(config.DeviceID, store, groups)
	if err := strategy.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to restore local session: %w", err)
	}

	f.logger.Info("Initialized standalone backend",
		"db_path", config.SQLiteDBPath,
		"device_id", config.DeviceID)

	return &BackendResult{
		Strategy: strategy,
		Cleanup:  store.Close,
	}, nil
}

func (f *DefaultFactory) createNetworked(ctx context.Context, config Config, store closableStore, groups ledger.GroupSource) (*BackendResult, error) {
	client, err := f.dial(config.AMQP)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to orchestrator: %w", err)
	}

	strategy := NewNetworkedStrategy(config.DeviceID, store, groups, client)
	if err := strategy.Load(ctx); err != nil {
		f.logger.Warn("Failed to restore networked cache, waiting for full sync", "error", err)
	}

	f.logger.Info("Initialized networked backend",
		"exchange", config.AMQP.Exchange,
		"command_queue", config.AMQP.CommandQueue,
		"event_queue", config.AMQP.EventQueue,
		"device_id", config.DeviceID)

	return &BackendResult{
		Strategy:  strategy,
		Networked: strategy,
		Events:    client,
		Cleanup: func() error {
			return errors.Join(client.Close(), store.Close())
		},
	}, nil
}
