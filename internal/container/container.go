// Package container wires the catalog's infrastructure and use cases from
// configuration.
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/config"
	"github.com/williamsiker/practicas/internal/domain/catalog"
	"github.com/williamsiker/practicas/internal/domain/endpoint"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence/sqlstore"
	"github.com/williamsiker/practicas/internal/infrastructure/webhook"
	"github.com/williamsiker/practicas/internal/observability"
)

// defaultShutdownTimeout is the default timeout for graceful shutdown of components.
const defaultShutdownTimeout = 10 * time.Second

// Closeable represents a component that can be closed/shutdown.
type Closeable interface {
	Close() error
}

// Store is the persistence backend the use cases run on.
type Store interface {
	catalogapp.Store
	Closeable
}

// App holds the wired components of a running catalog.
type App struct {
	config *config.Config
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool

	// Infrastructure layer
	store          Store
	sqlStore       *sqlstore.Store
	eventPublisher catalog.EventPublisher
	metrics        *observability.Metrics

	// Application layer
	useCases *catalogapp.UseCases

	closeables []Closeable
}

// New creates an uninitialized App.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, apperrors.Config("container.New", "configuration is required")
	}

	return &App{
		config:     cfg,
		logger:     slog.Default().With("component", "container"),
		closeables: make([]Closeable, 0),
	}, nil
}

// WithMetrics makes the App record into m instead of the global registry.
func (c *App) WithMetrics(m *observability.Metrics) *App {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	return c
}

// registerCloseable adds a component to be closed on shutdown.
// Caller must hold c.mu.
func (c *App) registerCloseable(closeable Closeable) {
	if closeable != nil {
		c.closeables = append(c.closeables, closeable)
	}
}

// RegisterCloseable adds a component to be closed on shutdown.
func (c *App) RegisterCloseable(closeable Closeable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registerCloseable(closeable)
}

// Initialize opens the store and builds the use cases.
func (c *App) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.State("container.Initialize", "container is closed")
	}
	if c.useCases != nil {
		return nil
	}

	if err := c.initInfrastructure(ctx); err != nil {
		return err
	}
	c.initApplicationLayer()

	c.logger.Debug("container initialized", "storage", c.config.Storage.Driver)
	return nil
}

func (c *App) initInfrastructure(ctx context.Context) error {
	if c.metrics == nil {
		c.metrics = observability.Global()
	}

	publishers := []catalog.EventPublisher{
		persistence.NewLoggingEventPublisher(slog.Default()),
		observability.NewEventPublisher(c.metrics),
	}
	if len(c.config.Webhooks) > 0 {
		hooks := webhook.NewPublisher(c.config.Webhooks, webhook.WithRecorder(c.metrics))
		c.registerCloseable(hooks)
		publishers = append(publishers, hooks)
	}
	c.eventPublisher = persistence.NewMultiEventPublisher(publishers...)

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	c.store = store
	c.registerCloseable(store)
	return nil
}

func (c *App) openStore(ctx context.Context) (Store, error) {
	const op = "container.openStore"

	cfg := c.config.Storage
	switch cfg.Driver {
	case config.DriverMemory:
		return persistence.NewMemoryStore(c.eventPublisher), nil
	case config.DriverSQLite, config.DriverPostgres, "":
		driver := cfg.Driver
		if driver == "" {
			driver = config.DriverSQLite
		}
		dsn := cfg.DSN
		if dsn == "" && driver == config.DriverSQLite {
			dsn = cfg.Path
		}
		s, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver:          driver,
			DSN:             dsn,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnectAttempts: cfg.ConnectAttempts,
			ConnectBackoff:  cfg.ConnectBackoff,
		}, c.eventPublisher)
		if err != nil {
			return nil, apperrors.StorageWrap(err, op, fmt.Sprintf("failed to open %s storage", driver))
		}
		c.sqlStore = s
		return s, nil
	default:
		return nil, apperrors.Config(op, fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}
}

func (c *App) initApplicationLayer() {
	wf := c.config.Workflow
	retry := catalogapp.DefaultRetryPolicy()
	if wf.RetryAttempts > 0 {
		retry.Attempts = wf.RetryAttempts
	}
	if wf.RetryInitialDelay > 0 {
		retry.InitialDelay = wf.RetryInitialDelay
	}
	if wf.RetryMaxDelay > 0 {
		retry.MaxDelay = wf.RetryMaxDelay
	}

	c.useCases = catalogapp.NewUseCases(c.store, endpoint.NewAllocator(wf.MaxEndpointSuffix), retry)
}

// UseCases returns the application use cases, or nil before Initialize.
func (c *App) UseCases() *catalogapp.UseCases {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.useCases
}

// Store returns the persistence backend.
func (c *App) Store() Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// EventPublisher returns the domain event publisher.
func (c *App) EventPublisher() catalog.EventPublisher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventPublisher
}

// Metrics returns the metrics registry.
func (c *App) Metrics() *observability.Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// Config returns the configuration the App was built from.
func (c *App) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// Ping checks that the storage backend answers. The memory store always does.
func (c *App) Ping(ctx context.Context) error {
	c.mu.RLock()
	closed, s, st := c.closed, c.sqlStore, c.store
	c.mu.RUnlock()

	if closed || st == nil {
		return apperrors.State("container.Ping", "storage is not open")
	}
	if s == nil {
		return nil
	}
	return s.DB().PingContext(ctx)
}

// Close gracefully shuts down all components.
func (c *App) Close() error {
	return c.CloseWithTimeout(defaultShutdownTimeout)
}

// CloseWithTimeout gracefully shuts down the App with a custom timeout.
func (c *App) CloseWithTimeout(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Debug("initiating container shutdown", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// LIFO
	var errs []error
	for i := len(c.closeables) - 1; i >= 0; i-- {
		if err := c.closeWithContext(ctx, c.closeables[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		c.logger.Warn("some components failed to close cleanly", "error_count", len(errs))
		return errors.Join(errs...)
	}

	c.logger.Debug("container shutdown completed successfully")
	return nil
}

// closeWithContext closes a component with context cancellation support.
func (c *App) closeWithContext(ctx context.Context, closeable Closeable) error {
	done := make(chan error, 1)
	go func() {
		done <- closeable.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.logger.Warn("component close timed out", "error", ctx.Err())
		return ctx.Err()
	}
}

// NewInitialized creates and initializes a new App.
func NewInitialized(ctx context.Context, cfg *config.Config) (*App, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if err := c.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}
