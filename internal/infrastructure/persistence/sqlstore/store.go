package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence/sqlstore/migrations"
)

// Config configures a SQL store.
type Config struct {
	// Driver selects the dialect: "sqlite" or "postgres".
	Driver string

	// DSN is the PostgreSQL connection string or the SQLite file path.
	DSN string

	// MaxOpenConns caps the connection pool (0 = driver default).
	MaxOpenConns int

	// ConnectAttempts is how many times the initial ping is tried.
	ConnectAttempts int

	// ConnectBackoff is the delay before the first ping retry.
	ConnectBackoff time.Duration
}

// Store implements the catalog repositories on a SQL database.
type Store struct {
	db             *sql.DB
	dialect        *Dialect
	eventPublisher catalog.EventPublisher
	logger         *slog.Logger
}

// Open connects to the configured database, waits for it to answer and
// applies the embedded migrations.
func Open(ctx context.Context, cfg Config, eventPublisher catalog.EventPublisher) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("storage dsn is required")
	}
	if dialect == SQLite {
		dsn = SQLiteDSN(dsn)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := ping(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect.Name, err)
	}

	if err := ApplyMigrations(ctx, db, dialect, migrations.FS, dialect.MigrationRoot); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return New(db, dialect, eventPublisher), nil
}

func ping(ctx context.Context, db *sql.DB, cfg Config) error {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  backoff,
		MaxDelay:      10 * backoff,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	})
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	})
	return err
}

// New wraps an open database. The schema must already be migrated.
func New(db *sql.DB, dialect *Dialect, eventPublisher catalog.EventPublisher) *Store {
	return &Store{
		db:             db,
		dialect:        dialect,
		eventPublisher: eventPublisher,
		logger:         slog.Default().With("component", "sql_store", "dialect", dialect.Name),
	}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's dialect.
func (s *Store) Dialect() *Dialect {
	return s.dialect
}

// Begin starts a database transaction. PostgreSQL transactions run at
// serializable isolation; SQLite transactions take the write lock immediately.
func (s *Store) Begin(ctx context.Context) (catalog.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.txOpts)
	if err != nil {
		return nil, mapError(err, "sqlstore.Begin")
	}
	return &UnitOfWork{
		store:  s,
		tx:     tx,
		active: true,
	}, nil
}

// Requests returns a repository that reads outside any transaction and
// writes in its own unit of work.
func (s *Store) Requests() catalog.RequestRepository {
	return &storeRequestRepository{
		store: s,
		view:  &requestRepository{q: s.db, dialect: s.dialect},
	}
}

// Services returns a repository that reads outside any transaction and
// writes in its own unit of work.
func (s *Store) Services() catalog.ServiceRepository {
	return &storeServiceRepository{
		store: s,
		view:  &serviceRepository{q: s.db, dialect: s.dialect},
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) publish(ctx context.Context, events []catalog.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events after commit",
			"error", err,
			"event_count", len(events))
	}
}

// storeRequestRepository is the non-transactional view of the store.
type storeRequestRepository struct {
	store *Store
	view  *requestRepository
}

func (r *storeRequestRepository) Create(ctx context.Context, req *catalog.ServiceRequest) error {
	return catalog.WithTransaction(ctx, r.store, func(uow catalog.UnitOfWork) error {
		return uow.Requests().Create(ctx, req)
	})
}

func (r *storeRequestRepository) Save(ctx context.Context, req *catalog.ServiceRequest) error {
	return catalog.WithTransaction(ctx, r.store, func(uow catalog.UnitOfWork) error {
		return uow.Requests().Save(ctx, req)
	})
}

func (r *storeRequestRepository) Delete(ctx context.Context, id int64) error {
	return catalog.WithTransaction(ctx, r.store, func(uow catalog.UnitOfWork) error {
		return uow.Requests().Delete(ctx, id)
	})
}

func (r *storeRequestRepository) FindByID(ctx context.Context, id int64) (*catalog.ServiceRequest, error) {
	return r.view.FindByID(ctx, id)
}

func (r *storeRequestRepository) FindByName(ctx context.Context, name string) (*catalog.ServiceRequest, error) {
	return r.view.FindByName(ctx, name)
}

func (r *storeRequestRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return r.view.ExistsByName(ctx, name, excludeID)
}

func (r *storeRequestRepository) List(ctx context.Context, filter catalog.RequestFilter) ([]*catalog.ServiceRequest, error) {
	return r.view.List(ctx, filter)
}

func (r *storeRequestRepository) CountByStatus(ctx context.Context, publisherID int64) (map[catalog.RequestStatus]int, error) {
	return r.view.CountByStatus(ctx, publisherID)
}

// storeServiceRepository is the non-transactional view of the store.
type storeServiceRepository struct {
	store *Store
	view  *serviceRepository
}

func (r *storeServiceRepository) Create(ctx context.Context, svc *catalog.Service) error {
	return catalog.WithTransaction(ctx, r.store, func(uow catalog.UnitOfWork) error {
		return uow.Services().Create(ctx, svc)
	})
}

func (r *storeServiceRepository) Save(ctx context.Context, svc *catalog.Service) error {
	return catalog.WithTransaction(ctx, r.store, func(uow catalog.UnitOfWork) error {
		return uow.Services().Save(ctx, svc)
	})
}

func (r *storeServiceRepository) FindByID(ctx context.Context, id int64) (*catalog.Service, error) {
	return r.view.FindByID(ctx, id)
}

func (r *storeServiceRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return r.view.ExistsByName(ctx, name, excludeID)
}

func (r *storeServiceRepository) ExistsByURL(ctx context.Context, url string, excludeID int64) (bool, error) {
	return r.view.ExistsByURL(ctx, url, excludeID)
}

func (r *storeServiceRepository) List(ctx context.Context, filter catalog.ServiceFilter) ([]*catalog.Service, error) {
	return r.view.List(ctx, filter)
}
