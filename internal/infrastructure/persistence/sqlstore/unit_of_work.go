package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UnitOfWork implements catalog.UnitOfWork over a database transaction.
type UnitOfWork struct {
	store *Store
	tx    *sql.Tx

	mu            sync.Mutex
	active        bool
	pendingEvents []catalog.DomainEvent
}

// Commit commits the transaction and publishes the collected events.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	const op = "sqlstore.Commit"
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return apperrors.StateWrap(catalog.ErrTransactionInactive, op, "cannot commit")
	}
	u.active = false
	events := u.pendingEvents
	u.pendingEvents = nil
	u.mu.Unlock()

	if err := u.tx.Commit(); err != nil {
		return mapError(err, op)
	}

	u.store.publish(ctx, events)
	return nil
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return nil
	}
	u.active = false
	u.pendingEvents = nil
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapError(err, "sqlstore.Rollback")
	}
	return nil
}

// Requests returns the request repository bound to this transaction.
func (u *UnitOfWork) Requests() catalog.RequestRepository {
	return &requestRepository{q: u.tx, dialect: u.store.dialect, uow: u}
}

// Services returns the service repository bound to this transaction.
func (u *UnitOfWork) Services() catalog.ServiceRepository {
	return &serviceRepository{q: u.tx, dialect: u.store.dialect, uow: u}
}

// CollectEvents stages events for publication on commit.
func (u *UnitOfWork) CollectEvents(events ...catalog.DomainEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.active {
		u.pendingEvents = append(u.pendingEvents, events...)
	}
}

func (u *UnitOfWork) checkActive(op string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.active {
		return apperrors.StateWrap(catalog.ErrTransactionInactive, op, "unit of work is not active")
	}
	return nil
}
