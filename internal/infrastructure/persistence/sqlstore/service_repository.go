package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

const serviceTable = "enhanced_services"

// serviceRepository implements catalog.ServiceRepository. Writes require uow.
type serviceRepository struct {
	q       querier
	dialect *Dialect
	uow     *UnitOfWork
}

func (r *serviceRepository) writable(op string) error {
	if r.uow == nil {
		return apperrors.StateWrap(catalog.ErrTransactionInactive, op, "writes require a unit of work")
	}
	return r.uow.checkActive(op)
}

func (r *serviceRepository) collect(svc *catalog.Service) {
	r.uow.CollectEvents(svc.DomainEvents()...)
	svc.ClearDomainEvents()
}

// Create inserts the service and assigns the database id.
func (r *serviceRepository) Create(ctx context.Context, svc *catalog.Service) error {
	const op = "sqlstore.Services.Create"
	if err := r.writable(op); err != nil {
		return err
	}
	if svc.ID() != 0 {
		return apperrors.Internal(op, fmt.Sprintf("service already has id %d", svc.ID()))
	}

	args, err := serviceArgs(svc.Snapshot())
	if err != nil {
		return apperrors.InternalWrap(err, op, "encode service")
	}

	var id int64
	query := r.dialect.Rebind(insertStatement(serviceTable, serviceColumnNames))
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return mapError(err, op)
	}
	if err := svc.AssignID(id); err != nil {
		return err
	}
	r.collect(svc)
	return nil
}

// Save updates every mutable column of an existing service.
func (r *serviceRepository) Save(ctx context.Context, svc *catalog.Service) error {
	const op = "sqlstore.Services.Save"
	if err := r.writable(op); err != nil {
		return err
	}

	args, err := serviceArgs(svc.Snapshot())
	if err != nil {
		return apperrors.InternalWrap(err, op, "encode service")
	}
	args = append(args, svc.ID())

	res, err := r.q.ExecContext(ctx, r.dialect.Rebind(updateStatement(serviceTable, serviceColumnNames)), args...)
	if err != nil {
		return mapError(err, op)
	}
	if err := expectRow(res, op, func() error { return serviceNotFound(op, svc.ID()) }); err != nil {
		return err
	}
	r.collect(svc)
	return nil
}

// FindByID retrieves a service by id.
func (r *serviceRepository) FindByID(ctx context.Context, id int64) (*catalog.Service, error) {
	const op = "sqlstore.Services.FindByID"
	query := r.dialect.Rebind("SELECT " + serviceColumns + " FROM " + serviceTable + " WHERE id = ?")
	svc, err := scanService(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, serviceNotFound(op, id)
	}
	if err != nil {
		return nil, mapError(err, op)
	}
	return svc, nil
}

// ExistsByName reports whether another service uses name.
func (r *serviceRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return exists(ctx, r.q, r.dialect, "sqlstore.Services.ExistsByName",
		"SELECT COUNT(*) FROM "+serviceTable+" WHERE name = ? AND id <> ?", name, excludeID)
}

// ExistsByURL reports whether another service has url.
func (r *serviceRepository) ExistsByURL(ctx context.Context, url string, excludeID int64) (bool, error) {
	return exists(ctx, r.q, r.dialect, "sqlstore.Services.ExistsByURL",
		"SELECT COUNT(*) FROM "+serviceTable+" WHERE url = ? AND id <> ?", url, excludeID)
}

// List retrieves services matching the filter, newest first.
func (r *serviceRepository) List(ctx context.Context, filter catalog.ServiceFilter) ([]*catalog.Service, error) {
	const op = "sqlstore.Services.List"

	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}
	where, args := buildWhere(filter.PublisherID, statuses, filter.Search)
	query, args := pagedQuery("SELECT "+serviceColumns+" FROM "+serviceTable+where, args, filter.Limit, filter.Offset)

	rows, err := r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*catalog.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, mapError(err, op)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	if filter.Limit <= 0 {
		out = catalog.Page(out, filter.Offset, 0)
	}
	return out, nil
}
