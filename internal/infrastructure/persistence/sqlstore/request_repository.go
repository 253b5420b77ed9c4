package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

const requestTable = "service_requests"

// requestRepository implements catalog.RequestRepository. Writes require uow.
type requestRepository struct {
	q       querier
	dialect *Dialect
	uow     *UnitOfWork
}

func (r *requestRepository) writable(op string) error {
	if r.uow == nil {
		return apperrors.StateWrap(catalog.ErrTransactionInactive, op, "writes require a unit of work")
	}
	return r.uow.checkActive(op)
}

func (r *requestRepository) collect(req *catalog.ServiceRequest) {
	r.uow.CollectEvents(req.DomainEvents()...)
	req.ClearDomainEvents()
}

// Create inserts the request and assigns the database id.
func (r *requestRepository) Create(ctx context.Context, req *catalog.ServiceRequest) error {
	const op = "sqlstore.Requests.Create"
	if err := r.writable(op); err != nil {
		return err
	}
	if req.ID() != 0 {
		return apperrors.Internal(op, fmt.Sprintf("request already has id %d", req.ID()))
	}

	args, err := requestArgs(req.Snapshot())
	if err != nil {
		return apperrors.InternalWrap(err, op, "encode request")
	}

	var id int64
	query := r.dialect.Rebind(insertStatement(requestTable, requestColumnNames))
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return mapError(err, op)
	}
	if err := req.AssignID(id); err != nil {
		return err
	}
	r.collect(req)
	return nil
}

// Save updates every mutable column of an existing request.
func (r *requestRepository) Save(ctx context.Context, req *catalog.ServiceRequest) error {
	const op = "sqlstore.Requests.Save"
	if err := r.writable(op); err != nil {
		return err
	}

	args, err := requestArgs(req.Snapshot())
	if err != nil {
		return apperrors.InternalWrap(err, op, "encode request")
	}
	args = append(args, req.ID())

	res, err := r.q.ExecContext(ctx, r.dialect.Rebind(updateStatement(requestTable, requestColumnNames)), args...)
	if err != nil {
		return mapError(err, op)
	}
	if err := expectRow(res, op, func() error { return requestNotFound(op, req.ID()) }); err != nil {
		return err
	}
	r.collect(req)
	return nil
}

// Delete removes a request.
func (r *requestRepository) Delete(ctx context.Context, id int64) error {
	const op = "sqlstore.Requests.Delete"
	if err := r.writable(op); err != nil {
		return err
	}

	res, err := r.q.ExecContext(ctx, r.dialect.Rebind("DELETE FROM "+requestTable+" WHERE id = ?"), id)
	if err != nil {
		return mapError(err, op)
	}
	return expectRow(res, op, func() error { return requestNotFound(op, id) })
}

// FindByID retrieves a request by id.
func (r *requestRepository) FindByID(ctx context.Context, id int64) (*catalog.ServiceRequest, error) {
	const op = "sqlstore.Requests.FindByID"
	query := r.dialect.Rebind("SELECT " + requestColumns + " FROM " + requestTable + " WHERE id = ?")
	req, err := scanRequest(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, requestNotFound(op, id)
	}
	if err != nil {
		return nil, mapError(err, op)
	}
	return req, nil
}

// FindByName retrieves a request by exact name.
func (r *requestRepository) FindByName(ctx context.Context, name string) (*catalog.ServiceRequest, error) {
	const op = "sqlstore.Requests.FindByName"
	query := r.dialect.Rebind("SELECT " + requestColumns + " FROM " + requestTable + " WHERE name = ?")
	req, err := scanRequest(r.q.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFoundWrap(catalog.ErrRequestNotFound, op,
			fmt.Sprintf("service request %q not found", name))
	}
	if err != nil {
		return nil, mapError(err, op)
	}
	return req, nil
}

// ExistsByName reports whether another request uses name.
func (r *requestRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	const op = "sqlstore.Requests.ExistsByName"
	return exists(ctx, r.q, r.dialect, op,
		"SELECT COUNT(*) FROM "+requestTable+" WHERE name = ? AND id <> ?", name, excludeID)
}

// List retrieves requests matching the filter, newest first.
func (r *requestRepository) List(ctx context.Context, filter catalog.RequestFilter) ([]*catalog.ServiceRequest, error) {
	const op = "sqlstore.Requests.List"

	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}
	where, args := buildWhere(filter.PublisherID, statuses, filter.Search)
	query, args := pagedQuery("SELECT "+requestColumns+" FROM "+requestTable+where, args, filter.Limit, filter.Offset)

	rows, err := r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*catalog.ServiceRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, mapError(err, op)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	if filter.Limit <= 0 {
		out = catalog.Page(out, filter.Offset, 0)
	}
	return out, nil
}

// CountByStatus counts requests per status.
func (r *requestRepository) CountByStatus(ctx context.Context, publisherID int64) (map[catalog.RequestStatus]int, error) {
	const op = "sqlstore.Requests.CountByStatus"

	where, args := buildWhere(publisherID, nil, "")
	query := "SELECT status, COUNT(*) FROM " + requestTable + where + " GROUP BY status"
	rows, err := r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[catalog.RequestStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, mapError(err, op)
		}
		counts[catalog.RequestStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	return counts, nil
}

func requestNotFound(op string, id int64) error {
	return apperrors.NotFoundWrap(catalog.ErrRequestNotFound, op, fmt.Sprintf("service request %d not found", id))
}

func serviceNotFound(op string, id int64) error {
	return apperrors.NotFoundWrap(catalog.ErrServiceNotFound, op, fmt.Sprintf("service %d not found", id))
}

func expectRow(res sql.Result, op string, notFound func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, op)
	}
	if n == 0 {
		return notFound()
	}
	return nil
}

func exists(ctx context.Context, q querier, d *Dialect, op, query string, args ...any) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, d.Rebind(query), args...).Scan(&n); err != nil {
		return false, mapError(err, op)
	}
	return n > 0, nil
}

// buildWhere renders the shared publisher/status/search filter.
func buildWhere(publisherID int64, statuses []string, search string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if publisherID > 0 {
		clauses = append(clauses, "publisher_id = ?")
		args = append(args, publisherID)
	}
	if len(statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
		clauses = append(clauses, "status IN ("+marks+")")
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		clauses = append(clauses, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func pagedQuery(query string, args []any, limit, offset int) (string, []any) {
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return query, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
