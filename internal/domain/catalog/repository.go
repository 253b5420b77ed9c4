package catalog

import (
	"context"
	"strings"
)

// RequestRepository defines persistence for service requests.
type RequestRepository interface {
	// Create persists a new request and assigns its ID.
	Create(ctx context.Context, req *ServiceRequest) error

	// Save persists every mutable field of an existing request.
	Save(ctx context.Context, req *ServiceRequest) error

	// FindByID retrieves a request by its ID.
	FindByID(ctx context.Context, id int64) (*ServiceRequest, error)

	// FindByName retrieves a request by its exact name.
	FindByName(ctx context.Context, name string) (*ServiceRequest, error)

	// ExistsByName reports whether another request (id != excludeID) uses name.
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)

	// List retrieves requests matching the filter, newest first.
	List(ctx context.Context, filter RequestFilter) ([]*ServiceRequest, error)

	// CountByStatus counts requests per status, optionally scoped to a publisher.
	CountByStatus(ctx context.Context, publisherID int64) (map[RequestStatus]int, error)

	// Delete removes a request.
	Delete(ctx context.Context, id int64) error
}

// ServiceRepository defines persistence for enhanced services.
type ServiceRepository interface {
	// Create persists a new service and assigns its ID.
	Create(ctx context.Context, svc *Service) error

	// Save persists every mutable field of an existing service.
	Save(ctx context.Context, svc *Service) error

	// FindByID retrieves a service by its ID.
	FindByID(ctx context.Context, id int64) (*Service, error)

	// ExistsByName reports whether another service (id != excludeID) uses name.
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)

	// ExistsByURL reports whether another service (id != excludeID) has url.
	ExistsByURL(ctx context.Context, url string, excludeID int64) (bool, error)

	// List retrieves services matching the filter, newest first.
	List(ctx context.Context, filter ServiceFilter) ([]*Service, error)
}

// EventPublisher defines the interface for publishing domain events.
type EventPublisher interface {
	// Publish publishes domain events.
	Publish(ctx context.Context, events ...DomainEvent) error
}

// UnitOfWork groups repository operations into one atomic change.
// Events collected through CollectEvents are published only after Commit succeeds.
type UnitOfWork interface {
	// Commit applies all staged changes.
	Commit(ctx context.Context) error

	// Rollback discards all staged changes. It is safe to call after Commit.
	Rollback() error

	// Requests returns the request repository bound to this unit of work.
	Requests() RequestRepository

	// Services returns the service repository bound to this unit of work.
	Services() ServiceRepository

	// CollectEvents stages events for publication on commit.
	CollectEvents(events ...DomainEvent)
}

// UnitOfWorkFactory starts units of work.
type UnitOfWorkFactory interface {
	// Begin starts a new unit of work.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// WithTransaction runs fn inside a unit of work, committing on success and
// rolling back on error or panic.
func WithTransaction(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) (err error) {
	uow, err := factory.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback()
			panic(p)
		}
		if !committed {
			_ = uow.Rollback()
		}
	}()

	if err = fn(uow); err != nil {
		return err
	}
	if err = uow.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// RequestFilter selects service requests.
type RequestFilter struct {
	PublisherID int64
	Statuses    []RequestStatus
	Search      string
	Limit       int
	Offset      int
}

// Matches reports whether req satisfies the filter, ignoring paging.
func (f RequestFilter) Matches(req *ServiceRequest) bool {
	if f.PublisherID > 0 && req.PublisherID() != f.PublisherID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, req.Status()) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		d := req.Details()
		if !strings.Contains(strings.ToLower(d.Name), term) &&
			!strings.Contains(strings.ToLower(d.Description), term) {
			return false
		}
	}
	return true
}

// ServiceFilter selects enhanced services.
type ServiceFilter struct {
	PublisherID int64
	Statuses    []ServiceStatus
	Search      string
	Limit       int
	Offset      int
}

// Matches reports whether svc satisfies the filter, ignoring paging.
func (f ServiceFilter) Matches(svc *Service) bool {
	if f.PublisherID > 0 && svc.PublisherID() != f.PublisherID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == svc.Status() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		l := svc.Listing()
		if !strings.Contains(strings.ToLower(l.Name), term) &&
			!strings.Contains(strings.ToLower(l.Description), term) {
			return false
		}
	}
	return true
}

// Page applies offset and limit to a slice already in result order.
func Page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsStatus(statuses []RequestStatus, s RequestStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
