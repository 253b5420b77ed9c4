package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// MemoryUnitOfWork implements catalog.UnitOfWork for the memory store.
// Writes are staged as snapshots and applied together on commit.
type MemoryUnitOfWork struct {
	store    *MemoryStore
	readOnly bool
	mu       sync.Mutex

	// Transaction state
	active          bool
	pendingRequests map[int64]catalog.RequestSnapshot
	pendingServices map[int64]catalog.ServiceSnapshot
	deletedRequests map[int64]struct{}
	pendingEvents   []catalog.DomainEvent
}

func newReadView(store *MemoryStore) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{
		store:           store,
		readOnly:        true,
		active:          true,
		pendingRequests: map[int64]catalog.RequestSnapshot{},
		pendingServices: map[int64]catalog.ServiceSnapshot{},
		deletedRequests: map[int64]struct{}{},
	}
}

// Commit applies all staged changes and publishes the collected events.
func (u *MemoryUnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active || u.readOnly {
		return apperrors.StateWrap(catalog.ErrTransactionInactive, "persistence.Commit", "cannot commit")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit aborted: %w", err)
	}

	u.store.mu.Lock()
	for id := range u.deletedRequests {
		delete(u.store.requests, id)
	}
	for id, snap := range u.pendingRequests {
		u.store.requests[id] = snap
	}
	for id, snap := range u.pendingServices {
		u.store.services[id] = snap
	}
	u.store.mu.Unlock()

	events := u.pendingEvents
	u.finish()

	// Publishing happens after the writer slot is released.
	if u.store.eventPublisher != nil && len(events) > 0 {
		if err := u.store.eventPublisher.Publish(ctx, events...); err != nil {
			u.store.logger.Warn("failed to publish domain events after commit",
				"error", err,
				"event_count", len(events))
		}
	}
	return nil
}

// Rollback discards all staged changes. It is a no-op after Commit.
func (u *MemoryUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active || u.readOnly {
		return nil
	}
	u.finish()
	return nil
}

func (u *MemoryUnitOfWork) finish() {
	u.active = false
	u.pendingRequests = nil
	u.pendingServices = nil
	u.deletedRequests = nil
	u.pendingEvents = nil
	<-u.store.writer
}

// Requests returns the request repository bound to this unit of work.
func (u *MemoryUnitOfWork) Requests() catalog.RequestRepository {
	return &uowRequestRepository{uow: u}
}

// Services returns the service repository bound to this unit of work.
func (u *MemoryUnitOfWork) Services() catalog.ServiceRepository {
	return &uowServiceRepository{uow: u}
}

// CollectEvents stages events for publication on commit.
func (u *MemoryUnitOfWork) CollectEvents(events ...catalog.DomainEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.active && !u.readOnly {
		u.pendingEvents = append(u.pendingEvents, events...)
	}
}

func (u *MemoryUnitOfWork) checkWritable(op string) error {
	if !u.active || u.readOnly {
		return apperrors.StateWrap(catalog.ErrTransactionInactive, op, "unit of work is not writable")
	}
	return nil
}

func (u *MemoryUnitOfWork) checkActive(op string) error {
	if !u.active {
		return apperrors.StateWrap(catalog.ErrTransactionInactive, op, "unit of work is not active")
	}
	return nil
}

// mergedRequests returns committed requests overlaid with staged changes.
func (u *MemoryUnitOfWork) mergedRequests() map[int64]catalog.RequestSnapshot {
	merged := u.store.requestSnapshots()
	for id := range u.deletedRequests {
		delete(merged, id)
	}
	for id, snap := range u.pendingRequests {
		merged[id] = snap
	}
	return merged
}

// mergedServices returns committed services overlaid with staged changes.
func (u *MemoryUnitOfWork) mergedServices() map[int64]catalog.ServiceSnapshot {
	merged := u.store.serviceSnapshots()
	for id, snap := range u.pendingServices {
		merged[id] = snap
	}
	return merged
}

// uowRequestRepository implements catalog.RequestRepository inside a unit of work.
type uowRequestRepository struct {
	uow *MemoryUnitOfWork
}

// Create assigns the next id and stages the request.
func (r *uowRequestRepository) Create(ctx context.Context, req *catalog.ServiceRequest) error {
	const op = "persistence.Requests.Create"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkWritable(op); err != nil {
		return err
	}
	if req.ID() != 0 {
		return apperrors.Internal(op, fmt.Sprintf("request already has id %d", req.ID()))
	}
	if r.nameTaken(req.Name(), 0) {
		return duplicateRequestName(op, req.Name())
	}

	if err := req.AssignID(r.uow.store.nextRequestID()); err != nil {
		return err
	}
	r.stage(req)
	return nil
}

// Save stages the current state of an existing request.
func (r *uowRequestRepository) Save(ctx context.Context, req *catalog.ServiceRequest) error {
	const op = "persistence.Requests.Save"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkWritable(op); err != nil {
		return err
	}
	if _, ok := r.uow.mergedRequests()[req.ID()]; !ok {
		return requestNotFound(op, req.ID())
	}
	if r.nameTaken(req.Name(), req.ID()) {
		return duplicateRequestName(op, req.Name())
	}
	r.stage(req)
	return nil
}

func (r *uowRequestRepository) stage(req *catalog.ServiceRequest) {
	delete(r.uow.deletedRequests, req.ID())
	r.uow.pendingRequests[req.ID()] = req.Snapshot()
	r.uow.pendingEvents = append(r.uow.pendingEvents, req.DomainEvents()...)
	req.ClearDomainEvents()
}

func (r *uowRequestRepository) nameTaken(name string, excludeID int64) bool {
	for id, snap := range r.uow.mergedRequests() {
		if id != excludeID && snap.Details.Name == name {
			return true
		}
	}
	return false
}

// Delete stages removal of a request.
func (r *uowRequestRepository) Delete(ctx context.Context, id int64) error {
	const op = "persistence.Requests.Delete"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkWritable(op); err != nil {
		return err
	}
	if _, ok := r.uow.mergedRequests()[id]; !ok {
		return requestNotFound(op, id)
	}
	delete(r.uow.pendingRequests, id)
	r.uow.deletedRequests[id] = struct{}{}
	return nil
}

// FindByID retrieves a request, checking staged changes first.
func (r *uowRequestRepository) FindByID(ctx context.Context, id int64) (*catalog.ServiceRequest, error) {
	const op = "persistence.Requests.FindByID"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive(op); err != nil {
		return nil, err
	}
	snap, ok := r.uow.mergedRequests()[id]
	if !ok {
		return nil, requestNotFound(op, id)
	}
	return catalog.ReconstructServiceRequest(snap), nil
}

// FindByName retrieves a request by exact name.
func (r *uowRequestRepository) FindByName(ctx context.Context, name string) (*catalog.ServiceRequest, error) {
	const op = "persistence.Requests.FindByName"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive(op); err != nil {
		return nil, err
	}
	for _, snap := range r.uow.mergedRequests() {
		if snap.Details.Name == name {
			return catalog.ReconstructServiceRequest(snap), nil
		}
	}
	return nil, apperrors.NotFoundWrap(catalog.ErrRequestNotFound, op, fmt.Sprintf("service request %q not found", name))
}

// ExistsByName reports whether another request uses name.
func (r *uowRequestRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive("persistence.Requests.ExistsByName"); err != nil {
		return false, err
	}
	return r.nameTaken(strings.TrimSpace(name), excludeID), nil
}

// List retrieves requests matching the filter, newest first.
func (r *uowRequestRepository) List(ctx context.Context, filter catalog.RequestFilter) ([]*catalog.ServiceRequest, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive("persistence.Requests.List"); err != nil {
		return nil, err
	}

	result := make([]*catalog.ServiceRequest, 0)
	for _, snap := range r.uow.mergedRequests() {
		req := catalog.ReconstructServiceRequest(snap)
		if filter.Matches(req) {
			result = append(result, req)
		}
	}
	sortRequests(result)
	return catalog.Page(result, filter.Offset, filter.Limit), nil
}

// CountByStatus counts requests per status.
func (r *uowRequestRepository) CountByStatus(ctx context.Context, publisherID int64) (map[catalog.RequestStatus]int, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive("persistence.Requests.CountByStatus"); err != nil {
		return nil, err
	}

	counts := make(map[catalog.RequestStatus]int, 4)
	for _, snap := range r.uow.mergedRequests() {
		if publisherID > 0 && snap.PublisherID != publisherID {
			continue
		}
		counts[snap.Status]++
	}
	return counts, nil
}

// uowServiceRepository implements catalog.ServiceRepository inside a unit of work.
type uowServiceRepository struct {
	uow *MemoryUnitOfWork
}

// Create assigns the next id and stages the service.
func (r *uowServiceRepository) Create(ctx context.Context, svc *catalog.Service) error {
	const op = "persistence.Services.Create"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkWritable(op); err != nil {
		return err
	}
	if svc.ID() != 0 {
		return apperrors.Internal(op, fmt.Sprintf("service already has id %d", svc.ID()))
	}
	if err := r.checkUnique(op, svc, 0); err != nil {
		return err
	}

	if err := svc.AssignID(r.uow.store.nextServiceID()); err != nil {
		return err
	}
	r.stage(svc)
	return nil
}

// Save stages the current state of an existing service.
func (r *uowServiceRepository) Save(ctx context.Context, svc *catalog.Service) error {
	const op = "persistence.Services.Save"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkWritable(op); err != nil {
		return err
	}
	if _, ok := r.uow.mergedServices()[svc.ID()]; !ok {
		return serviceNotFound(op, svc.ID())
	}
	if err := r.checkUnique(op, svc, svc.ID()); err != nil {
		return err
	}
	r.stage(svc)
	return nil
}

func (r *uowServiceRepository) stage(svc *catalog.Service) {
	r.uow.pendingServices[svc.ID()] = svc.Snapshot()
	r.uow.pendingEvents = append(r.uow.pendingEvents, svc.DomainEvents()...)
	svc.ClearDomainEvents()
}

func (r *uowServiceRepository) checkUnique(op string, svc *catalog.Service, excludeID int64) error {
	for id, snap := range r.uow.mergedServices() {
		if id == excludeID {
			continue
		}
		if snap.Listing.Name == svc.Name() {
			return apperrors.ConflictWrap(catalog.ErrDuplicateName, op,
				fmt.Sprintf("a service named %q already exists", svc.Name()))
		}
		if svc.URL() != "" && snap.Listing.URL == svc.URL() {
			return apperrors.ConflictWrap(catalog.ErrDuplicateURL, op,
				fmt.Sprintf("endpoint %s is already assigned to service %d", svc.URL(), id))
		}
	}
	return nil
}

// FindByID retrieves a service, checking staged changes first.
func (r *uowServiceRepository) FindByID(ctx context.Context, id int64) (*catalog.Service, error) {
	const op = "persistence.Services.FindByID"
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive(op); err != nil {
		return nil, err
	}
	snap, ok := r.uow.mergedServices()[id]
	if !ok {
		return nil, serviceNotFound(op, id)
	}
	return catalog.ReconstructService(snap), nil
}

// ExistsByName reports whether another service uses name.
func (r *uowServiceRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive("persistence.Services.ExistsByName"); err != nil {
		return false, err
	}
	name = strings.TrimSpace(name)
	for id, snap := range r.uow.mergedServices() {
		if id != excludeID && snap.Listing.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByURL reports whether another service holds url.
func (r *uowServiceRepository) ExistsByURL(ctx context.Context, url string, excludeID int64) (bool, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive("persistence.Services.ExistsByURL"); err != nil {
		return false, err
	}
	for id, snap := range r.uow.mergedServices() {
		if id != excludeID && snap.Listing.URL == url {
			return true, nil
		}
	}
	return false, nil
}

// List retrieves services matching the filter, newest first.
func (r *uowServiceRepository) List(ctx context.Context, filter catalog.ServiceFilter) ([]*catalog.Service, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkActive("persistence.Services.List"); err != nil {
		return nil, err
	}

	result := make([]*catalog.Service, 0)
	for _, snap := range r.uow.mergedServices() {
		svc := catalog.ReconstructService(snap)
		if filter.Matches(svc) {
			result = append(result, svc)
		}
	}
	sortServices(result)
	return catalog.Page(result, filter.Offset, filter.Limit), nil
}

func duplicateRequestName(op, name string) error {
	return apperrors.ConflictWrap(catalog.ErrDuplicateName, op,
		fmt.Sprintf("a service request named %q already exists", name))
}

// Ensure MemoryUnitOfWork implements the catalog.UnitOfWork interface.
var _ catalog.UnitOfWork = (*MemoryUnitOfWork)(nil)
