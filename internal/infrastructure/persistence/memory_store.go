// Package persistence provides infrastructure implementations for data persistence.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// MemoryStore keeps requests and services in memory as snapshots.
// Units of work are serialized: at most one is open at a time.
type MemoryStore struct {
	writer chan struct{}

	mu            sync.RWMutex
	requests      map[int64]catalog.RequestSnapshot
	services      map[int64]catalog.ServiceSnapshot
	lastRequestID int64
	lastServiceID int64

	eventPublisher catalog.EventPublisher
	logger         *slog.Logger
}

// NewMemoryStore creates an empty store. Events are published after each commit.
func NewMemoryStore(eventPublisher catalog.EventPublisher) *MemoryStore {
	return &MemoryStore{
		writer:         make(chan struct{}, 1),
		requests:       make(map[int64]catalog.RequestSnapshot),
		services:       make(map[int64]catalog.ServiceSnapshot),
		eventPublisher: eventPublisher,
		logger:         slog.Default().With("component", "memory_store"),
	}
}

// Begin starts a unit of work, waiting until no other one is open.
func (s *MemoryStore) Begin(ctx context.Context) (catalog.UnitOfWork, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s.writer <- struct{}{}:
	}

	return &MemoryUnitOfWork{
		store:           s,
		active:          true,
		pendingRequests: make(map[int64]catalog.RequestSnapshot),
		pendingServices: make(map[int64]catalog.ServiceSnapshot),
		deletedRequests: make(map[int64]struct{}),
		pendingEvents:   make([]catalog.DomainEvent, 0, 4),
	}, nil
}

// Requests returns a repository that reads committed state and writes in its own unit of work.
func (s *MemoryStore) Requests() catalog.RequestRepository {
	return &storeRequestRepository{store: s}
}

// Services returns a repository that reads committed state and writes in its own unit of work.
func (s *MemoryStore) Services() catalog.ServiceRepository {
	return &storeServiceRepository{store: s}
}

// Close releases nothing; it exists so every store satisfies the same lifecycle.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) nextRequestID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequestID++
	return s.lastRequestID
}

func (s *MemoryStore) nextServiceID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastServiceID++
	return s.lastServiceID
}

func (s *MemoryStore) requestSnapshots() map[int64]catalog.RequestSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]catalog.RequestSnapshot, len(s.requests))
	for id, snap := range s.requests {
		out[id] = snap
	}
	return out
}

func (s *MemoryStore) serviceSnapshots() map[int64]catalog.ServiceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]catalog.ServiceSnapshot, len(s.services))
	for id, snap := range s.services {
		out[id] = snap
	}
	return out
}

func requestNotFound(op string, id int64) error {
	return apperrors.NotFoundWrap(catalog.ErrRequestNotFound, op, fmt.Sprintf("service request %d not found", id))
}

func serviceNotFound(op string, id int64) error {
	return apperrors.NotFoundWrap(catalog.ErrServiceNotFound, op, fmt.Sprintf("service %d not found", id))
}

func sortRequests(items []*catalog.ServiceRequest) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt().Equal(items[j].CreatedAt()) {
			return items[i].ID() > items[j].ID()
		}
		return items[i].CreatedAt().After(items[j].CreatedAt())
	})
}

func sortServices(items []*catalog.Service) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt().Equal(items[j].CreatedAt()) {
			return items[i].ID() > items[j].ID()
		}
		return items[i].CreatedAt().After(items[j].CreatedAt())
	})
}

// storeRequestRepository is the non-transactional view of the store.
type storeRequestRepository struct {
	store *MemoryStore
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
	return r.view().FindByID(ctx, id)
}

func (r *storeRequestRepository) FindByName(ctx context.Context, name string) (*catalog.ServiceRequest, error) {
	return r.view().FindByName(ctx, name)
}

func (r *storeRequestRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return r.view().ExistsByName(ctx, name, excludeID)
}

func (r *storeRequestRepository) List(ctx context.Context, filter catalog.RequestFilter) ([]*catalog.ServiceRequest, error) {
	return r.view().List(ctx, filter)
}

func (r *storeRequestRepository) CountByStatus(ctx context.Context, publisherID int64) (map[catalog.RequestStatus]int, error) {
	return r.view().CountByStatus(ctx, publisherID)
}

// view reads committed state without taking the writer slot.
func (r *storeRequestRepository) view() *uowRequestRepository {
	return &uowRequestRepository{uow: newReadView(r.store)}
}

// storeServiceRepository is the non-transactional view of the store.
type storeServiceRepository struct {
	store *MemoryStore
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
	return r.view().FindByID(ctx, id)
}

func (r *storeServiceRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	return r.view().ExistsByName(ctx, name, excludeID)
}

func (r *storeServiceRepository) ExistsByURL(ctx context.Context, url string, excludeID int64) (bool, error) {
	return r.view().ExistsByURL(ctx, url, excludeID)
}

func (r *storeServiceRepository) List(ctx context.Context, filter catalog.ServiceFilter) ([]*catalog.Service, error) {
	return r.view().List(ctx, filter)
}

func (r *storeServiceRepository) view() *uowServiceRepository {
	return &uowServiceRepository{uow: newReadView(r.store)}
}

// Ensure the store views implement the repository interfaces.
var (
	_ catalog.UnitOfWorkFactory = (*MemoryStore)(nil)
	_ catalog.RequestRepository = (*storeRequestRepository)(nil)
	_ catalog.ServiceRepository = (*storeServiceRepository)(nil)
)
