package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	"github.com/williamsiker/practicas/internal/domain/endpoint"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence"
)

var (
	publisher      = Actor{ID: 7, Role: RolePublisher}
	otherPublisher = Actor{ID: 8, Role: RolePublisher}
	admin          = Actor{ID: 99, Role: RoleAdmin}
)

var fastRetry = RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func validPayload(name string) RequestPayload {
	return RequestPayload{
		Name:          name,
		Description:   "Recepcion de documentos para " + name,
		URL:           "https://origen.gob.pe/api/expedientes",
		Method:        "post",
		Documentation: strings.Repeat("Documentacion del servicio. ", 5),
		MetricsConfig: map[string]any{"schedule": "24x7"},
		BasePrice:     decimal.RequireFromString("12.50"),
		Justification: strings.Repeat("Necesario para la atencion ciudadana. ", 2),
		TermsAccepted: true,
	}
}

type fixture struct {
	store     *persistence.MemoryStore
	events    *persistence.InMemoryEventPublisher
	allocator *endpoint.Allocator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := persistence.NewInMemoryEventPublisher()
	return &fixture{
		store:     persistence.NewMemoryStore(events),
		events:    events,
		allocator: endpoint.NewAllocator(0),
	}
}

func (f *fixture) submit(t *testing.T, actor Actor, name string) *catalog.ServiceRequest {
	t.Helper()
	out, err := NewSubmitRequestUseCase(f.store).Execute(context.Background(), SubmitRequestInput{
		Actor:   actor,
		Payload: validPayload(name),
	})
	require.NoError(t, err)
	return out.Request
}

func (f *fixture) review(store Store) *ReviewRequestUseCase {
	return NewReviewRequestUseCase(store, NewPromoter(f.allocator), fastRetry)
}

func (f *fixture) approve(t *testing.T, id int64) *catalog.Service {
	t.Helper()
	out, err := f.review(f.store).Execute(context.Background(), ReviewRequestInput{
		Actor:     admin,
		RequestID: id,
		Decision:  DecisionApprove,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Service)
	return out.Service
}

// faultyStore wraps a Store and injects failures into its units of work.
type faultyStore struct {
	Store

	mu sync.Mutex
	// failRequestSave makes every request Save inside a unit of work fail.
	failRequestSave error
	// commitFailures makes the next N commits fail with a retryable conflict.
	commitFailures int
	commits        int
}

func (s *faultyStore) Begin(ctx context.Context) (catalog.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyUnitOfWork{UnitOfWork: uow, store: s}, nil
}

type faultyUnitOfWork struct {
	catalog.UnitOfWork
	store *faultyStore
}

func (u *faultyUnitOfWork) Commit(ctx context.Context) error {
	u.store.mu.Lock()
	u.store.commits++
	fail := u.store.commitFailures > 0
	if fail {
		u.store.commitFailures--
	}
	u.store.mu.Unlock()

	if fail {
		return apperrors.RetryableConflict(errors.New("could not serialize access"), "test.Commit", "conflict")
	}
	return u.UnitOfWork.Commit(ctx)
}

func (u *faultyUnitOfWork) Requests() catalog.RequestRepository {
	return &faultyRequests{RequestRepository: u.UnitOfWork.Requests(), store: u.store}
}

type faultyRequests struct {
	catalog.RequestRepository
	store *faultyStore
}

func (r *faultyRequests) Save(ctx context.Context, req *catalog.ServiceRequest) error {
	if r.store.failRequestSave != nil {
		return r.store.failRequestSave
	}
	return r.RequestRepository.Save(ctx, req)
}
