package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

func newRequest(t *testing.T, name string) *catalog.ServiceRequest {
	t.Helper()
	req, err := catalog.NewServiceRequest(7, catalog.RequestDetails{
		Listing: catalog.Listing{
			Name:        name,
			Description: "descripcion de " + name,
			URL:         "https://gob.pe/" + name,
			Method:      catalog.MethodPost,
		},
		TermsAccepted: true,
	})
	if err != nil {
		t.Fatalf("NewServiceRequest() error = %v", err)
	}
	return req
}

func TestMemoryStore_CommitAndFind(t *testing.T) {
	ctx := context.Background()
	publisher := NewInMemoryEventPublisher()
	store := NewMemoryStore(publisher)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	req := newRequest(t, "consulta")
	if err := uow.Requests().Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if req.ID() != 1 {
		t.Errorf("ID() = %d, want 1", req.ID())
	}

	// Staged writes are visible inside the unit of work only.
	if _, err := uow.Requests().FindByID(ctx, req.ID()); err != nil {
		t.Errorf("FindByID() inside uow error = %v", err)
	}
	if _, err := store.Requests().FindByID(ctx, req.ID()); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("FindByID() before commit error = %v, want not found", err)
	}
	if len(publisher.GetEvents()) != 0 {
		t.Error("events published before commit")
	}

	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	found, err := store.Requests().FindByID(ctx, req.ID())
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.Name() != "consulta" || found.Status() != catalog.RequestPendingReview {
		t.Errorf("found = %q %v", found.Name(), found.Status())
	}
	if got := publisher.GetEventsByType("service_request.submitted"); len(got) != 1 {
		t.Errorf("submitted events = %d, want 1", len(got))
	}

	if err := uow.Commit(ctx); !errors.Is(err, catalog.ErrTransactionInactive) {
		t.Errorf("second Commit() error = %v, want ErrTransactionInactive", err)
	}
}

func TestMemoryStore_Rollback(t *testing.T) {
	ctx := context.Background()
	publisher := NewInMemoryEventPublisher()
	store := NewMemoryStore(publisher)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	req := newRequest(t, "descartada")
	if err := uow.Requests().Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if _, err := store.Requests().FindByID(ctx, req.ID()); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("FindByID() after rollback error = %v, want not found", err)
	}
	if len(publisher.GetEvents()) != 0 {
		t.Error("rolled back events were published")
	}
	if err := uow.Requests().Create(ctx, newRequest(t, "tarde")); err == nil {
		t.Error("Create() after rollback should fail")
	}

	// The writer slot is free again.
	next, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() after rollback error = %v", err)
	}
	_ = next.Rollback()
}

func TestMemoryStore_RequestUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	repo := store.Requests()

	if err := repo.Create(ctx, newRequest(t, "duplicado")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, newRequest(t, "duplicado"))
	if !apperrors.IsKind(err, apperrors.KindConflict) || !errors.Is(err, catalog.ErrDuplicateName) {
		t.Errorf("duplicate Create() error = %v, want conflict", err)
	}

	exists, err := repo.ExistsByName(ctx, "duplicado", 0)
	if err != nil || !exists {
		t.Errorf("ExistsByName() = %v, %v", exists, err)
	}
	exists, err = repo.ExistsByName(ctx, "duplicado", 1)
	if err != nil || exists {
		t.Errorf("ExistsByName(exclude self) = %v, %v", exists, err)
	}
}

func TestMemoryStore_ServiceUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	promote := func(name string) *catalog.Service {
		req := newRequest(t, name)
		if err := store.Requests().Create(ctx, req); err != nil {
			t.Fatalf("Create(request) error = %v", err)
		}
		svc, err := catalog.NewServiceFromRequest(req, catalog.PromotionOptions{ApproverID: 1})
		if err != nil {
			t.Fatalf("NewServiceFromRequest() error = %v", err)
		}
		return svc
	}

	first := promote("uno")
	if err := store.Services().Create(ctx, first); err != nil {
		t.Fatalf("Create(service) error = %v", err)
	}
	first.ApplyEndpoint(catalog.EndpointAssignment{Base: "comun", Slug: "canal"})
	if err := store.Services().Save(ctx, first); err != nil {
		t.Fatalf("Save(service) error = %v", err)
	}

	second := promote("dos")
	if err := store.Services().Create(ctx, second); err != nil {
		t.Fatalf("Create(second) error = %v", err)
	}
	second.ApplyEndpoint(catalog.EndpointAssignment{Base: "comun", Slug: "canal"})
	err := store.Services().Save(ctx, second)
	if !errors.Is(err, catalog.ErrDuplicateURL) {
		t.Errorf("Save(colliding url) error = %v, want ErrDuplicateURL", err)
	}

	taken, err := store.Services().ExistsByURL(ctx, "/comun/canal", second.ID())
	if err != nil || !taken {
		t.Errorf("ExistsByURL() = %v, %v", taken, err)
	}
	taken, err = store.Services().ExistsByURL(ctx, "/comun/canal", first.ID())
	if err != nil || taken {
		t.Errorf("ExistsByURL(exclude owner) = %v, %v", taken, err)
	}
}

func TestMemoryStore_ListAndCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	repo := store.Requests()

	for _, name := range []string{"alfa", "beta", "gamma"} {
		if err := repo.Create(ctx, newRequest(t, name)); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}
	beta, err := repo.FindByName(ctx, "beta")
	if err != nil {
		t.Fatalf("FindByName() error = %v", err)
	}
	if err := beta.Reject(9, "fuera de alcance"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if err := repo.Save(ctx, beta); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	all, err := repo.List(ctx, catalog.RequestFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].Name() != "gamma" || all[2].Name() != "alfa" {
		t.Errorf("List() order = %v", names(all))
	}

	pending, err := repo.List(ctx, catalog.RequestFilter{Statuses: []catalog.RequestStatus{catalog.RequestPendingReview}, Limit: 1})
	if err != nil {
		t.Fatalf("List(pending) error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name() != "gamma" {
		t.Errorf("List(pending, limit 1) = %v", names(pending))
	}

	counts, err := repo.CountByStatus(ctx, 0)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[catalog.RequestPendingReview] != 2 || counts[catalog.RequestRejected] != 1 {
		t.Errorf("CountByStatus() = %v", counts)
	}
	counts, _ = repo.CountByStatus(ctx, 999)
	if len(counts) != 0 {
		t.Errorf("CountByStatus(other publisher) = %v", counts)
	}

	if err := repo.Delete(ctx, beta.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.FindByID(ctx, beta.ID()); !errors.Is(err, catalog.ErrRequestNotFound) {
		t.Errorf("FindByID() after delete error = %v", err)
	}
}

func TestMemoryStore_SerializesUnitsOfWork(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := catalog.WithTransaction(ctx, store, func(uow catalog.UnitOfWork) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("WithTransaction() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent units of work = %d, want 1", maxInside)
	}
}

func TestMemoryStore_BeginHonorsContext(t *testing.T) {
	store := NewMemoryStore(nil)
	held, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer held.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := store.Begin(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Begin() while held error = %v, want deadline exceeded", err)
	}
}

func names(reqs []*catalog.ServiceRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Name()
	}
	return out
}
