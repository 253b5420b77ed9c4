package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	"github.com/williamsiker/practicas/internal/domain/endpoint"
	apperrors "github.com/williamsiker/practicas/internal/errors"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence"
	"github.com/williamsiker/practicas/internal/infrastructure/persistence/sqlstore/migrations"
)

func openTestStore(t *testing.T) (*Store, *persistence.InMemoryEventPublisher) {
	t.Helper()
	publisher := persistence.NewInMemoryEventPublisher()
	store, err := Open(context.Background(), Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	}, publisher)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, publisher
}

func newRequest(t *testing.T, publisherID int64, name string) *catalog.ServiceRequest {
	t.Helper()
	req, err := catalog.NewServiceRequest(publisherID, catalog.RequestDetails{
		Listing: catalog.Listing{
			Name:          name,
			Description:   "descripcion de " + name,
			URL:           "https://origen.gob.pe/" + name,
			Method:        catalog.MethodPost,
			MetricsConfig: catalog.JSONMap{"schedule": "24x7"},
			Parameters:    catalog.JSONMap{"dni": map[string]any{"type": "string"}},
			BasePrice:     decimal.RequireFromString("12.50"),
		},
		Justification: "atencion ciudadana",
		TermsAccepted: true,
	})
	if err != nil {
		t.Fatalf("NewServiceRequest() error = %v", err)
	}
	return req
}

func TestStore_RequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, publisher := openTestStore(t)

	req := newRequest(t, 7, "consulta-ruc")
	if err := store.Requests().Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if req.ID() <= 0 {
		t.Fatalf("ID() = %d, want positive", req.ID())
	}
	if got := len(publisher.GetEventsByType("service_request.submitted")); got != 1 {
		t.Errorf("submitted events = %d, want 1", got)
	}

	got, err := store.Requests().FindByID(ctx, req.ID())
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	d := got.Details()
	if d.Name != "consulta-ruc" || d.Method != catalog.MethodPost {
		t.Errorf("details = %+v", d)
	}
	if !d.BasePrice.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("BasePrice = %s, want 12.5", d.BasePrice)
	}
	if d.MetricsConfig.String("schedule") != "24x7" {
		t.Errorf("MetricsConfig = %v", d.MetricsConfig)
	}
	if d.Parameters.Map("dni").String("type") != "string" {
		t.Errorf("Parameters = %v", d.Parameters)
	}
	if d.AuthConfig != nil {
		t.Errorf("AuthConfig = %v, want nil", d.AuthConfig)
	}
	if got.Status() != catalog.RequestPendingReview {
		t.Errorf("Status() = %s", got.Status())
	}
	if got.TermsAcceptedAt() == nil {
		t.Error("TermsAcceptedAt() = nil")
	}
	if !got.CreatedAt().Equal(req.CreatedAt().Truncate(1e6)) {
		t.Errorf("CreatedAt() = %v, want %v", got.CreatedAt(), req.CreatedAt())
	}

	byName, err := store.Requests().FindByName(ctx, "consulta-ruc")
	if err != nil || byName.ID() != req.ID() {
		t.Errorf("FindByName() = %v, %v", byName, err)
	}
	if _, err := store.Requests().FindByID(ctx, 999); !errors.Is(err, catalog.ErrRequestNotFound) {
		t.Errorf("FindByID(999) error = %v, want ErrRequestNotFound", err)
	}
}

func TestStore_OpaqueJSONKeepsLargeIntegers(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	codes, err := catalog.ParseJSONMap([]byte(`{"E1":9007199254740993,"E2":{"retry_after":1.25}}`))
	if err != nil {
		t.Fatalf("ParseJSONMap() error = %v", err)
	}
	req, err := catalog.NewServiceRequest(7, catalog.RequestDetails{
		Listing: catalog.Listing{
			Name:        "padron",
			Description: "consulta de padron",
			URL:         "https://origen.gob.pe/padron",
			Method:      catalog.MethodGet,
			ErrorCodes:  codes,
		},
		TermsAccepted: true,
	})
	if err != nil {
		t.Fatalf("NewServiceRequest() error = %v", err)
	}
	if err := store.Requests().Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Requests().FindByID(ctx, req.ID())
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	data, err := catalog.EncodeJSONMap(got.Details().ErrorCodes)
	if err != nil {
		t.Fatalf("EncodeJSONMap() error = %v", err)
	}
	if want := `{"E1":9007199254740993,"E2":{"retry_after":1.25}}`; string(data) != want {
		t.Errorf("error_codes = %s, want %s", data, want)
	}
}

func TestStore_DuplicateURLIsRetryable(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	promote := func(name string) *catalog.Service {
		t.Helper()
		req := newRequest(t, 7, name)
		if err := store.Requests().Create(ctx, req); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		svc, err := catalog.NewServiceFromRequest(req, catalog.PromotionOptions{ApproverID: 99})
		if err != nil {
			t.Fatalf("NewServiceFromRequest() error = %v", err)
		}
		if err := store.Services().Create(ctx, svc); err != nil {
			t.Fatalf("Services().Create() error = %v", err)
		}
		return svc
	}

	first := promote("canal-a")
	taken := catalog.EndpointAssignment{Base: "servicio-comun", Slug: "canal", Endpoint: "/servicio-comun/canal"}
	first.ApplyEndpoint(taken)
	if err := store.Services().Save(ctx, first); err != nil {
		t.Fatalf("Save(first) error = %v", err)
	}

	second := promote("canal-b")
	second.ApplyEndpoint(taken)
	err := store.Services().Save(ctx, second)
	if !errors.Is(err, catalog.ErrDuplicateURL) {
		t.Fatalf("Save(second) error = %v, want ErrDuplicateURL", err)
	}
	if !apperrors.IsRetryableConflict(err) {
		t.Errorf("url conflict should be retryable: %v", err)
	}
}

func TestStore_DuplicateRequestName(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	if err := store.Requests().Create(ctx, newRequest(t, 7, "padron")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := store.Requests().Create(ctx, newRequest(t, 8, "padron"))
	if !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("Create() duplicate error = %v, want conflict", err)
	}
	if !errors.Is(err, catalog.ErrDuplicateName) {
		t.Errorf("Create() duplicate error = %v, want ErrDuplicateName", err)
	}
	if apperrors.IsRetryableConflict(err) {
		t.Error("duplicate name must not be retryable")
	}

	taken, err := store.Requests().ExistsByName(ctx, "padron", 0)
	if err != nil || !taken {
		t.Errorf("ExistsByName() = %v, %v; want true", taken, err)
	}
}

func TestStore_PromotionInOneTransaction(t *testing.T) {
	ctx := context.Background()
	store, publisher := openTestStore(t)

	req := newRequest(t, 7, "Mesa de partes")
	if err := store.Requests().Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	publisher.ClearEvents()

	var svcID int64
	err := catalog.WithTransaction(ctx, store, func(uow catalog.UnitOfWork) error {
		r, err := uow.Requests().FindByID(ctx, req.ID())
		if err != nil {
			return err
		}
		svc, err := catalog.NewServiceFromRequest(r, catalog.PromotionOptions{ApproverID: 99})
		if err != nil {
			return err
		}
		if err := uow.Services().Create(ctx, svc); err != nil {
			return err
		}
		if _, err := endpoint.NewAllocator(0).Assign(ctx, svc, uow.Services()); err != nil {
			return err
		}
		if err := uow.Services().Save(ctx, svc); err != nil {
			return err
		}
		if err := r.Approve(99, svc.ID(), "ok"); err != nil {
			return err
		}
		svcID = svc.ID()
		return uow.Requests().Save(ctx, r)
	})
	if err != nil {
		t.Fatalf("promotion error = %v", err)
	}

	svc, err := store.Services().FindByID(ctx, svcID)
	if err != nil {
		t.Fatalf("Services().FindByID() error = %v", err)
	}
	want := "/servicio" + strconv.FormatInt(svcID, 10) + "/mesa-de-partes"
	if svc.URL() != want {
		t.Errorf("URL() = %q, want %q", svc.URL(), want)
	}
	cfg := svc.OperationalConfig()
	if cfg.String(catalog.KeyOriginalURL) != "https://origen.gob.pe/Mesa de partes" {
		t.Errorf("original_url = %q", cfg.String(catalog.KeyOriginalURL))
	}
	if cfg.String(catalog.KeySchedule) != "24x7" {
		t.Errorf("schedule = %q", cfg.String(catalog.KeySchedule))
	}
	if svc.SourceRequestID() == nil || *svc.SourceRequestID() != req.ID() {
		t.Errorf("SourceRequestID() = %v", svc.SourceRequestID())
	}

	approved, err := store.Requests().FindByID(ctx, req.ID())
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if approved.Status() != catalog.RequestApproved {
		t.Errorf("request status = %s, want approved", approved.Status())
	}
	if approved.ApprovedServiceID() == nil || *approved.ApprovedServiceID() != svcID {
		t.Errorf("ApprovedServiceID() = %v, want %d", approved.ApprovedServiceID(), svcID)
	}

	for _, name := range []string{"service.created", "service.endpoint_assigned", "service_request.approved"} {
		if len(publisher.GetEventsByType(name)) != 1 {
			t.Errorf("events %q = %d, want 1", name, len(publisher.GetEventsByType(name)))
		}
	}

	taken, err := store.Services().ExistsByURL(ctx, want, 0)
	if err != nil || !taken {
		t.Errorf("ExistsByURL() = %v, %v", taken, err)
	}
	taken, err = store.Services().ExistsByURL(ctx, want, svcID)
	if err != nil || taken {
		t.Errorf("ExistsByURL() excluding self = %v, %v", taken, err)
	}
}

func TestStore_RollbackDiscardsWritesAndEvents(t *testing.T) {
	ctx := context.Background()
	store, publisher := openTestStore(t)

	failure := errors.New("boom")
	err := catalog.WithTransaction(ctx, store, func(uow catalog.UnitOfWork) error {
		if err := uow.Requests().Create(ctx, newRequest(t, 7, "temporal")); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("WithTransaction() error = %v, want boom", err)
	}

	if _, err := store.Requests().FindByName(ctx, "temporal"); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("FindByName() after rollback error = %v, want not found", err)
	}
	if len(publisher.GetEvents()) != 0 {
		t.Errorf("events after rollback = %d, want 0", len(publisher.GetEvents()))
	}
}

func TestStore_UnitOfWorkInactiveAfterCommit(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := uow.Commit(ctx); !errors.Is(err, catalog.ErrTransactionInactive) {
		t.Errorf("second Commit() error = %v, want ErrTransactionInactive", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Errorf("Rollback() after commit error = %v", err)
	}
	if err := uow.Requests().Create(ctx, newRequest(t, 7, "tarde")); !errors.Is(err, catalog.ErrTransactionInactive) {
		t.Errorf("Create() after commit error = %v, want ErrTransactionInactive", err)
	}
}

func TestStore_ListCountDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	names := []string{"alpha", "beta", "gamma", "delta_100%"}
	var ids []int64
	for i, name := range names {
		publisher := int64(7)
		if i == 3 {
			publisher = 8
		}
		req := newRequest(t, publisher, name)
		if err := store.Requests().Create(ctx, req); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		ids = append(ids, req.ID())
	}

	// Reject beta so the status filter has something to select.
	err := catalog.WithTransaction(ctx, store, func(uow catalog.UnitOfWork) error {
		r, err := uow.Requests().FindByID(ctx, ids[1])
		if err != nil {
			return err
		}
		if err := r.Reject(99, "incompleto"); err != nil {
			return err
		}
		return uow.Requests().Save(ctx, r)
	})
	if err != nil {
		t.Fatalf("reject error = %v", err)
	}

	tests := []struct {
		name   string
		filter catalog.RequestFilter
		want   []int64
	}{
		{"all newest first", catalog.RequestFilter{}, []int64{ids[3], ids[2], ids[1], ids[0]}},
		{"publisher", catalog.RequestFilter{PublisherID: 8}, []int64{ids[3]}},
		{"status", catalog.RequestFilter{Statuses: []catalog.RequestStatus{catalog.RequestRejected}}, []int64{ids[1]}},
		{"search escapes like", catalog.RequestFilter{Search: "100%"}, []int64{ids[3]}},
		{"search description", catalog.RequestFilter{Search: "DESCRIPCION DE GAM"}, []int64{ids[2]}},
		{"limit offset", catalog.RequestFilter{Limit: 2, Offset: 1}, []int64{ids[2], ids[1]}},
		{"offset only", catalog.RequestFilter{Offset: 3}, []int64{ids[0]}},
		{"offset beyond", catalog.RequestFilter{Offset: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Requests().List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID() != tt.want[i] {
					t.Errorf("List()[%d] = %d, want %d", i, got[i].ID(), tt.want[i])
				}
			}
		})
	}

	counts, err := store.Requests().CountByStatus(ctx, 7)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[catalog.RequestPendingReview] != 2 || counts[catalog.RequestRejected] != 1 {
		t.Errorf("CountByStatus(7) = %v", counts)
	}

	if err := store.Requests().Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Requests().Delete(ctx, ids[0]); !errors.Is(err, catalog.ErrRequestNotFound) {
		t.Errorf("second Delete() error = %v, want ErrRequestNotFound", err)
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	if err := ApplyMigrations(ctx, store.DB(), store.Dialect(), migrations.FS, store.Dialect().MigrationRoot); err != nil {
		t.Fatalf("second ApplyMigrations() error = %v", err)
	}
	var n int
	if err := store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	got := ExtractUpMigration(content)
	if got != "\nCREATE TABLE a (id INT);\n" {
		t.Errorf("ExtractUpMigration() = %q", got)
	}
	if ExtractUpMigration("SELECT 1;") != "SELECT 1;" {
		t.Error("content without markers should be returned unchanged")
	}
}
