package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres, nil), mock
}

func TestPostgres_InsertErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantKind  apperrors.Kind
		wantErr   error
		retryable bool
	}{
		{
			name:     "duplicate name",
			pgErr:    &pgconn.PgError{Code: "23505", ConstraintName: "ux_service_requests_name"},
			wantKind: apperrors.KindConflict,
			wantErr:  catalog.ErrDuplicateName,
		},
		{
			name:      "duplicate url",
			pgErr:     &pgconn.PgError{Code: "23505", ConstraintName: "ux_enhanced_services_url"},
			wantKind:  apperrors.KindConflict,
			wantErr:   catalog.ErrDuplicateURL,
			retryable: true,
		},
		{
			name:      "serialization failure",
			pgErr:     &pgconn.PgError{Code: "40001"},
			wantKind:  apperrors.KindConflict,
			retryable: true,
		},
		{
			name:      "deadlock",
			pgErr:     &pgconn.PgError{Code: "40P01"},
			wantKind:  apperrors.KindConflict,
			retryable: true,
		},
		{
			name:     "other",
			pgErr:    &pgconn.PgError{Code: "42P01"},
			wantKind: apperrors.KindStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectQuery(`INSERT INTO service_requests .* RETURNING id`).WillReturnError(tt.pgErr)
			mock.ExpectRollback()

			err := store.Requests().Create(context.Background(), newRequest(t, 7, "consulta"))
			if got := apperrors.GetKind(err); got != tt.wantKind {
				t.Fatalf("kind = %v, want %v (err = %v)", got, tt.wantKind, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if apperrors.IsRetryableConflict(err) != tt.retryable {
				t.Errorf("IsRetryableConflict() = %v, want %v", !tt.retryable, tt.retryable)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestPostgres_CommitSerializationFailureIsRetryable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})

	uow, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	err = uow.Commit(context.Background())
	if !apperrors.IsRetryableConflict(err) {
		t.Errorf("Commit() error = %v, want retryable conflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_FindByIDUsesNumberedPlaceholders(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM service_requests WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(requestColumnNames))

	_, err := store.Requests().FindByID(context.Background(), 42)
	if !errors.Is(err, catalog.ErrRequestNotFound) {
		t.Errorf("FindByID() error = %v, want ErrRequestNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_SaveMissingRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE enhanced_services SET .* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	req := newRequest(t, 7, "huerfano")
	if err := req.AssignID(5); err != nil {
		t.Fatalf("AssignID() error = %v", err)
	}
	svc, err := catalog.NewServiceFromRequest(req, catalog.PromotionOptions{ApproverID: 1})
	if err != nil {
		t.Fatalf("NewServiceFromRequest() error = %v", err)
	}
	if err := svc.AssignID(77); err != nil {
		t.Fatalf("AssignID() error = %v", err)
	}

	err = store.Services().Save(context.Background(), svc)
	if !errors.Is(err, catalog.ErrServiceNotFound) {
		t.Errorf("Save() error = %v, want ErrServiceNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y IN (?, ?)"
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("SQLite.Rebind() = %q", got)
	}
	want := "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)"
	if got := Postgres.Rebind(q); got != want {
		t.Errorf("Postgres.Rebind() = %q, want %q", got, want)
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		in      string
		want    *Dialect
		wantErr bool
	}{
		{"sqlite", SQLite, false},
		{"SQLite3", SQLite, false},
		{"postgres", Postgres, false},
		{"pgx", Postgres, false},
		{"mysql", nil, true},
	}
	for _, tt := range tests {
		got, err := DialectFor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("DialectFor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DialectFor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	got := SQLiteDSN("/tmp/catalog.db")
	if got == "/tmp/catalog.db" {
		t.Fatal("SQLiteDSN() did not add pragmas")
	}
	if SQLiteDSN("file.db?mode=ro") != "file.db?mode=ro" {
		t.Error("SQLiteDSN() should keep an explicit query string")
	}
}
