package sqlstore

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// mapError converts driver errors into application errors.
// Unique violations become conflicts naming the violated field; busy and
// serialization failures become retryable conflicts. A url violation is
// retryable as well, since a fresh allocation picks the next suffix.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFoundWrap(err, op, "record not found")
	}

	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "url") {
			return apperrors.RetryableConflict(catalog.ErrDuplicateURL, op, "managed endpoint already in use").
				WithDetail("constraint", constraint)
		}
		return apperrors.ConflictWrap(catalog.ErrDuplicateName, op, "name already in use").
			WithDetail("constraint", constraint)
	}

	if isTransient(err) {
		return apperrors.RetryableConflict(err, op, "concurrent write conflict")
	}

	return apperrors.StorageWrap(err, op, "database error")
}

// uniqueViolation reports whether err is a unique constraint violation and
// returns the constraint or column that was violated.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return pgErr.ConstraintName, true
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		default:
			return "", false
		}
		// modernc reports "UNIQUE constraint failed: table.column"
		msg := sqliteErr.Error()
		if idx := strings.LastIndex(msg, "constraint failed:"); idx >= 0 {
			return strings.TrimSpace(msg[idx+len("constraint failed:"):]), true
		}
		return msg, true
	}
	return "", false
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
