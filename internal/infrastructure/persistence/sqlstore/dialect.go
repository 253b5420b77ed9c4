// Package sqlstore implements the catalog repositories on database/sql.
// It supports SQLite through modernc.org/sqlite and PostgreSQL through pgx.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Dialect describes the differences between the supported databases.
type Dialect struct {
	// Name is the configuration name of the dialect.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// MigrationRoot is the directory inside migrations.FS holding the schema.
	MigrationRoot string

	numbered bool
	txOpts   *sql.TxOptions
}

// Supported dialects.
var (
	SQLite = &Dialect{
		Name:          "sqlite",
		Driver:        "sqlite",
		MigrationRoot: "sqlite",
	}

	Postgres = &Dialect{
		Name:          "postgres",
		Driver:        "pgx",
		MigrationRoot: "postgres",
		numbered:      true,
		txOpts:        &sql.TxOptions{Isolation: sql.LevelSerializable},
	}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", name)
	}
}

// Rebind rewrites ? placeholders into the dialect's bind style.
func (d *Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SQLiteDSN builds a modernc DSN for path with WAL, foreign keys and a busy timeout.
// Transactions take the write lock up front so units of work serialize.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
}
