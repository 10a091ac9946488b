package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/HurleySk/robo-birder/internal/errs"
	"github.com/HurleySk/robo-birder/internal/infra/config"
)

const (
	defaultMaxOpenConns    = 4
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	sqliteBusyTimeoutMs = 5000
)

// Dialect captures the SQL differences between the supported backends.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectMySQL
	DialectPostgres
)

// Rebind rewrites '?' placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open creates a read-only connection pool for the BirdNET-Go database.
// The pool is lazy: connectivity problems surface on the first query.
func Open(cfg config.BirdNETConfig) (*sql.DB, Dialect, error) {
	driverName, dsn, dialect, err := dataSource(cfg)
	if err != nil {
		return nil, 0, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, 0, errs.Config(err, "failed to open %s database", cfg.Driver)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	return db, dialect, nil
}

func dataSource(cfg config.BirdNETConfig) (driverName, dsn string, dialect Dialect, err error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		// BirdNET-Go owns the file; open it read-only and wait out its write locks.
		return "sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", sqlitePath(cfg.Database), sqliteBusyTimeoutMs), DialectSQLite, nil
	case config.DriverMySQL:
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", "", 0, errs.Config(err, "invalid mysql dsn")
		}
		// begin_time must arrive as time.Time, not []byte.
		mc.ParseTime = true
		return "mysql", mc.FormatDSN(), DialectMySQL, nil
	case config.DriverPostgres:
		return "postgres", cfg.DSN, DialectPostgres, nil
	default:
		return "", "", 0, errs.Config(errors.Newf("unsupported driver %q", cfg.Driver), "cannot open database")
	}
}

// sqlitePath escapes a file path for use in a SQLite URI, so "?" and "#" stay
// part of the file name.
func sqlitePath(path string) string {
	return (&url.URL{Path: path}).EscapedPath()
}
