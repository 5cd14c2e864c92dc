// Package store is the thin database/sql layer the ORM talks to. It knows how
// to list columns, fetch whole tables and run keyed writes inside a
// transaction; it knows nothing about entity types.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"miniorm/internal/logging"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// DB wraps a *sql.DB with the dialect used to build statements.
type DB struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used to trace executed statements at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.logger = l
		}
	}
}

// Open connects to the store named by driver ("sqlite" or "postgres") using
// dsn, falling back to the dialect default when dsn is empty.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		dsn = dialect.DefaultDSN()
	}
	if dialect == SQLite {
		dsn, err = prepareSQLite(dsn)
		if err != nil {
			return nil, err
		}
	}
	openMu.Lock()
	db, err := sqlOpen(dialect.DriverName(), dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name(), err)
	}
	return New(db, dialect, opts...), nil
}

// New wraps an already opened *sql.DB.
func New(db *sql.DB, dialect Dialect, opts ...Option) *DB {
	d := &DB{db: db, dialect: dialect, logger: logging.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// prepareSQLite creates the parent directory of a file database and turns on
// foreign key enforcement unless the DSN already sets pragmas.
func prepareSQLite(dsn string) (string, error) {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create dirs: %w", err)
		}
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)", nil
}

// Dialect returns the dialect statements are built for.
func (d *DB) Dialect() Dialect { return d.dialect }

// SQL exposes the underlying *sql.DB.
func (d *DB) SQL() *sql.DB { return d.db }

// Close closes the underlying pool.
func (d *DB) Close() error { return d.db.Close() }

// Session pins one pooled connection for the duration of a load or a save.
func (d *DB) Session(ctx context.Context) (*Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{conn: conn, dialect: d.dialect, logger: d.logger}, nil
}

// ApplyScript runs a multi-statement DDL script on a fresh session.
func (d *DB) ApplyScript(ctx context.Context, script string) error {
	s, err := d.Session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return s.ApplyScript(ctx, script)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
