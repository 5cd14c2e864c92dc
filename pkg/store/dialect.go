package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported stores.
type Dialect interface {
	// Name is the user-facing driver name accepted by Open.
	Name() string
	// DriverName is the database/sql driver the dialect opens.
	DriverName() string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// ColumnsQuery lists the column names of the table bound to its single argument.
	ColumnsQuery() string
	// DefaultDSN is used when Open receives an empty DSN.
	DefaultDSN() string
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) DriverName() string     { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) ColumnsQuery() string   { return `SELECT name FROM pragma_table_info(?)` }
func (sqliteDialect) DefaultDSN() string     { return "miniorm.db" }

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) DriverName() string       { return "pgx" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`
}
func (postgresDialect) DefaultDSN() string { return "postgres://localhost/miniorm?sslmode=disable" }

var (
	// SQLite is the dialect of modernc.org/sqlite.
	SQLite Dialect = sqliteDialect{}
	// Postgres is the dialect of github.com/jackc/pgx/v5/stdlib.
	Postgres Dialect = postgresDialect{}
)

// DialectFor resolves a driver name as given in configuration.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", name)
	}
}

// Quote quotes an identifier for both supported dialects.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteList(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = Quote(id)
	}
	return strings.Join(quoted, ", ")
}

func selectSQL(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", quoteList(columns), Quote(table))
}

func insertSQL(d Dialect, table string, columns []string, returning string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(Quote(table))
	if len(columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (")
		b.WriteString(quoteList(columns))
		b.WriteString(") VALUES (")
		for i := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(i + 1))
		}
		b.WriteString(")")
	}
	if returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(Quote(returning))
	}
	return b.String()
}

func updateSQL(d Dialect, table string, columns, keys []string) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(Quote(table))
	b.WriteString(" SET ")
	n := 0
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		n++
		b.WriteString(Quote(c) + " = " + d.Placeholder(n))
	}
	writeWhere(&b, d, keys, n)
	return b.String()
}

func deleteSQL(d Dialect, table string, keys []string) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(Quote(table))
	writeWhere(&b, d, keys, 0)
	return b.String()
}

func writeWhere(b *strings.Builder, d Dialect, keys []string, offset int) {
	b.WriteString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(Quote(k) + " = " + d.Placeholder(offset+i+1))
	}
}
