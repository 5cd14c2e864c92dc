package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cast"
)

// Session is a single pinned connection. It is not safe for concurrent use.
type Session struct {
	conn    *sql.Conn
	dialect Dialect
	logger  *slog.Logger
}

// Close returns the connection to the pool.
func (s *Session) Close() error { return s.conn.Close() }

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	s.logger.DebugContext(ctx, "exec", "sql", stmt)
	res, err := s.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// ExecScalar runs a query and returns the first column of its first row.
func (s *Session) ExecScalar(ctx context.Context, query string, args ...any) (any, error) {
	s.logger.DebugContext(ctx, "query scalar", "sql", query)
	var v any
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return nil, fmt.Errorf("scalar query: %w", err)
	}
	return v, nil
}

// ColumnNames lists the columns of table as the store spells them. A missing
// table yields an empty list.
func (s *Session) ColumnNames(ctx context.Context, table string) ([]string, error) {
	query := s.dialect.ColumnsQuery()
	s.logger.DebugContext(ctx, "list columns", "table", table)
	rows, err := s.conn.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	return names, nil
}

// FetchRows reads every row of table, projecting columns in the given order.
// SQL NULL is returned as nil.
func (s *Session) FetchRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	query := selectSQL(table, columns)
	s.logger.DebugContext(ctx, "fetch", "sql", query)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

// Count returns the number of rows in table.
func (s *Session) Count(ctx context.Context, table string) (int64, error) {
	v, err := s.ExecScalar(ctx, "SELECT COUNT(*) FROM "+Quote(table))
	if err != nil {
		return 0, err
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ApplyScript splits script into statements and executes them in order.
func (s *Session) ApplyScript(ctx context.Context, script string) error {
	for _, stmt := range SplitStatements(script) {
		s.logger.DebugContext(ctx, "ddl", "sql", stmt)
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Begin starts a transaction on the session's connection.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx, dialect: s.dialect, logger: s.logger}, nil
}

// Tx issues keyed writes inside one transaction.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
	logger  *slog.Logger
}

// Insert adds one row. When returning is non-empty the named column of the
// new row is read back and returned.
func (t *Tx) Insert(ctx context.Context, table string, columns []string, values []any, returning string) (any, error) {
	stmt := insertSQL(t.dialect, table, columns, returning)
	t.logger.DebugContext(ctx, "insert", "sql", stmt)
	if returning == "" {
		if _, err := t.tx.ExecContext(ctx, stmt, values...); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		return nil, nil
	}
	var id any
	if err := t.tx.QueryRowContext(ctx, stmt, values...).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

// Update overwrites columns of the row identified by keys and returns the
// number of rows affected.
func (t *Tx) Update(ctx context.Context, table string, columns []string, values []any, keys []string, keyValues []any) (int64, error) {
	stmt := updateSQL(t.dialect, table, columns, keys)
	t.logger.DebugContext(ctx, "update", "sql", stmt)
	args := make([]any, 0, len(values)+len(keyValues))
	args = append(args, values...)
	args = append(args, keyValues...)
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	return n, nil
}

// Delete removes the row identified by keys and returns the number of rows
// affected.
func (t *Tx) Delete(ctx context.Context, table string, keys []string, keyValues []any) (int64, error) {
	stmt := deleteSQL(t.dialect, table, keys)
	t.logger.DebugContext(ctx, "delete", "sql", stmt)
	res, err := t.tx.ExecContext(ctx, stmt, keyValues...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: rows affected: %w", table, err)
	}
	return n, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
