// Package storetest provides an in-memory database/sql driver that understands
// the statements package store generates. Tests use it to seed tables, inspect
// written rows and inject failures at precise points of a save.
package storetest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInjected is wrapped by every failure the stub produces on request.
var ErrInjected = errors.New("storetest: injected failure")

var registered atomic.Int64

// Conn is the shared state behind every connection of a stub database.
type Conn struct {
	mu     sync.Mutex
	tables map[string]*table
	saved  map[string]*table

	Execs      []string
	FailBegin  bool
	FailCommit bool
	// FailWrites makes INSERT, UPDATE and DELETE on the named tables fail.
	FailWrites map[string]bool
	// FailReads makes SELECT on the named tables fail.
	FailReads map[string]bool
	Commits   int
	Rollbacks int
}

type table struct {
	name    string
	columns []string
	keys    []string
	auto    string
	next    int64
	rows    []map[string]any
}

// New registers a fresh stub driver and opens a *sql.DB on it.
func New() (*sql.DB, *Conn) {
	conn := &Conn{tables: make(map[string]*table)}
	name := fmt.Sprintf("storetest%d", registered.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *Conn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// CreateTable declares a table with the given column spellings.
func (c *Conn) CreateTable(name string, columns ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[strings.ToLower(name)] = &table{name: name, columns: columns}
}

// PrimaryKey declares the columns whose combined values must be unique.
func (c *Conn) PrimaryKey(name string, columns ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tables[strings.ToLower(name)]; t != nil {
		t.keys = t.resolveAll(columns)
	}
}

// AutoIncrement makes column receive the next integer when an insert omits it.
func (c *Conn) AutoIncrement(name, column string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tables[strings.ToLower(name)]; t != nil {
		t.auto, _ = t.column(column)
	}
}

// Seed appends rows without going through SQL. Values are normalized the way
// database/sql would normalize bind arguments.
func (c *Conn) Seed(name string, rows ...map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[strings.ToLower(name)]
	if t == nil {
		panic(fmt.Sprintf("storetest: no such table %s", name))
	}
	for _, raw := range rows {
		row := t.blank()
		for k, v := range raw {
			col, ok := t.column(k)
			if !ok {
				panic(fmt.Sprintf("storetest: no such column %s.%s", name, k))
			}
			nv, err := driver.DefaultParameterConverter.ConvertValue(v)
			if err != nil {
				panic(err)
			}
			row[col] = nv
		}
		t.bump(row)
		t.rows = append(t.rows, row)
	}
}

// Rows returns a copy of the rows of the named table keyed by column spelling.
func (c *Conn) Rows(name string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[strings.ToLower(name)]
	if t == nil {
		return nil
	}
	out := make([]map[string]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = maps.Clone(r)
	}
	return out
}

// Writes returns the executed INSERT, UPDATE and DELETE statements in order.
func (c *Conn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, stmt := range c.Execs {
		switch verb(stmt) {
		case "INSERT", "UPDATE", "DELETE":
			out = append(out, stmt)
		}
	}
	return out
}

// ResetLog forgets recorded statements and transaction counters.
func (c *Conn) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = nil
	c.Commits = 0
	c.Rollbacks = 0
}

// Prepare implements driver.Conn.
func (c *Conn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *Conn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *Conn) Ping(context.Context) error { return nil }

// BeginTx implements driver.ConnBeginTx.
func (c *Conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, fmt.Errorf("%w: begin", ErrInjected)
	}
	c.saved = make(map[string]*table, len(c.tables))
	for k, t := range c.tables {
		c.saved[k] = t.clone()
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *Conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	switch verb(query) {
	case "INSERT":
		if _, err := c.insert(query, args); err != nil {
			return nil, err
		}
		return driver.RowsAffected(1), nil
	case "UPDATE":
		n, err := c.update(query, args)
		if err != nil {
			return nil, err
		}
		return driver.RowsAffected(n), nil
	case "DELETE":
		n, err := c.delete(query, args)
		if err != nil {
			return nil, err
		}
		return driver.RowsAffected(n), nil
	default:
		return driver.RowsAffected(0), nil
	}
}

// QueryContext implements driver.QueryerContext.
func (c *Conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	switch {
	case strings.Contains(query, "pragma_table_info"):
		if len(args) != 1 {
			return nil, fmt.Errorf("storetest: column listing wants one argument")
		}
		name, _ := args[0].Value.(string)
		rows := &stubRows{cols: []string{"name"}}
		if t := c.tables[strings.ToLower(name)]; t != nil {
			for _, col := range t.columns {
				rows.rows = append(rows.rows, []driver.Value{col})
			}
		}
		return rows, nil
	case verb(query) == "INSERT":
		id, err := c.insert(query, args)
		if err != nil {
			return nil, err
		}
		_, _, returning, _ := parseInsert(query)
		return &stubRows{cols: []string{returning}, rows: [][]driver.Value{{id}}}, nil
	case verb(query) == "SELECT":
		return c.query(query)
	default:
		return nil, fmt.Errorf("storetest: unsupported query %q", query)
	}
}

func (c *Conn) lookup(name string) (*table, error) {
	t := c.tables[strings.ToLower(name)]
	if t == nil {
		return nil, fmt.Errorf("storetest: no such table: %s", name)
	}
	return t, nil
}

func (c *Conn) insert(query string, args []driver.NamedValue) (driver.Value, error) {
	name, cols, returning, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.FailWrites[t.name] {
		return nil, fmt.Errorf("%w: insert into %s", ErrInjected, t.name)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("storetest: column/arg mismatch for %s", t.name)
	}
	row := t.blank()
	for i, col := range cols {
		resolved, ok := t.column(col)
		if !ok {
			return nil, fmt.Errorf("storetest: no such column: %s.%s", t.name, col)
		}
		row[resolved] = args[i].Value
	}
	if t.auto != "" && row[t.auto] == nil {
		t.next++
		row[t.auto] = t.next
	}
	t.bump(row)
	if t.duplicate(row) {
		return nil, fmt.Errorf("storetest: UNIQUE constraint failed: %s", t.name)
	}
	t.rows = append(t.rows, row)
	if returning == "" {
		return nil, nil
	}
	resolved, ok := t.column(returning)
	if !ok {
		return nil, fmt.Errorf("storetest: no such column: %s.%s", t.name, returning)
	}
	return row[resolved], nil
}

func (c *Conn) update(query string, args []driver.NamedValue) (int64, error) {
	name, cols, keys, err := parseUpdate(query)
	if err != nil {
		return 0, err
	}
	t, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	if c.FailWrites[t.name] {
		return 0, fmt.Errorf("%w: update %s", ErrInjected, t.name)
	}
	if len(cols)+len(keys) != len(args) {
		return 0, fmt.Errorf("storetest: column/arg mismatch for %s", t.name)
	}
	set := t.resolveAll(cols)
	where := t.resolveAll(keys)
	var n int64
	for _, row := range t.rows {
		if !matches(row, where, args[len(cols):]) {
			continue
		}
		for i, col := range set {
			row[col] = args[i].Value
		}
		n++
	}
	return n, nil
}

func (c *Conn) delete(query string, args []driver.NamedValue) (int64, error) {
	name, keys, err := parseDelete(query)
	if err != nil {
		return 0, err
	}
	t, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	if c.FailWrites[t.name] {
		return 0, fmt.Errorf("%w: delete from %s", ErrInjected, t.name)
	}
	where := t.resolveAll(keys)
	kept := t.rows[:0]
	var n int64
	for _, row := range t.rows {
		if matches(row, where, args) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return n, nil
}

func (c *Conn) query(query string) (driver.Rows, error) {
	name, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.FailReads[t.name] {
		return nil, fmt.Errorf("%w: select %s", ErrInjected, t.name)
	}
	if len(cols) == 1 && strings.EqualFold(cols[0], "COUNT(*)") {
		return &stubRows{cols: cols, rows: [][]driver.Value{{int64(len(t.rows))}}}, nil
	}
	resolved := make([]string, len(cols))
	for i, col := range cols {
		r, ok := t.column(col)
		if !ok {
			return nil, fmt.Errorf("storetest: no such column: %s.%s", t.name, col)
		}
		resolved[i] = r
	}
	out := &stubRows{cols: cols}
	for _, row := range t.rows {
		vals := make([]driver.Value, len(resolved))
		for i, col := range resolved {
			vals[i] = row[col]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

func (c *Conn) restore() {
	if c.saved != nil {
		c.tables = c.saved
		c.saved = nil
	}
}

type stubTx struct {
	conn *Conn
}

func (t *stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCommit {
		c.restore()
		return fmt.Errorf("%w: commit", ErrInjected)
	}
	c.saved = nil
	c.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restore()
	c.Rollbacks++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func (t *table) column(name string) (string, bool) {
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

func (t *table) resolveAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		if c, ok := t.column(n); ok {
			out[i] = c
		} else {
			out[i] = n
		}
	}
	return out
}

func (t *table) blank() map[string]any {
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c] = nil
	}
	return row
}

func (t *table) bump(row map[string]any) {
	if t.auto == "" {
		return
	}
	if n, ok := row[t.auto].(int64); ok && n > t.next {
		t.next = n
	}
}

func (t *table) duplicate(row map[string]any) bool {
	if len(t.keys) == 0 {
		return false
	}
	for _, existing := range t.rows {
		same := true
		for _, k := range t.keys {
			if existing[k] != row[k] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func (t *table) clone() *table {
	cp := *t
	cp.rows = make([]map[string]any, len(t.rows))
	for i, r := range t.rows {
		cp.rows[i] = maps.Clone(r)
	}
	return &cp
}

func matches(row map[string]any, cols []string, args []driver.NamedValue) bool {
	if len(cols) != len(args) {
		return false
	}
	for i, col := range cols {
		if row[col] != args[i].Value {
			return false
		}
	}
	return true
}
