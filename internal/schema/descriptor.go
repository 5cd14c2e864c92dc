package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Descriptor binds a Model to a table and to the columns the store actually has.
type Descriptor struct {
	*Model
	Set         string
	Table       string
	Columns     []*Field
	KeyColumns  []*Field
	ForeignKeys []*ForeignKey

	keyPos    []int
	generated *Field
}

// Bind resolves the table name and intersects the model's fields with the
// columns reported by the store. Fields unknown to the store are dropped.
func Bind(m *Model, set string, storeColumns []string) (*Descriptor, error) {
	d := &Descriptor{Model: m, Set: set, Table: set}
	if table, ok := m.TableOverride(); ok {
		d.Table = table
	}
	if len(m.Keys) == 0 {
		return nil, configErr(m.Name, "", "no key field; mark one with `%s:\"key\"`", TagName)
	}
	bound := make(map[*Field]bool, len(m.Fields))
	for _, f := range m.Fields {
		name, ok := lookupColumn(storeColumns, f.Column)
		if !ok {
			continue
		}
		c := *f
		c.Column = name
		if c.Key {
			d.keyPos = append(d.keyPos, len(d.Columns))
			d.KeyColumns = append(d.KeyColumns, &c)
		}
		d.Columns = append(d.Columns, &c)
		bound[f] = true
	}
	if len(d.Columns) == 0 {
		return nil, configErr(m.Name, "", "table %q is missing or has no mapped columns", d.Table)
	}
	for _, k := range m.Keys {
		if !bound[k] {
			return nil, configErr(m.Name, k.Name, "key column %q not found in table %q", k.Column, d.Table)
		}
	}
	for _, fk := range m.ForeignKeys {
		if bound[fk.Field] {
			d.ForeignKeys = append(d.ForeignKeys, fk)
		}
	}
	if len(d.KeyColumns) == 1 && !d.KeyColumns[0].Nullable && isIntegerKind(d.KeyColumns[0].Type.Kind()) {
		d.generated = d.KeyColumns[0]
	}
	return d, nil
}

func lookupColumn(columns []string, name string) (string, bool) {
	for _, c := range columns {
		if c == name {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// ColumnNames returns the persisted column names in field order.
func (d *Descriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Column
	}
	return names
}

// KeyColumnNames returns the key column names in field order.
func (d *Descriptor) KeyColumnNames() []string {
	names := make([]string, len(d.KeyColumns))
	for i, c := range d.KeyColumns {
		names[i] = c.Column
	}
	return names
}

// Key returns the single key field. It panics for composite keys; callers
// check IsLink first.
func (d *Descriptor) Key() *Field {
	if len(d.KeyColumns) != 1 {
		panic(fmt.Sprintf("schema: %s has %d key fields", d.Name, len(d.KeyColumns)))
	}
	return d.KeyColumns[0]
}

// Snapshot captures the column values of the entity struct v.
func (d *Descriptor) Snapshot(v reflect.Value) []any {
	out := make([]any, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = plain(c.Value(v))
	}
	return out
}

// Position returns the index of field f in Columns and in snapshots, or -1
// when f is not bound to a column.
func (d *Descriptor) Position(f *Field) int {
	for i, c := range d.Columns {
		if c.Name == f.Name {
			return i
		}
	}
	return -1
}

// KeyValuesFrom extracts key values from a snapshot taken with Snapshot.
func (d *Descriptor) KeyValuesFrom(snapshot []any) []any {
	out := make([]any, len(d.keyPos))
	for i, pos := range d.keyPos {
		out[i] = snapshot[pos]
	}
	return out
}

// Assign populates the entity struct v from a row aligned to Columns.
func (d *Descriptor) Assign(v reflect.Value, row []any) error {
	if len(row) != len(d.Columns) {
		return fmt.Errorf("%s: row has %d values, want %d", d.Table, len(row), len(d.Columns))
	}
	for i, c := range d.Columns {
		if err := assign(c.Value(v), row[i]); err != nil {
			return fmt.Errorf("%s.%s: %w", d.Table, c.Column, err)
		}
	}
	return nil
}

// SetField converts raw and stores it in field f of v.
func (d *Descriptor) SetField(v reflect.Value, f *Field, raw any) error {
	if err := assign(f.Value(v), raw); err != nil {
		return fmt.Errorf("%s.%s: %w", d.Table, f.Column, err)
	}
	return nil
}

// Generated returns the key the store generates on insert, or nil when the
// key is composite or not an integer.
func (d *Descriptor) Generated() *Field { return d.generated }

// InsertColumns returns the columns and values used to insert v. A generated
// key whose value is still zero is omitted and reported as returning.
func (d *Descriptor) InsertColumns(v reflect.Value) (columns []string, values []any, returning *Field) {
	for _, c := range d.Columns {
		fv := c.Value(v)
		if c == d.generated && fv.IsZero() {
			returning = c
			continue
		}
		columns = append(columns, c.Column)
		values = append(values, plain(fv))
	}
	return columns, values, returning
}

// ForeignKeyTo returns the first bound foreign key whose navigation targets t.
func (d *Descriptor) ForeignKeyTo(t reflect.Type) *ForeignKey {
	for _, fk := range d.ForeignKeys {
		if fk.Target == t {
			return fk
		}
	}
	return nil
}

// ForeignKeyFor returns the bound foreign key declared on the named field.
func (d *Descriptor) ForeignKeyFor(field string) *ForeignKey {
	for _, fk := range d.ForeignKeys {
		if fk.Field.Name == field {
			return fk
		}
	}
	return nil
}
