package schema

import (
	"reflect"
)

// TableNamer lets an entity type override the table it is stored in.
type TableNamer interface {
	TableName() string
}

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

// Field describes one persistable scalar field of an entity type.
type Field struct {
	Name     string
	Column   string
	Index    []int
	Type     reflect.Type
	Key      bool
	Nullable bool
}

// Value returns the field of the entity struct v.
func (f *Field) Value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.Index)
}

// ForeignKey links a scalar field to the navigation reference it resolves to.
type ForeignKey struct {
	Field      *Field
	Navigation string
	NavIndex   []int
	Target     reflect.Type
}

// Collection is a navigation collection field of type []*Elem.
type Collection struct {
	Name  string
	Index []int
	Type  reflect.Type
	Elem  reflect.Type
	Via   string
}

// Model is the table-independent metadata of an entity type. Models are
// immutable once built and shared through a Registry.
type Model struct {
	Type        reflect.Type
	Name        string
	Fields      []*Field
	Keys        []*Field
	ForeignKeys []*ForeignKey
	Collections []*Collection

	table string
}

// TableOverride returns the table name declared by the type itself, if any.
func (m *Model) TableOverride() (string, bool) {
	return m.table, m.table != ""
}

// IsLink reports whether the type has a composite key and therefore models a
// many-to-many association row.
func (m *Model) IsLink() bool { return len(m.Keys) >= 2 }

// ForeignKeyTo returns the first foreign key whose navigation targets t.
func (m *Model) ForeignKeyTo(t reflect.Type) *ForeignKey {
	for _, fk := range m.ForeignKeys {
		if fk.Target == t {
			return fk
		}
	}
	return nil
}

// ForeignKeyFor returns the foreign key declared on the named scalar field.
func (m *Model) ForeignKeyFor(field string) *ForeignKey {
	for _, fk := range m.ForeignKeys {
		if fk.Field.Name == field {
			return fk
		}
	}
	return nil
}

// NavigationNames lists every navigation reference and collection field.
func (m *Model) NavigationNames() []string {
	names := make([]string, 0, len(m.ForeignKeys)+len(m.Collections))
	seen := make(map[string]struct{}, cap(names))
	for _, fk := range m.ForeignKeys {
		if _, ok := seen[fk.Navigation]; ok {
			continue
		}
		seen[fk.Navigation] = struct{}{}
		names = append(names, fk.Navigation)
	}
	for _, c := range m.Collections {
		names = append(names, c.Name)
	}
	return names
}

func inspect(t reflect.Type, types TypeSet) (*Model, error) {
	if t.Kind() != reflect.Struct {
		return nil, configErr(t.String(), "", "entity type must be a struct, got %s", t.Kind())
	}
	m := &Model{Type: t, Name: t.Name()}
	fks := make(map[*Field]string)

	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() || throughPointer(t, sf.Index) {
			continue
		}
		opts, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, configErr(m.Name, sf.Name, "bad %s tag: %v", TagName, err)
		}
		if opts.skip {
			continue
		}
		switch {
		case types.Allows(sf.Type):
			if opts.via != "" {
				return nil, configErr(m.Name, sf.Name, "via is only valid on collection fields")
			}
			f := &Field{
				Name:     sf.Name,
				Column:   sf.Name,
				Index:    sf.Index,
				Type:     sf.Type,
				Key:      opts.key,
				Nullable: sf.Type.Kind() == reflect.Pointer,
			}
			if opts.column != "" {
				f.Column = opts.column
			}
			m.Fields = append(m.Fields, f)
			if f.Key {
				m.Keys = append(m.Keys, f)
			}
			if opts.fk != "" {
				fks[f] = opts.fk
			}
		case opts.key || opts.fk != "" || opts.column != "":
			return nil, configErr(m.Name, sf.Name, "type %s is not a persistable scalar", sf.Type)
		case isCollection(sf.Type):
			m.Collections = append(m.Collections, &Collection{
				Name:  sf.Name,
				Index: sf.Index,
				Type:  sf.Type,
				Elem:  sf.Type.Elem().Elem(),
				Via:   opts.via,
			})
		case opts.via != "":
			return nil, configErr(m.Name, sf.Name, "via is only valid on collection fields")
		}
	}

	for _, f := range m.Fields {
		nav, ok := fks[f]
		if !ok {
			continue
		}
		sf, found := t.FieldByName(nav)
		if !found || !sf.IsExported() {
			return nil, configErr(m.Name, f.Name, "foreign key references missing navigation field %q", nav)
		}
		if sf.Type.Kind() != reflect.Pointer || sf.Type.Elem().Kind() != reflect.Struct {
			return nil, configErr(m.Name, f.Name, "navigation field %q must be a pointer to a struct, got %s", nav, sf.Type)
		}
		m.ForeignKeys = append(m.ForeignKeys, &ForeignKey{
			Field:      f,
			Navigation: nav,
			NavIndex:   sf.Index,
			Target:     sf.Type.Elem(),
		})
	}

	if reflect.PointerTo(t).Implements(tableNamerType) {
		m.table = reflect.New(t).Interface().(TableNamer).TableName()
	}
	return m, nil
}

func isCollection(t reflect.Type) bool {
	return t.Kind() == reflect.Slice &&
		t.Elem().Kind() == reflect.Pointer &&
		t.Elem().Elem().Kind() == reflect.Struct
}

// throughPointer reports whether a promoted field is reached via an embedded
// pointer, which may be nil on a freshly allocated entity.
func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		t = f.Type
	}
	return false
}
