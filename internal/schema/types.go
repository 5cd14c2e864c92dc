package schema

import (
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// TypeSet is an immutable set of Go types that may be persisted as columns.
// A pointer to an allowed type is allowed too and maps to a nullable column.
type TypeSet struct {
	types map[reflect.Type]struct{}
}

// NewTypeSet builds a set from the supplied types.
func NewTypeSet(types ...reflect.Type) TypeSet {
	set := TypeSet{types: make(map[reflect.Type]struct{}, len(types))}
	for _, t := range types {
		set.types[t] = struct{}{}
	}
	return set
}

// DefaultScalarTypes returns the column types understood by the bundled dialects.
func DefaultScalarTypes() TypeSet {
	return NewTypeSet(
		reflect.TypeOf(""),
		reflect.TypeOf(false),
		reflect.TypeOf(int(0)),
		reflect.TypeOf(int8(0)),
		reflect.TypeOf(int16(0)),
		reflect.TypeOf(int32(0)),
		reflect.TypeOf(int64(0)),
		reflect.TypeOf(uint(0)),
		reflect.TypeOf(uint8(0)),
		reflect.TypeOf(uint16(0)),
		reflect.TypeOf(uint32(0)),
		reflect.TypeOf(uint64(0)),
		reflect.TypeOf(float32(0)),
		reflect.TypeOf(float64(0)),
		timeType,
	)
}

// Allows reports whether t, or the type t points to, is in the set.
func (s TypeSet) Allows(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	_, ok := s.types[t]
	return ok
}

func (s TypeSet) size() int { return len(s.types) }

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
