package orm

import (
	"context"
	"iter"
	"log/slog"
	"reflect"
	"slices"

	"miniorm/internal/relation"
	"miniorm/internal/schema"
	"miniorm/internal/tracker"
	"miniorm/pkg/store"
)

// Set is the in-memory collection of every loaded entity of type T. Sets are
// declared as exported *Set[T] fields of a model struct and allocated by
// Open; a Set is only usable once its context has been opened.
type Set[T any] struct {
	name    string
	desc    *schema.Descriptor
	items   []*T
	tracker *tracker.Tracker[T]
}

// entitySet is what a Context needs from a Set regardless of its element type.
type entitySet interface {
	Name() string
	Table() string
	Len() int
	entityType() reflect.Type
	bind(name string, desc *schema.Descriptor)
	load(rows [][]any) error
	source() relation.Source
	target() relation.Target
	invalid(v Validator) []any
	persist(ctx context.Context, tx *store.Tx, undo *relation.Undo, log *slog.Logger) (writeCounts, error)
	accept()
}

type writeCounts struct {
	inserted, updated, deleted int
}

var entitySetType = reflect.TypeFor[entitySet]()

// Add appends e to the set and records it for insertion. Adding an entity
// the set already holds is not detected and leads to a second insert.
func (s *Set[T]) Add(e *T) error {
	if e == nil {
		return ErrNilEntity
	}
	s.items = append(s.items, e)
	s.tracker.RecordAdded(e)
	return nil
}

// Remove drops e from the set and records it for deletion. It reports false,
// recording nothing, when e is not in the set.
func (s *Set[T]) Remove(e *T) (bool, error) {
	if e == nil {
		return false, ErrNilEntity
	}
	i := slices.Index(s.items, e)
	if i < 0 {
		return false, nil
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.tracker.RecordRemoved(e)
	return true, nil
}

// RemoveRange removes every entity of es that is in the set and returns how
// many were removed. Nil entries are skipped.
func (s *Set[T]) RemoveRange(es []*T) int {
	n := 0
	for _, e := range es {
		if ok, _ := s.Remove(e); ok {
			n++
		}
	}
	return n
}

// Clear removes every entity from the set.
func (s *Set[T]) Clear() {
	s.RemoveRange(slices.Clone(s.items))
}

// Contains reports whether e is in the set.
func (s *Set[T]) Contains(e *T) bool {
	return e != nil && slices.Contains(s.items, e)
}

// Len returns the number of entities in the set.
func (s *Set[T]) Len() int { return len(s.items) }

// All iterates the entities in insertion order. The set must not be modified
// during iteration.
func (s *Set[T]) All() iter.Seq[*T] { return slices.Values(s.items) }

// Slice returns a copy of the entities in insertion order.
func (s *Set[T]) Slice() []*T { return slices.Clone(s.items) }

// First returns the first entity, if any.
func (s *Set[T]) First() (*T, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	return s.items[0], true
}

// Name returns the name the set was declared under.
func (s *Set[T]) Name() string { return s.name }

// Table returns the table the set is stored in.
func (s *Set[T]) Table() string {
	if s.desc == nil {
		return ""
	}
	return s.desc.Table
}

func (s *Set[T]) entityType() reflect.Type { return reflect.TypeFor[T]() }

func (s *Set[T]) bind(name string, desc *schema.Descriptor) {
	s.name = name
	s.desc = desc
}

func (s *Set[T]) snapshot(e *T) []any {
	return s.desc.Snapshot(reflect.ValueOf(e).Elem())
}

func (s *Set[T]) load(rows [][]any) error {
	items := make([]*T, 0, len(rows))
	for _, row := range rows {
		e := new(T)
		if err := s.desc.Assign(reflect.ValueOf(e).Elem(), row); err != nil {
			return err
		}
		items = append(items, e)
	}
	s.items = items
	s.tracker = tracker.New(items, s.snapshot)
	return nil
}

func (s *Set[T]) source() relation.Source {
	values := make([]reflect.Value, len(s.items))
	for i, e := range s.items {
		values[i] = reflect.ValueOf(e)
	}
	return relation.Source{Desc: s.desc, Entities: values, Baseline: s.baseline}
}

func (s *Set[T]) target() relation.Target {
	return relation.Target{Desc: s.desc, Entities: s.source().Entities, Pending: s.pending}
}

func (s *Set[T]) baseline(e reflect.Value) ([]any, bool) {
	return s.tracker.Baseline(e.Interface().(*T))
}

// pending reports whether e awaits insertion with a key the store generates.
func (s *Set[T]) pending(e reflect.Value) bool {
	g := s.desc.Generated()
	return g != nil && s.tracker.IsAdded(e.Interface().(*T)) && g.Value(e.Elem()).IsZero()
}

func (s *Set[T]) invalid(v Validator) []any {
	var out []any
	for _, e := range s.items {
		if !v.Valid(e) {
			out = append(out, e)
		}
	}
	return out
}

// persist writes the pending inserts, updates and deletes of the set. Keys
// generated by the store are written back to the entities and registered in
// undo. Updates and deletes that match no row are logged, not failed.
func (s *Set[T]) persist(ctx context.Context, tx *store.Tx, undo *relation.Undo, log *slog.Logger) (writeCounts, error) {
	var n writeCounts
	d := s.desc
	for _, e := range s.tracker.Added() {
		v := reflect.ValueOf(e).Elem()
		cols, vals, generated := d.InsertColumns(v)
		returning := ""
		if generated != nil {
			returning = generated.Column
		}
		id, err := tx.Insert(ctx, d.Table, cols, vals, returning)
		if err != nil {
			return n, err
		}
		if generated != nil {
			if err := d.SetField(v, generated, id); err != nil {
				return n, err
			}
			fv := generated.Value(v)
			undo.Push(func() { fv.SetZero() })
		}
		n.inserted++
	}
	keys := d.KeyColumnNames()
	columns := d.ColumnNames()
	for _, e := range s.tracker.Modified(s.items) {
		base, _ := s.tracker.Baseline(e)
		v := reflect.ValueOf(e).Elem()
		keyVals := d.KeyValuesFrom(base)
		affected, err := tx.Update(ctx, d.Table, columns, d.Snapshot(v), keys, keyVals)
		if err != nil {
			return n, err
		}
		if affected == 0 {
			log.WarnContext(ctx, "update matched no row", "key", keyVals)
		}
		n.updated++
	}
	for _, e := range s.tracker.Removed() {
		base, ok := s.tracker.Baseline(e)
		if !ok {
			continue
		}
		keyVals := d.KeyValuesFrom(base)
		affected, err := tx.Delete(ctx, d.Table, keys, keyVals)
		if err != nil {
			return n, err
		}
		if affected == 0 {
			log.WarnContext(ctx, "delete matched no row", "key", keyVals)
		}
		n.deleted++
	}
	return n, nil
}

// accept marks the current contents as persisted.
func (s *Set[T]) accept() {
	s.tracker.Reset(s.items)
}
