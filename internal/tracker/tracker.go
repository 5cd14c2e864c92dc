// Package tracker records the changes made to one entity set between saves.
//
// Added and removed entities are kept in insertion order. Modified entities are
// not recorded as they happen; they are found by diffing each entity's current
// column values against the snapshot taken when it was loaded or last saved.
package tracker

import (
	"slices"

	"miniorm/internal/schema"
)

// Tracker is the change bookkeeping of one set. Entities are identified by
// pointer, never by key value.
type Tracker[T any] struct {
	added    []*T
	removed  []*T
	baseline map[*T][]any
	snapshot func(*T) []any
}

// New tracks the loaded entities, snapshotting each one as its baseline.
func New[T any](loaded []*T, snapshot func(*T) []any) *Tracker[T] {
	t := &Tracker[T]{snapshot: snapshot}
	t.Reset(loaded)
	return t
}

// RecordAdded notes an entity appended to the set. Re-adding an entity whose
// removal is still pending cancels the removal instead.
func (t *Tracker[T]) RecordAdded(e *T) {
	if i := slices.Index(t.removed, e); i >= 0 {
		t.removed = slices.Delete(t.removed, i, i+1)
		return
	}
	t.added = append(t.added, e)
}

// RecordRemoved notes an entity dropped from the set. Removing an entity that
// was added since the last save cancels the addition and records nothing.
func (t *Tracker[T]) RecordRemoved(e *T) {
	if i := slices.Index(t.added, e); i >= 0 {
		t.added = slices.Delete(t.added, i, i+1)
		return
	}
	if _, tracked := t.baseline[e]; !tracked {
		return
	}
	t.removed = append(t.removed, e)
}

// Added returns the entities to insert.
func (t *Tracker[T]) Added() []*T { return slices.Clone(t.added) }

// Removed returns the entities to delete.
func (t *Tracker[T]) Removed() []*T { return slices.Clone(t.removed) }

// Modified returns the entities of current that have a baseline and whose
// column values no longer match it.
func (t *Tracker[T]) Modified(current []*T) []*T {
	var out []*T
	for _, e := range current {
		base, ok := t.baseline[e]
		if !ok || slices.Contains(t.added, e) {
			continue
		}
		if !sameValues(base, t.snapshot(e)) {
			out = append(out, e)
		}
	}
	return out
}

// Baseline returns the snapshot an entity is diffed against.
func (t *Tracker[T]) Baseline(e *T) ([]any, bool) {
	base, ok := t.baseline[e]
	return base, ok
}

// IsAdded reports whether e is waiting to be inserted.
func (t *Tracker[T]) IsAdded(e *T) bool { return slices.Contains(t.added, e) }

// Reset forgets all recorded changes and re-snapshots current as persisted.
func (t *Tracker[T]) Reset(current []*T) {
	t.added = nil
	t.removed = nil
	t.baseline = make(map[*T][]any, len(current))
	for _, e := range current {
		t.baseline[e] = t.snapshot(e)
	}
}

func sameValues(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !schema.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
