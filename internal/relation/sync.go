package relation

import (
	"reflect"

	"miniorm/internal/schema"
)

// Undo is a stack of inverse operations applied when a save fails.
type Undo struct {
	ops []func()
}

// Push records an inverse operation.
func (u *Undo) Push(op func()) { u.ops = append(u.ops, op) }

func (u *Undo) size() int { return len(u.ops) }

// Revert applies the recorded operations newest first and clears the stack.
func (u *Undo) Revert() {
	for i := len(u.ops) - 1; i >= 0; i-- {
		u.ops[i]()
	}
	u.ops = nil
}

// Discard forgets the recorded operations.
func (u *Undo) Discard() { u.ops = nil }

// Target is the set a navigation reference points into.
type Target struct {
	Desc     *schema.Descriptor
	Entities []reflect.Value
	// Pending reports whether the store has yet to generate the key of the
	// *T value e. Nil means every key is final.
	Pending func(e reflect.Value) bool
}

// SyncForeignKeys reconciles every foreign-key field of src with its
// navigation reference.
//
// For an entity with a baseline, whichever side changed since the baseline
// wins: a moved reference overwrites the foreign key, and an edited foreign
// key re-points the reference to the matching target entity, or clears it
// when none matches. When both changed, the reference wins. Entities without
// a baseline take the key of their reference. References whose target key is
// still pending are skipped; they are synced again once the store has
// generated the key. Every change is recorded in undo.
func SyncForeignKeys(src Source, resolve func(reflect.Type) (Target, bool), undo *Undo) error {
	for _, fk := range src.Desc.ForeignKeys {
		target, ok := resolve(fk.Target)
		if !ok || len(target.Desc.KeyColumns) != 1 {
			continue
		}
		key := target.Desc.Key()
		pos := src.Desc.Position(fk.Field)
		for _, e := range src.Entities {
			v := e.Elem()
			nav := v.FieldByIndex(fk.NavIndex)
			fv := fk.Field.Value(v)
			if base, ok := baselineOf(src, e); ok && pos >= 0 {
				baseKey, baseSet := keyOfAny(base[pos])
				if !referenceMoved(nav, key, target, baseKey, baseSet) {
					if have, set := schema.KeyOf(fv); set != baseSet || have != baseKey {
						repoint(nav, key, target, have, set, undo)
					}
					continue
				}
			}
			if nav.IsNil() || target.pending(nav) {
				continue
			}
			kv := key.Value(nav.Elem())
			want, _ := schema.KeyOf(kv)
			if have, ok := schema.KeyOf(fv); ok && have == want {
				continue
			}
			old := reflect.New(fv.Type()).Elem()
			old.Set(fv)
			raw := kv.Interface()
			if kv.Kind() == reflect.Pointer {
				raw = kv.Elem().Interface()
			}
			if err := src.Desc.SetField(v, fk.Field, raw); err != nil {
				return err
			}
			undo.Push(func() { fv.Set(old) })
		}
	}
	return nil
}

func (t Target) pending(e reflect.Value) bool {
	return t.Pending != nil && t.Pending(e)
}

func baselineOf(src Source, e reflect.Value) ([]any, bool) {
	if src.Baseline == nil {
		return nil, false
	}
	return src.Baseline(e)
}

func keyOfAny(x any) (any, bool) {
	if x == nil {
		return nil, false
	}
	return schema.KeyOf(reflect.ValueOf(x))
}

// referenceMoved reports whether nav no longer points at the entity the
// baseline foreign key named.
func referenceMoved(nav reflect.Value, key *schema.Field, target Target, baseKey any, baseSet bool) bool {
	if nav.IsNil() {
		return baseSet
	}
	if target.pending(nav) {
		return true
	}
	k, ok := schema.KeyOf(key.Value(nav.Elem()))
	return !ok || !baseSet || k != baseKey
}

// repoint sets nav to the target entity whose key is want, or to nil.
func repoint(nav reflect.Value, key *schema.Field, target Target, want any, set bool, undo *Undo) {
	next := reflect.Zero(nav.Type())
	if set {
		for _, t := range target.Entities {
			if target.pending(t) {
				continue
			}
			if k, ok := schema.KeyOf(key.Value(t.Elem())); ok && k == want {
				next = t
				break
			}
		}
	}
	if nav.Equal(next) {
		return
	}
	old := reflect.New(nav.Type()).Elem()
	old.Set(nav)
	nav.Set(next)
	undo.Push(func() { nav.Set(old) })
}
