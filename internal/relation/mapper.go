// Package relation wires navigation references and collections between loaded
// entity sets using only their schema descriptors.
package relation

import (
	"fmt"
	"reflect"

	"miniorm/internal/schema"
)

// Source is one loaded set: its descriptor and its entities as *T values, in
// set order.
type Source struct {
	Desc     *schema.Descriptor
	Entities []reflect.Value
	// Baseline returns the column snapshot an entity was loaded or last saved
	// with. Nil, or ok false, means the entity has never been persisted.
	Baseline func(e reflect.Value) (snapshot []any, ok bool)
}

type graph struct {
	sources []Source
	byType  map[reflect.Type]int
	byName  map[string]int
}

func newGraph(sources []Source) *graph {
	g := &graph{
		sources: sources,
		byType:  make(map[reflect.Type]int, len(sources)),
		byName:  make(map[string]int, len(sources)),
	}
	for i, s := range sources {
		g.byType[s.Desc.Type] = i
		g.byName[s.Desc.Name] = i
	}
	return g
}

func (g *graph) lookup(t reflect.Type) (Source, bool) {
	i, ok := g.byType[t]
	if !ok {
		return Source{}, false
	}
	return g.sources[i], true
}

// Map runs the two mapping passes over every source: first scalar foreign
// keys, then navigation collections. Any error leaves the graph partially
// wired and must be treated as fatal by the caller.
func Map(sources []Source) error {
	g := newGraph(sources)
	for _, src := range sources {
		for _, fk := range src.Desc.ForeignKeys {
			if err := g.mapForeignKey(src, fk); err != nil {
				return err
			}
		}
	}
	for _, src := range sources {
		for _, coll := range src.Desc.Collections {
			if err := g.mapCollection(src, coll); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *graph) mapForeignKey(src Source, fk *schema.ForeignKey) error {
	target, ok := g.lookup(fk.Target)
	if !ok {
		return &schema.ConfigError{Type: src.Desc.Name, Field: fk.Field.Name,
			Reason: fmt.Sprintf("no set declared for navigation target %s", fk.Target.Name())}
	}
	if len(target.Desc.KeyColumns) != 1 {
		return &schema.ConfigError{Type: src.Desc.Name, Field: fk.Field.Name,
			Reason: fmt.Sprintf("navigation target %s must have exactly one key field", target.Desc.Name)}
	}
	index := indexByKey(target.Entities, target.Desc.Key())
	for _, e := range src.Entities {
		v := e.Elem()
		nav := v.FieldByIndex(fk.NavIndex)
		key, present := schema.KeyOf(fk.Field.Value(v))
		if !present {
			nav.SetZero()
			continue
		}
		match, found := index[key]
		if !found {
			return &IntegrityError{
				Table:  src.Desc.Table,
				Column: fk.Field.Column,
				Value:  key,
				Target: target.Desc.Table,
			}
		}
		nav.Set(match)
	}
	return nil
}

func (g *graph) mapCollection(src Source, coll *schema.Collection) error {
	declared := coll.Elem
	if coll.Via != "" {
		i, ok := g.byName[coll.Via]
		if !ok {
			return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
				Reason: fmt.Sprintf("via type %s is not a declared set", coll.Via)}
		}
		declared = g.sources[i].Desc.Type
	}
	target, ok := g.lookup(declared)
	if !ok {
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: fmt.Sprintf("no set declared for %s", declared.Name())}
	}
	if len(src.Desc.KeyColumns) != 1 {
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: "collections require the owner to have exactly one key field"}
	}
	if target.Desc.IsLink() {
		return g.mapManyToMany(src, coll, target)
	}
	if coll.Via != "" {
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: fmt.Sprintf("via type %s must have a composite key", target.Desc.Name)}
	}
	return mapOneToMany(src, coll, target)
}

// mapOneToMany fills the collection with the target entities whose foreign
// key points back at the owner.
func mapOneToMany(src Source, coll *schema.Collection, target Source) error {
	back := target.Desc.ForeignKeyTo(src.Desc.Type)
	if back == nil {
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: fmt.Sprintf("%s has no foreign key referencing %s", target.Desc.Name, src.Desc.Name)}
	}
	groups := groupBy(target.Entities, back.Field)
	ownerKey := src.Desc.Key()
	for _, owner := range src.Entities {
		key, _ := schema.KeyOf(ownerKey.Value(owner.Elem()))
		setCollection(owner, coll, groups[key])
	}
	return nil
}

// mapManyToMany resolves a collection through a link entity. The key of the
// link that references the owner selects the rows; another foreign-keyed key
// of the link leads to the far side. The collection receives either the link
// rows themselves or the far-side entities, depending on its element type.
func (g *graph) mapManyToMany(src Source, coll *schema.Collection, link Source) error {
	var back, far *schema.ForeignKey
	for _, k := range link.Desc.KeyColumns {
		fk := link.Desc.ForeignKeyFor(k.Name)
		if fk == nil {
			continue
		}
		if back == nil && fk.Target == src.Desc.Type {
			back = fk
			continue
		}
		if far == nil {
			far = fk
		}
	}
	if back == nil {
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: fmt.Sprintf("link %s has no key referencing %s", link.Desc.Name, src.Desc.Name)}
	}
	if far == nil {
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: fmt.Sprintf("link %s has no second foreign-keyed key", link.Desc.Name)}
	}

	groups := groupBy(link.Entities, back.Field)
	ownerKey := src.Desc.Key()

	switch coll.Elem {
	case link.Desc.Type:
		for _, owner := range src.Entities {
			key, _ := schema.KeyOf(ownerKey.Value(owner.Elem()))
			setCollection(owner, coll, groups[key])
		}
	case far.Target:
		if _, ok := g.lookup(far.Target); !ok {
			return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
				Reason: fmt.Sprintf("no set declared for %s", far.Target.Name())}
		}
		for _, owner := range src.Entities {
			key, _ := schema.KeyOf(ownerKey.Value(owner.Elem()))
			rows := groups[key]
			items := make([]reflect.Value, 0, len(rows))
			seen := make(map[uintptr]struct{}, len(rows))
			for _, row := range rows {
				nav := row.Elem().FieldByIndex(far.NavIndex)
				if nav.IsNil() {
					continue
				}
				if _, dup := seen[nav.Pointer()]; dup {
					continue
				}
				seen[nav.Pointer()] = struct{}{}
				items = append(items, nav)
			}
			setCollection(owner, coll, items)
		}
	default:
		return &schema.ConfigError{Type: src.Desc.Name, Field: coll.Name,
			Reason: fmt.Sprintf("element type %s is neither link %s nor far side %s",
				coll.Elem.Name(), link.Desc.Name, far.Target.Name())}
	}
	return nil
}

// indexByKey maps each key value to the first entity carrying it.
func indexByKey(entities []reflect.Value, key *schema.Field) map[any]reflect.Value {
	index := make(map[any]reflect.Value, len(entities))
	for _, e := range entities {
		k, ok := schema.KeyOf(key.Value(e.Elem()))
		if !ok {
			continue
		}
		if _, exists := index[k]; !exists {
			index[k] = e
		}
	}
	return index
}

// groupBy buckets entities by the value of field, keeping set order.
func groupBy(entities []reflect.Value, field *schema.Field) map[any][]reflect.Value {
	groups := make(map[any][]reflect.Value)
	for _, e := range entities {
		k, ok := schema.KeyOf(field.Value(e.Elem()))
		if !ok {
			continue
		}
		groups[k] = append(groups[k], e)
	}
	return groups
}

func setCollection(owner reflect.Value, coll *schema.Collection, items []reflect.Value) {
	s := reflect.MakeSlice(coll.Type, 0, len(items))
	s = reflect.Append(s, items...)
	owner.Elem().FieldByIndex(coll.Index).Set(s)
}
