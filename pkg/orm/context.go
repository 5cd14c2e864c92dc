// Package orm maps Go structs to relational tables. A Context loads every
// declared set in full when it is opened, wires navigation references and
// collections between the loaded entities, tracks changes made through the
// sets and writes them back atomically in SaveChanges.
package orm

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"miniorm/internal/logging"
	"miniorm/internal/relation"
	"miniorm/internal/schema"
	"miniorm/internal/validation"
	"miniorm/pkg/observability"
	"miniorm/pkg/store"
)

// Context owns the sets of one model and the store they are loaded from. It
// is not safe for concurrent use.
type Context struct {
	db        *store.DB
	sets      []entitySet
	byType    map[reflect.Type]entitySet
	logger    *slog.Logger
	metrics   observability.Recorder
	validator Validator
}

// Open allocates every exported *Set[T] field of model, which must be a
// pointer to a struct, and loads each set from the table of the same name.
// Sets are persisted in field declaration order.
func Open(ctx context.Context, db *store.DB, model any, opts ...Option) (_ *Context, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		o.validator = validation.New(o.registry)
	}
	c := &Context{
		db:        db,
		byType:    make(map[reflect.Type]entitySet),
		logger:    o.logger,
		metrics:   o.metrics,
		validator: o.validator,
	}

	start := time.Now()
	defer func() { o.metrics.Observe(ctx, "load", err == nil, time.Since(start)) }()

	models, err := c.declare(model, o.registry)
	if err != nil {
		return nil, err
	}
	if err := c.load(ctx, models); err != nil {
		return nil, err
	}
	sources := make([]relation.Source, len(c.sets))
	for i, s := range c.sets {
		sources[i] = s.source()
	}
	if err := relation.Map(sources); err != nil {
		return nil, err
	}
	return c, nil
}

// declare finds and allocates the set fields of model.
func (c *Context) declare(model any, registry *schema.Registry) ([]*schema.Model, error) {
	rv := reflect.ValueOf(model)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("orm: model must be a non-nil pointer to a struct, got %T", model)
	}
	rv = rv.Elem()
	rt := rv.Type()
	var models []*schema.Model
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if sf.Anonymous || !sf.Type.Implements(entitySetType) {
			continue
		}
		if !sf.IsExported() {
			return nil, &ConfigError{Type: rt.Name(), Field: sf.Name, Reason: "set fields must be exported"}
		}
		fv := rv.Field(i)
		if fv.IsNil() {
			fv.Set(reflect.New(sf.Type.Elem()))
		}
		set := fv.Interface().(entitySet)
		et := set.entityType()
		if prev, dup := c.byType[et]; dup {
			return nil, &ConfigError{Type: et.Name(), Reason: fmt.Sprintf("declared by both %s and %s", prev.Name(), sf.Name)}
		}
		m, err := registry.Inspect(et)
		if err != nil {
			return nil, err
		}
		set.bind(sf.Name, nil)
		c.sets = append(c.sets, set)
		c.byType[et] = set
		models = append(models, m)
	}
	if len(c.sets) == 0 {
		return nil, &ConfigError{Type: rt.Name(), Reason: "no *orm.Set fields declared"}
	}
	return models, nil
}

// load binds every set to its table and fetches its rows over one connection.
func (c *Context) load(ctx context.Context, models []*schema.Model) error {
	sess, err := c.db.Session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	log := logging.WithOperation(c.logger, "load")
	for i, set := range c.sets {
		m := models[i]
		table := set.Name()
		if override, ok := m.TableOverride(); ok {
			table = override
		}
		columns, err := sess.ColumnNames(ctx, table)
		if err != nil {
			return err
		}
		desc, err := schema.Bind(m, set.Name(), columns)
		if err != nil {
			return err
		}
		set.bind(set.Name(), desc)
		rows, err := sess.FetchRows(ctx, desc.Table, desc.ColumnNames())
		if err != nil {
			return err
		}
		if err := set.load(rows); err != nil {
			return err
		}
		c.metrics.Rows(desc.Table, "load", len(rows))
		logging.WithSet(log, set.Name(), desc.Table).DebugContext(ctx, "loaded", "rows", len(rows), "columns", len(desc.Columns))
	}
	return nil
}

func (c *Context) resolve(t reflect.Type) (relation.Target, bool) {
	s, ok := c.byType[t]
	if !ok {
		return relation.Target{}, false
	}
	return s.target(), true
}

// SetNames returns the declared set names in persistence order.
func (c *Context) SetNames() []string {
	names := make([]string, len(c.sets))
	for i, s := range c.sets {
		names[i] = s.Name()
	}
	return names
}

// Store returns the store the context was opened on.
func (c *Context) Store() *store.DB { return c.db }
