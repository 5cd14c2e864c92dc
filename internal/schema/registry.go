package schema

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry inspects entity types once and caches the resulting models.
type Registry struct {
	types  TypeSet
	models *xsync.MapOf[reflect.Type, *Model]
}

// NewRegistry creates a registry persisting the given scalar types.
func NewRegistry(types TypeSet) *Registry {
	return &Registry{
		types:  types,
		models: xsync.NewMapOf[reflect.Type, *Model](),
	}
}

// Inspect returns the model of t, building it on first use.
func (r *Registry) Inspect(t reflect.Type) (*Model, error) {
	if m, ok := r.models.Load(t); ok {
		return m, nil
	}
	m, err := inspect(t, r.types)
	if err != nil {
		return nil, err
	}
	actual, _ := r.models.LoadOrStore(t, m)
	return actual, nil
}

func (r *Registry) cached() int { return r.models.Size() }
