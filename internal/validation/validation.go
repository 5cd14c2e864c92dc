// Package validation implements the entity validity predicate on top of
// go-playground/validator struct tags (`validate:"required,max=50"`).
// Navigation fields are never descended into; each entity is judged on its
// own columns.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"miniorm/internal/schema"
)

// Validator checks entities against their `validate` tags.
type Validator struct {
	v        *validator.Validate
	registry *schema.Registry
}

// New returns a validator resolving navigation fields through registry.
func New(registry *schema.Registry) *Validator {
	return &Validator{
		v:        validator.New(validator.WithRequiredStructEnabled()),
		registry: registry,
	}
}

// Check returns the validation failure for entity, or nil when it is valid.
// entity must be a non-nil pointer to a struct.
func (v *Validator) Check(entity any) error {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("validate: want a non-nil struct pointer, got %T", entity)
	}
	m, err := v.registry.Inspect(rv.Elem().Type())
	if err != nil {
		return err
	}
	if navs := m.NavigationNames(); len(navs) > 0 {
		err = v.v.StructExcept(entity, navs...)
	} else {
		err = v.v.Struct(entity)
	}
	if fields := failedFields(err); len(fields) > 0 {
		return fmt.Errorf("%s: invalid %s: %w", m.Name, strings.Join(fields, ", "), err)
	}
	return err
}

// Valid reports whether entity passes Check.
func (v *Validator) Valid(entity any) bool {
	return v.Check(entity) == nil
}

// failedFields lists the field names that failed in err, if err came from Check.
func failedFields(err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]string, len(errs))
	for i, fe := range errs {
		out[i] = fe.Field()
	}
	return out
}
