package orm

import (
	"errors"
	"fmt"

	"miniorm/internal/relation"
	"miniorm/internal/schema"
)

var (
	// ErrNilEntity is returned when a nil entity is added to or removed from a set.
	ErrNilEntity = errors.New("orm: nil entity")
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = schema.ErrConfiguration
	// ErrReferentialIntegrity is matched by every *IntegrityError.
	ErrReferentialIntegrity = relation.ErrReferentialIntegrity
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("orm: validation failed")
)

// ConfigError reports entity metadata that cannot be mapped. Open fails with
// it and returns no context.
type ConfigError = schema.ConfigError

// IntegrityError reports a loaded foreign key value with no matching row in
// the target set.
type IntegrityError = relation.IntegrityError

// ValidationError aborts SaveChanges before any statement is issued. Set is
// the first set, in declaration order, holding an invalid entity; Count is the
// number of invalid entities across all sets.
type ValidationError struct {
	Set      string
	Count    int
	Entities []any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("orm: %d invalid entities found, first in set %s", e.Count, e.Set)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
