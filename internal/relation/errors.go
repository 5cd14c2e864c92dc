package relation

import (
	"errors"
	"fmt"
)

// ErrReferentialIntegrity is matched by every IntegrityError.
var ErrReferentialIntegrity = errors.New("orm: referential integrity violation")

// IntegrityError reports a foreign key value with no matching target row.
type IntegrityError struct {
	Table  string
	Column string
	Value  any
	Target string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("orm: %s.%s = %v has no matching row in %s", e.Table, e.Column, e.Value, e.Target)
}

// Is lets errors.Is(err, ErrReferentialIntegrity) match any IntegrityError.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrReferentialIntegrity
}
