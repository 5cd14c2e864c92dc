package schema

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every mapping configuration error.
var ErrConfiguration = errors.New("orm: invalid mapping configuration")

// ConfigError reports entity metadata that cannot be mapped. It is raised while a
// context is being opened; a context that failed with it is never usable.
type ConfigError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("orm: invalid mapping for %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("orm: invalid mapping for %s.%s: %s", e.Type, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(typ, field, format string, args ...any) *ConfigError {
	return &ConfigError{Type: typ, Field: field, Reason: fmt.Sprintf(format, args...)}
}
