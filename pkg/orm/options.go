package orm

import (
	"log/slog"

	"miniorm/internal/logging"
	"miniorm/internal/schema"
	"miniorm/pkg/observability"
)

// Validator is the predicate SaveChanges applies to every entity before
// opening a transaction.
type Validator interface {
	Valid(entity any) bool
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(entity any) bool

// Valid implements Validator.
func (f ValidatorFunc) Valid(entity any) bool { return f(entity) }

var defaultRegistry = schema.NewRegistry(schema.DefaultScalarTypes())

type options struct {
	logger    *slog.Logger
	metrics   observability.Recorder
	validator Validator
	registry  *schema.Registry
}

func defaultOptions() options {
	return options{
		logger:   logging.Discard(),
		metrics:  observability.NoopRecorder{},
		registry: defaultRegistry,
	}
}

// Option configures a Context.
type Option func(*options)

// WithLogger sets the logger for load and save events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the recorder receiving load and save outcomes.
func WithMetrics(r observability.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithValidator replaces the default `validate` struct tag predicate.
func WithValidator(v Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithRegistry uses a dedicated schema registry instead of the shared one.
func WithRegistry(r *schema.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}
