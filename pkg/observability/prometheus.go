package observability

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusRecorder exports ORM metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rows       *prometheus.CounterVec
}

// NewPrometheusRecorder registers the ORM collectors on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miniorm",
			Name:      "operations_total",
			Help:      "Loads and saves by outcome.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "miniorm",
			Name:      "operation_duration_seconds",
			Help:      "Duration of loads and saves.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miniorm",
			Name:      "rows_total",
			Help:      "Rows loaded or written per table.",
		}, []string{"table", "operation"}),
	}
	r.registry.MustRegister(r.operations, r.latency, r.rows)
	return r
}

// Registry exposes the underlying registry for HTTP exposition.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe implements Recorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, status(success)).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Rows implements Recorder.
func (r *PrometheusRecorder) Rows(table, operation string, n int) {
	if n <= 0 {
		return
	}
	r.rows.WithLabelValues(table, operation).Add(float64(n))
}

// WriteText writes every gathered metric family in the text exposition format.
func (r *PrometheusRecorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
