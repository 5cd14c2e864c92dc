// Package observability defines the metrics contract the ORM reports through
// and ships process-local and Prometheus implementations of it.
package observability

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder receives operation outcomes and per-table row counts.
type Recorder interface {
	// Observe records one load or save and how long it took.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// Rows records n rows touched in table by operation ("load", "insert", "update", "delete").
	Rows(table, operation string, n int)
}

// Exporter is a Recorder that can print what it has collected.
type Exporter interface {
	Recorder
	WriteText(w io.Writer) error
}

// Exporter kinds accepted by NewExporter.
const (
	KindPrometheus = "prometheus"
	KindExpvar     = "expvar"
)

// NewExporter builds the exporter of the given kind.
func NewExporter(kind string) (Exporter, error) {
	switch kind {
	case KindPrometheus:
		return NewPrometheusRecorder(), nil
	case KindExpvar:
		return NewExpvarRecorder(""), nil
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", kind)
	}
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// Observe implements Recorder.
func (NoopRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Rows implements Recorder.
func (NoopRecorder) Rows(string, string, int) {}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

var expvarSeq atomic.Uint64

// OperationStats aggregates one operation ("load" or "save").
type OperationStats struct {
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarSnapshot is a copy of what an ExpvarRecorder has aggregated.
type ExpvarSnapshot struct {
	Operations map[string]OperationStats   `json:"operations"`
	Rows       map[string]map[string]int64 `json:"rows"`
	RecordedAt time.Time                   `json:"recorded_at"`
}

// ExpvarRecorder keeps per-operation outcomes and per-table row counts in
// process and publishes them as one expvar JSON value.
type ExpvarRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]*OperationStats
	rows map[string]map[string]int64
}

// NewExpvarRecorder publishes a recorder under name, generating a unique name
// when empty. expvar names are process-global, so name must not be reused.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("miniorm_metrics_%d", expvarSeq.Add(1))
	}
	rec := &ExpvarRecorder{
		name: name,
		ops:  make(map[string]*OperationStats),
		rows: make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Observe implements Recorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.ops[operation]
	if !ok {
		st = &OperationStats{}
		r.ops[operation] = st
	}
	if success {
		st.Success++
	} else {
		st.Error++
	}
	st.TotalMS += ms
	st.MaxMS = max(st.MaxMS, ms)
}

// Rows implements Recorder.
func (r *ExpvarRecorder) Rows(table, operation string, n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byOp, ok := r.rows[table]
	if !ok {
		byOp = make(map[string]int64, 4)
		r.rows[table] = byOp
	}
	byOp[operation] += int64(n)
}

// Snapshot returns a copy of the aggregated metrics.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ExpvarSnapshot{
		Operations: make(map[string]OperationStats, len(r.ops)),
		Rows:       make(map[string]map[string]int64, len(r.rows)),
		RecordedAt: time.Now().UTC(),
	}
	for op, st := range r.ops {
		snap.Operations[op] = *st
	}
	for table, byOp := range r.rows {
		snap.Rows[table] = maps.Clone(byOp)
	}
	return snap
}

// WriteText writes the snapshot as indented JSON.
func (r *ExpvarRecorder) WriteText(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Snapshot())
}
