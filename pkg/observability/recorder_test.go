package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"expvar"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*ExpvarRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Exporter = (*ExpvarRecorder)(nil)
	_ Exporter = (*PrometheusRecorder)(nil)
)

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()
	r.Observe(ctx, "save", true, 20*time.Millisecond)
	r.Observe(ctx, "save", false, time.Millisecond)
	r.Observe(ctx, "", true, time.Second)
	r.Rows("Employees", "insert", 3)
	r.Rows("Employees", "insert", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("save", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("save", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rows.WithLabelValues("Employees", "insert")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), `miniorm_rows_total{operation="insert",table="Employees"} 3`)
	assert.Contains(t, buf.String(), "miniorm_operation_duration_seconds_bucket")
}

func TestExpvarRecorder(t *testing.T) {
	r := NewExpvarRecorder("")
	ctx := context.Background()
	r.Observe(ctx, "load", true, 2*time.Millisecond)
	r.Observe(ctx, "load", true, 3*time.Millisecond)
	r.Observe(ctx, "save", false, time.Millisecond)
	r.Observe(ctx, "", true, time.Second)
	r.Rows("Projects", "load", 4)
	r.Rows("Projects", "delete", 0)

	snap := r.Snapshot()
	load := snap.Operations["load"]
	assert.EqualValues(t, 2, load.Success)
	assert.InDelta(t, 5.0, load.TotalMS, 1e-9)
	assert.InDelta(t, 3.0, load.MaxMS, 1e-9)
	assert.EqualValues(t, 1, snap.Operations["save"].Error)
	assert.Len(t, snap.Operations, 2)
	assert.Equal(t, map[string]map[string]int64{"Projects": {"load": 4}}, snap.Rows)

	published := expvar.Get(r.Name())
	require.NotNil(t, published)
	var decoded ExpvarSnapshot
	require.NoError(t, json.Unmarshal([]byte(published.String()), &decoded))
	assert.EqualValues(t, 4, decoded.Rows["Projects"]["load"])

	snap.Rows["Projects"]["load"] = 99
	assert.EqualValues(t, 4, r.Snapshot().Rows["Projects"]["load"])

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), `"success": 2`)
}

func TestNewExporter(t *testing.T) {
	e, err := NewExporter(KindPrometheus)
	require.NoError(t, err)
	assert.IsType(t, &PrometheusRecorder{}, e)

	e, err = NewExporter(KindExpvar)
	require.NoError(t, err)
	assert.IsType(t, &ExpvarRecorder{}, e)

	_, err = NewExporter("statsd")
	require.ErrorContains(t, err, "unknown metrics exporter")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.Observe(context.Background(), "save", true, time.Second)
	r.Rows("t", "insert", 1)
}
