package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
)

var (
	_ compiler.Recorder = (*Metrics)(nil)
	_ engine.Recorder   = (*Metrics)(nil)
)

func TestObserveCompile(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCompile(compiler.SourceTemplate, "", false, 2*time.Millisecond)
	m.ObserveCompile(compiler.SourceTemplate, "", true, time.Microsecond)
	m.ObserveCompile(compiler.SourceSpatial, "", false, time.Millisecond)
	m.ObserveCompile("", compiler.ErrCodeValidationRejected, false, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.CompilationsTotal.WithLabelValues("template")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CompilationsTotal.WithLabelValues("spatial")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CompileFailures.WithLabelValues("VALIDATION_REJECTED")))
	require.Equal(t, 2, testutil.CollectAndCount(m.CompileDuration))
}

func TestObserveTool(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ToolStarted("fetch_data")
	m.ToolStarted("fetch_data")
	m.ToolStarted("calculate_thermocline")
	require.Equal(t, 2.0, testutil.ToFloat64(m.ToolsRunning.WithLabelValues("fetch_data")))

	m.ObserveTool("fetch_data", engine.StatusSucceeded, 1, 10*time.Millisecond)
	m.ObserveTool("fetch_data", engine.StatusFailed, 3, time.Second)
	m.ObserveTool("calculate_thermocline", engine.StatusSucceeded, 1, time.Millisecond)

	require.Equal(t, 0.0, testutil.ToFloat64(m.ToolsRunning.WithLabelValues("fetch_data")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ToolsRunning.WithLabelValues("calculate_thermocline")))

	require.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("fetch_data", "succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("fetch_data", "failed")))
	require.Equal(t, 3, testutil.CollectAndCount(m.ToolCallsTotal))
	require.Equal(t, 2, testutil.CollectAndCount(m.ToolDuration))
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest(OutcomeAnswered, 2, time.Second)
	m.ObserveRequest(OutcomePartial, 3, time.Second)
	m.ObserveRequest(OutcomePartial, 1, time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(OutcomePartial)))
	require.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
