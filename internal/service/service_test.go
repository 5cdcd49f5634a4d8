package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/config"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/metrics"
	"github.com/Abuzaid-01/Float-Chat/internal/testutil"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
	"github.com/Abuzaid-01/Float-Chat/internal/tools"
)

type fakeLog struct {
	mu           sync.Mutex
	compilations []string
	executions   []string
	err          error
}

func (l *fakeLog) RecordCompilation(_ context.Context, requestID, _ string, _ compiler.CompiledQuery, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compilations = append(l.compilations, requestID)
	return l.err
}

func (l *fakeLog) RecordExecution(_ context.Context, report *engine.ExecutionReport, _ time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.executions = append(l.executions, report.RequestID)
	return l.err == nil, l.err
}

type fakeRecorder struct {
	outcomes    []string
	invocations []int
}

func (r *fakeRecorder) ObserveRequest(outcome string, invocations int, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
	r.invocations = append(r.invocations, invocations)
}

type fixture struct {
	svc      *Service
	log      *fakeLog
	recorder *fakeRecorder
}

func newFixture(t *testing.T, src datasource.Source, copts []compiler.Option, eopts ...engine.Option) fixture {
	t.Helper()
	cat := catalog.Default()
	clock := testutil.NewClock()
	c := compiler.New(cat, append([]compiler.Option{compiler.WithClock(clock)}, copts...)...)
	analyzer := intent.NewAnalyzer(cat)

	reg, err := tools.NewRegistry(tools.Deps{
		Catalog:  cat,
		Analyzer: analyzer,
		Compiler: c,
		Source:   src,
		Clock:    clock,
	})
	require.NoError(t, err)

	eopts = append([]engine.Option{
		engine.WithConcurrency(2),
		engine.WithClock(clock),
		engine.WithRequestIDs(engine.NewFixedGenerator("req-1", "req-2")),
	}, eopts...)
	orch := engine.New(reg, eopts...)
	t.Cleanup(orch.Close)

	f := fixture{log: &fakeLog{}, recorder: &fakeRecorder{}}
	f.svc = New(analyzer, c, toolplan.NewSelector(cat), orch,
		WithQueryLog(f.log),
		WithRecorder(f.recorder),
		WithClock(clock),
	)
	return f
}

func TestAskThermocline(t *testing.T) {
	f := newFixture(t, datasource.NewStatic(testutil.ProfileTable()), nil)

	ans, err := f.svc.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.NoError(t, err)

	assert.Equal(t, "req-1", ans.RequestID)
	assert.Equal(t, []string{toolplan.FetchData, toolplan.Thermocline}, ans.Plan.Names())
	require.NotNil(t, ans.Query)
	assert.Empty(t, ans.CompileError)
	assert.Contains(t, ans.Query.SQL, "argo_profiles")
	assert.Equal(t, metrics.OutcomeAnswered, ans.Outcome())

	assert.Equal(t, []string{"req-1"}, f.log.compilations)
	assert.Equal(t, []string{"req-1"}, f.log.executions)
	assert.Equal(t, []string{metrics.OutcomeAnswered}, f.recorder.outcomes)
	assert.Equal(t, []int{2}, f.recorder.invocations)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "thermocline_summary", []byte(ans.Summary))
}

func TestAskSharesCompiledStatement(t *testing.T) {
	var drafts atomic.Int32
	template := compiler.NewTemplateDrafter(catalog.Default())
	counting := compiler.DrafterFunc(func(ctx context.Context, req compiler.DraftRequest) (string, error) {
		drafts.Add(1)
		return template.Draft(ctx, req)
	})
	src := datasource.NewStatic(testutil.ProfileTable())
	f := newFixture(t, src, []compiler.Option{compiler.WithDrafter(counting)})

	ans, err := f.svc.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.NoError(t, err)

	res, ok := ans.Report.Result(toolplan.FetchData)
	require.True(t, ok)
	fetched := res.Payload.(tools.FetchResult)
	assert.Equal(t, ans.Query.SQL, fetched.SQL)
	assert.Equal(t, int32(1), drafts.Load())
	assert.Equal(t, []string{ans.Query.SQL}, src.Queries())
}

func TestAskSourceFailure(t *testing.T) {
	f := newFixture(t, datasource.NewFailing(errors.New("connection refused")), nil)

	ans, err := f.svc.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.NoError(t, err)

	assert.Equal(t, metrics.OutcomeFailed, ans.Outcome())
	assert.Equal(t, 2, ans.Report.Failed())
	assert.Contains(t, ans.Summary, "✗ fetch_data")
	assert.Contains(t, ans.Summary, "✗ calculate_thermocline")
	assert.NotNil(t, ans.Query, "compilation does not depend on the data source")
}

func TestAskCompileErrorIsNotFatal(t *testing.T) {
	drop := testutil.DraftAlways("DROP TABLE argo_profiles;")
	f := newFixture(t, datasource.NewStatic(testutil.ProfileTable()), []compiler.Option{compiler.WithDrafter(drop)})

	ans, err := f.svc.Ask(context.Background(), "show temperature data")
	require.NoError(t, err)

	assert.Nil(t, ans.Query)
	assert.NotEmpty(t, ans.CompileError)
	assert.Contains(t, ans.Summary, "SQL not available")
	assert.Empty(t, f.log.compilations)
	assert.Equal(t, []string{"req-1"}, f.log.executions)
}

func TestAskRefusedPlan(t *testing.T) {
	f := newFixture(t, datasource.NewStatic(testutil.ProfileTable()), nil, engine.WithMaxInvocations(1))

	_, err := f.svc.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.Error(t, err)
	assert.True(t, IsRefused(err))
	assert.Empty(t, f.recorder.outcomes)
}

func TestAskSurvivesQueryLogFailure(t *testing.T) {
	f := newFixture(t, datasource.NewStatic(testutil.ProfileTable()), nil)
	f.log.err = errors.New("disk full")

	ans, err := f.svc.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeAnswered, ans.Outcome())
}

type failingSynthesizer struct{}

func (failingSynthesizer) Synthesize(context.Context, *Answer) (string, error) {
	return "", errors.New("model unavailable")
}

func TestAskSynthesizerError(t *testing.T) {
	f := newFixture(t, datasource.NewStatic(testutil.ProfileTable()), nil)
	WithSynthesizer(failingSynthesizer{})(f.svc)

	_, err := f.svc.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestPlanAndCompile(t *testing.T) {
	f := newFixture(t, datasource.NewStatic(testutil.ProfileTable()), nil)

	plan, a := f.svc.Plan(testutil.ThermoclineQuestion)
	assert.Equal(t, "Bay of Bengal", a.Region.Name)
	assert.Equal(t, []string{toolplan.FetchData, toolplan.Thermocline}, plan.Names())

	q, a, err := f.svc.Compile(context.Background(), testutil.ThermoclineQuestion)
	require.NoError(t, err)
	assert.Equal(t, "Bay of Bengal", a.Region.Name)
	assert.True(t, q.Validated)
	assert.Equal(t, []string{""}, f.log.compilations)
	assert.Equal(t, a, f.svc.Analyze(testutil.ThermoclineQuestion))
}

func TestOutcome(t *testing.T) {
	ok := engine.ToolResult{Succeeded: true}
	bad := engine.ToolResult{}
	tests := []struct {
		name   string
		report *engine.ExecutionReport
		want   string
	}{
		{"no report", nil, metrics.OutcomeFailed},
		{"all failed", &engine.ExecutionReport{Results: []engine.ToolResult{bad}}, metrics.OutcomeFailed},
		{"some failed", &engine.ExecutionReport{Results: []engine.ToolResult{ok, bad}}, metrics.OutcomePartial},
		{"all succeeded", &engine.ExecutionReport{Results: []engine.ToolResult{ok, ok}}, metrics.OutcomeAnswered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, (&Answer{Report: tt.report}).Outcome())
		})
	}
}

func TestOpenRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.QueryLog = filepath.Join(t.TempDir(), "floatq.db")
	cfg.Engine.Concurrency = 2

	rt, err := Open(context.Background(), cfg,
		WithSource(datasource.NewStatic(testutil.ProfileTable())),
		WithRequestIDs(engine.NewFixedGenerator("req-1")),
	)
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.Store)

	ans, err := rt.Service.Ask(context.Background(), testutil.ThermoclineQuestion)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeAnswered, ans.Outcome())

	counts, err := rt.Store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Requests)
	assert.Equal(t, 2, counts.Executions)
	assert.Equal(t, 1, counts.Compilations)

	assert.Equal(t, 1.0, promtest.ToFloat64(rt.Metrics.RequestsTotal.WithLabelValues(metrics.OutcomeAnswered)))
	assert.Equal(t, 1.0, promtest.ToFloat64(rt.Metrics.ToolCallsTotal.WithLabelValues(toolplan.Thermocline, string(engine.StatusSucceeded))))
}

func TestOpenRuntimeWithoutDatabase(t *testing.T) {
	rt, err := Open(context.Background(), config.Default(),
		WithRequestIDs(engine.NewFixedGenerator("req-1")),
	)
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Store)

	ans, err := rt.Service.Ask(context.Background(), "show surface temperature")
	require.NoError(t, err)
	res, ok := ans.Report.Result(toolplan.FetchData)
	require.True(t, ok)
	assert.False(t, res.Succeeded)
	assert.Contains(t, res.ErrorMessage, ErrNoDatabase.Error())
}

func TestOpenRuntimeBadCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog = filepath.Join(t.TempDir(), "missing.cue")
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
