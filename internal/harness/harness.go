package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/config"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/service"
)

// RequestID is the request ID every scenario runs under.
const RequestID = "scenario-request"

// Options adjusts how scenarios run.
type Options struct {
	// CatalogPath selects a CUE catalog. Empty uses the embedded one.
	CatalogPath string
	// Logger receives pipeline logs. Nil discards them.
	Logger *slog.Logger
}

// Run executes a scenario through the full pipeline and evaluates its
// assertions.
//
// Each scenario gets a fresh runtime: an in-memory query log, a static
// data source serving the scenario's table, a fake clock and a fixed
// request ID. Identical scenarios therefore produce identical traces.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := scenario.Now
	if now.IsZero() {
		now = DefaultNow
	}

	var src datasource.Source = datasource.NewStatic(scenario.Data.Table())
	if scenario.SourceError != "" {
		src = datasource.NewFailing(errors.New(scenario.SourceError))
	}

	cfg := config.Default()
	cfg.Catalog = opts.CatalogPath
	cfg.QueryLog = ":memory:"
	cfg.Engine.Concurrency = 2

	ropts := []service.RuntimeOption{
		service.WithSource(src),
		service.WithRuntimeClock(clockwork.NewFakeClockAt(now)),
		service.WithRequestIDs(engine.NewFixedGenerator(RequestID)),
		service.WithRuntimeLogger(logger),
	}
	if scenario.Draft != "" {
		draft := scenario.Draft
		ropts = append(ropts, service.WithDrafter(compiler.DrafterFunc(
			func(context.Context, compiler.DraftRequest) (string, error) { return draft, nil },
		)))
	}

	rt, err := service.Open(ctx, cfg, ropts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open runtime: %w", err)
	}
	defer rt.Close()

	ans, err := rt.Service.Ask(ctx, scenario.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to answer: %w", err)
	}

	result := NewResult()
	result.Answer = ans
	result.Trace = traceOf(ans)
	for _, msg := range EvaluateAssertions(ans, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
