// Package service answers questions end to end.
//
// Ask analyzes the question once, then compiles the SQL artifact and
// executes the tool plan concurrently. The SQL artifact and the plan's
// fetch_data invocation share the compiler's cache, so the statement is
// drafted only once. A failed compilation does not fail the request: the
// Answer carries the error and the plan still runs.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/metrics"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// QueryLog persists compilations and executions. Implemented by
// store.Store.
type QueryLog interface {
	RecordCompilation(ctx context.Context, requestID, question string, q compiler.CompiledQuery, at time.Time) error
	RecordExecution(ctx context.Context, report *engine.ExecutionReport, at time.Time) (bool, error)
}

// RequestRecorder observes answered questions. Implemented by
// metrics.Metrics.
type RequestRecorder interface {
	ObserveRequest(outcome string, invocations int, d time.Duration)
}

// Answer is the complete result of one question.
type Answer struct {
	RequestID string          `json:"request_id"`
	Question  string          `json:"question"`
	Analysis  intent.Analysis `json:"analysis"`
	// Query is nil when compilation failed; CompileError then holds the
	// reason.
	Query        *compiler.CompiledQuery `json:"query,omitempty"`
	CompileError string                  `json:"compile_error,omitempty"`
	Plan         toolplan.Plan           `json:"plan"`
	Report       *engine.ExecutionReport `json:"report"`
	Summary      string                  `json:"summary"`
	Elapsed      time.Duration           `json:"elapsed"`
}

// Outcome classifies the answer by how many invocations succeeded.
func (a *Answer) Outcome() string {
	switch {
	case a.Report == nil || a.Report.Succeeded() == 0:
		return metrics.OutcomeFailed
	case a.Report.Failed() > 0:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeAnswered
	}
}

// Service is safe for concurrent use.
type Service struct {
	analyzer     *intent.Analyzer
	compiler     *compiler.Compiler
	selector     *toolplan.Selector
	orchestrator *engine.Orchestrator
	synthesizer  Synthesizer
	queryLog     QueryLog
	recorder     RequestRecorder
	clock        clockwork.Clock
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSynthesizer replaces the default SummarySynthesizer.
func WithSynthesizer(s Synthesizer) Option {
	return func(svc *Service) { svc.synthesizer = s }
}

// WithQueryLog records every compilation and execution.
func WithQueryLog(l QueryLog) Option {
	return func(svc *Service) { svc.queryLog = l }
}

// WithRecorder reports request outcomes.
func WithRecorder(r RequestRecorder) Option {
	return func(svc *Service) { svc.recorder = r }
}

// WithClock sets the clock used for timestamps and elapsed time.
func WithClock(c clockwork.Clock) Option {
	return func(svc *Service) { svc.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// New returns a service over the given components.
func New(analyzer *intent.Analyzer, c *compiler.Compiler, selector *toolplan.Selector, orch *engine.Orchestrator, opts ...Option) *Service {
	svc := &Service{
		analyzer:     analyzer,
		compiler:     c,
		selector:     selector,
		orchestrator: orch,
		synthesizer:  SummarySynthesizer{},
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Analyze classifies a question.
func (s *Service) Analyze(question string) intent.Analysis {
	return s.analyzer.Analyze(question)
}

// Compile analyzes and compiles a question without running any tools.
func (s *Service) Compile(ctx context.Context, question string) (compiler.CompiledQuery, intent.Analysis, error) {
	a := s.analyzer.Analyze(question)
	q, err := s.compiler.Compile(ctx, question, a, "")
	if err != nil {
		return compiler.CompiledQuery{}, a, err
	}
	s.recordCompilation(ctx, "", question, q)
	return q, a, nil
}

// Plan analyzes a question and returns the tool plan without running it.
func (s *Service) Plan(question string) (toolplan.Plan, intent.Analysis) {
	a := s.analyzer.Analyze(question)
	return s.selector.Select(question, a), a
}

// Ask answers a question. It returns an error only when the plan is
// refused or the synthesizer fails; tool and compilation failures are
// reported inside the Answer.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	start := s.clock.Now()
	ans := &Answer{Question: question, Analysis: s.analyzer.Analyze(question)}
	ans.Plan = s.selector.Select(question, ans.Analysis)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.compiler.Compile(gctx, question, ans.Analysis, "")
		if err != nil {
			ans.CompileError = err.Error()
			return nil
		}
		ans.Query = &q
		return nil
	})
	g.Go(func() error {
		report, err := s.orchestrator.Execute(gctx, ans.Plan)
		if err != nil {
			return fmt.Errorf("execute plan: %w", err)
		}
		ans.Report = report
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ans.RequestID = ans.Report.RequestID

	if ans.Query != nil {
		s.recordCompilation(ctx, ans.RequestID, question, *ans.Query)
	}
	s.recordExecution(ctx, ans.Report)

	summary, err := s.synthesizer.Synthesize(ctx, ans)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	ans.Summary = summary
	ans.Elapsed = s.clock.Since(start)

	if s.recorder != nil {
		s.recorder.ObserveRequest(ans.Outcome(), len(ans.Plan.Invocations), ans.Elapsed)
	}
	s.logger.Info("question answered",
		"request_id", ans.RequestID,
		"outcome", ans.Outcome(),
		"tools", ans.Plan.Names(),
		"elapsed", ans.Elapsed)
	return ans, nil
}

// Query log failures never fail a request.
func (s *Service) recordCompilation(ctx context.Context, requestID, question string, q compiler.CompiledQuery) {
	if s.queryLog == nil {
		return
	}
	if err := s.queryLog.RecordCompilation(ctx, requestID, question, q, s.clock.Now()); err != nil {
		s.logger.Error("recording compilation", "error", err)
	}
}

func (s *Service) recordExecution(ctx context.Context, report *engine.ExecutionReport) {
	if s.queryLog == nil {
		return
	}
	if _, err := s.queryLog.RecordExecution(ctx, report, s.clock.Now()); err != nil {
		s.logger.Error("recording execution", "error", err)
	}
}

// IsRefused reports whether Ask failed because the plan was refused.
func IsRefused(err error) bool {
	return engine.IsInvalidPlan(err)
}
