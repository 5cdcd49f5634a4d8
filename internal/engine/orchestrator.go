package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// Defaults applied by New.
const (
	DefaultConcurrency   = 8
	DefaultCallTimeout   = 30 * time.Second
	DefaultRetryInterval = 200 * time.Millisecond
)

// Recorder observes invocations for metrics. Every ToolStarted is
// followed by exactly one ObserveTool for the same tool.
type Recorder interface {
	ToolStarted(tool string)
	ObserveTool(tool string, status Status, attempts int, d time.Duration)
}

// Orchestrator runs plans against a Registry. It is safe for concurrent
// use; the worker pool bounds concurrency across all requests.
type Orchestrator struct {
	registry *Registry
	pool     pond.Pool
	ownsPool bool

	callTimeout    time.Duration
	maxAttempts    uint
	retryInterval  time.Duration
	maxInvocations int

	clock   clockwork.Clock
	ids     RequestIDGenerator
	logger  *slog.Logger
	metrics Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sizes the worker pool New creates.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pool = pond.NewPool(n)
			o.ownsPool = true
		}
	}
}

// WithPool shares an existing pool. The orchestrator will not stop it.
func WithPool(p pond.Pool) Option {
	return func(o *Orchestrator) {
		o.pool = p
		o.ownsPool = false
	}
}

// WithCallTimeout sets the deadline for each tool attempt. Zero disables
// the deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithRetries allows up to attempts tries per invocation with exponential
// backoff starting at initial. The default of one attempt never retries.
func WithRetries(attempts uint, initial time.Duration) Option {
	return func(o *Orchestrator) {
		o.maxAttempts = max(attempts, 1)
		if initial > 0 {
			o.retryInterval = initial
		}
	}
}

// WithMaxInvocations bounds plan size. Zero disables the check.
func WithMaxInvocations(n int) Option {
	return func(o *Orchestrator) { o.maxInvocations = n }
}

// WithClock sets the clock used for durations.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithRequestIDs sets the request ID generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// New returns an orchestrator for the tools in registry.
func New(registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:       registry,
		callTimeout:    DefaultCallTimeout,
		maxAttempts:    1,
		retryInterval:  DefaultRetryInterval,
		maxInvocations: DefaultMaxInvocations,
		clock:          clockwork.NewRealClock(),
		ids:            UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pool == nil {
		o.pool = pond.NewPool(DefaultConcurrency)
		o.ownsPool = true
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Close stops the worker pool if the orchestrator created it, waiting
// for running invocations.
func (o *Orchestrator) Close() {
	if o.ownsPool {
		o.pool.StopAndWait()
	}
}

// Execute runs every invocation of plan and returns the report. The only
// error is a refused plan (*ExecutionError with ErrCodeInvalidPlan or
// ErrCodeQuotaExceeded); tool failures are recorded in the report.
//
// Cancelling ctx fails every invocation that has not finished with
// ErrCodeCancelled; Execute still returns a complete report.
func (o *Orchestrator) Execute(ctx context.Context, plan toolplan.Plan) (*ExecutionReport, error) {
	if err := checkQuota(len(plan.Invocations), o.maxInvocations); err != nil {
		return nil, err
	}
	levels, err := plan.Levels()
	if err != nil {
		return nil, &ExecutionError{Code: ErrCodeInvalidPlan, Message: "plan cannot be executed", Err: err}
	}

	start := o.clock.Now()
	report := &ExecutionReport{
		RequestID: o.ids.Generate(),
		Question:  plan.Question,
		Results:   make([]ToolResult, len(plan.Invocations)),
	}
	index := make(map[string]int, len(plan.Invocations))
	for i, inv := range plan.Invocations {
		index[inv.ID] = i
		report.Results[i] = ToolResult{ToolName: inv.Name, InvocationID: inv.ID, Status: StatusPending}
	}

	var seq Sequence
	for _, level := range levels {
		group := o.pool.NewGroup()
		for _, inv := range level {
			call := Call{
				Invocation: inv,
				Question:   plan.Question,
				Upstream:   upstream(inv, report.Results, index),
			}
			slot := &report.Results[index[inv.ID]]
			group.Submit(func() {
				slot.Status = StatusRunning
				if o.metrics != nil {
					o.metrics.ToolStarted(inv.Name)
				}
				*slot = o.run(ctx, call, &seq)
			})
		}
		// tasks never return errors; failures live in the results
		_ = group.Wait()
	}

	report.Elapsed = o.clock.Since(start)
	o.logger.Debug("plan executed",
		"request_id", report.RequestID,
		"invocations", len(report.Results),
		"failed", report.Failed(),
		"elapsed", report.Elapsed)
	return report, nil
}

// upstream collects the finished results inv depends on, keyed by tool
// name. Called only after every earlier level has completed.
func upstream(inv toolplan.Invocation, results []ToolResult, index map[string]int) map[string]ToolResult {
	if len(inv.DependsOn) == 0 {
		return nil
	}
	out := make(map[string]ToolResult, len(inv.DependsOn))
	for _, dep := range inv.DependsOn {
		r := results[index[dep]]
		out[r.ToolName] = r
	}
	return out
}

func (o *Orchestrator) run(ctx context.Context, call Call, seq *Sequence) ToolResult {
	inv := call.Invocation
	start := o.clock.Now()

	payload, attempts, err := o.call(ctx, call)

	res := ToolResult{
		ToolName:     inv.Name,
		InvocationID: inv.ID,
		Attempts:     attempts,
		Duration:     o.clock.Since(start),
	}
	if err != nil {
		res.Status = StatusFailed
		res.ErrorMessage = err.Error()
		res.Err = err
		var ee *ExecutionError
		if errors.As(err, &ee) {
			res.ErrorCode = string(ee.Code)
		}
		o.logger.Warn("tool failed",
			"tool", inv.Name,
			"invocation", inv.ID,
			"attempts", attempts,
			"error", err)
	} else {
		res.Status = StatusSucceeded
		res.Succeeded = true
		res.Payload = payload
	}
	res.Seq = seq.Next()

	if o.metrics != nil {
		o.metrics.ObserveTool(inv.Name, res.Status, attempts, res.Duration)
	}
	return res
}

// call resolves the tool and runs it with retries. attempts counts
// calls actually made.
func (o *Orchestrator) call(ctx context.Context, call Call) (any, int, error) {
	inv := call.Invocation
	tool, ok := o.registry.Lookup(inv.Name)
	if !ok {
		return nil, 0, &ExecutionError{
			Code:         ErrCodeUnknownTool,
			Message:      fmt.Sprintf("no tool registered as %q", inv.Name),
			ToolName:     inv.Name,
			InvocationID: inv.ID,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, o.cancelled(inv, err)
	}

	attempts := 0
	op := func() (any, error) {
		attempts++
		v, err := o.attempt(ctx, tool, call)
		if err != nil {
			var ee *ExecutionError
			if errors.As(err, &ee) && permanent(ee.Code) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return v, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryInterval
	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(o.maxAttempts))
	if err != nil {
		var ee *ExecutionError
		if !errors.As(err, &ee) {
			// the context ended while waiting between attempts
			return nil, attempts, o.cancelled(inv, err)
		}
		return nil, attempts, err
	}
	return v, attempts, nil
}

type outcome struct {
	value any
	err   error
}

// attempt makes one call under the per-call deadline. A tool that ignores
// its context is abandoned when the deadline passes.
func (o *Orchestrator) attempt(ctx context.Context, tool Tool, call Call) (any, error) {
	inv := call.Invocation
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &ExecutionError{
					Code:         ErrCodePanic,
					Message:      fmt.Sprintf("tool panicked: %v", r),
					ToolName:     inv.Name,
					InvocationID: inv.ID,
				}}
			}
		}()
		v, err := tool.Call(callCtx, call)
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		select {
		case out = <-done:
		default:
			out = outcome{err: callCtx.Err()}
		}
	}
	if out.err == nil {
		return out.value, nil
	}

	var ee *ExecutionError
	switch {
	case errors.As(out.err, &ee) && ee.Code == ErrCodePanic:
		return nil, ee
	case ctx.Err() != nil:
		return nil, o.cancelled(inv, out.err)
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return nil, &ExecutionError{
			Code:         ErrCodeTimeout,
			Message:      fmt.Sprintf("no result within %s", o.callTimeout),
			ToolName:     inv.Name,
			InvocationID: inv.ID,
			Err:          out.err,
		}
	default:
		return nil, &ExecutionError{
			Code:         ErrCodeToolFailed,
			Message:      "tool returned an error",
			ToolName:     inv.Name,
			InvocationID: inv.ID,
			Err:          out.err,
		}
	}
}

func (o *Orchestrator) cancelled(inv toolplan.Invocation, err error) *ExecutionError {
	return &ExecutionError{
		Code:         ErrCodeCancelled,
		Message:      "request cancelled",
		ToolName:     inv.Name,
		InvocationID: inv.ID,
		Err:          err,
	}
}
