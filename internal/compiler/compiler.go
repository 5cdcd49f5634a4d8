// Package compiler turns an analysed question into one validated,
// policy-conforming SELECT against the profile table.
//
// The pipeline is: draft -> clean -> enforce -> validate -> cache. Drafting
// is pluggable (TemplateDrafter, LLMDrafter); every later stage is
// deterministic. Nearest-neighbour questions with coordinates bypass
// drafting and use the spatial builder.
package compiler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/qcache"
	"github.com/Abuzaid-01/Float-Chat/internal/spatial"
	"github.com/Abuzaid-01/Float-Chat/internal/sqlguard"
)

// Source records which branch produced a query.
type Source string

const (
	SourceTemplate Source = "template"
	SourceLLM      Source = "llm"
	SourceSpatial  Source = "spatial"
)

// CompiledQuery is a validated statement. Values returned by Compile
// always have Validated set.
type CompiledQuery struct {
	SQL        string   `json:"sql"`
	CacheKey   string   `json:"cache_key"`
	Validated  bool     `json:"validated"`
	Source     Source   `json:"source"`
	Warnings   []string `json:"warnings,omitempty"`
	Complexity int      `json:"complexity"`
	// Cached is true when this value came from the cache rather than a
	// fresh compilation.
	Cached bool `json:"cached"`
}

// Rejection is the audit record of a failed compilation.
type Rejection struct {
	Question string
	Code     ErrorCode
	Reason   string
	Draft    string
	At       time.Time
}

// AuditSink receives rejections. Errors are logged and otherwise ignored.
type AuditSink interface {
	RecordRejection(ctx context.Context, r Rejection) error
}

// Recorder observes compilations for metrics. code is empty on success.
type Recorder interface {
	ObserveCompile(source Source, code ErrorCode, cached bool, d time.Duration)
}

// Stats are cumulative counters since construction.
type Stats struct {
	Total     uint64 `json:"total"`
	CacheHits uint64 `json:"cache_hits"`
	Failures  uint64 `json:"failures"`
}

// Compiler is safe for concurrent use.
type Compiler struct {
	catalog *catalog.Catalog
	drafter Drafter
	guard   *sqlguard.Guard
	spatial *spatial.Builder
	cache   *qcache.Cache[CompiledQuery]
	audit   AuditSink
	metrics Recorder
	clock   clockwork.Clock
	logger  *slog.Logger

	total    atomic.Uint64
	hits     atomic.Uint64
	failures atomic.Uint64
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDrafter replaces the default TemplateDrafter.
func WithDrafter(d Drafter) Option {
	return func(c *Compiler) { c.drafter = d }
}

// WithCache shares a cache between compilers. By default each compiler
// owns a cache with qcache defaults.
func WithCache(cache *qcache.Cache[CompiledQuery]) Option {
	return func(c *Compiler) { c.cache = cache }
}

// WithAuditSink records rejections somewhere durable.
func WithAuditSink(s AuditSink) Option {
	return func(c *Compiler) { c.audit = s }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Compiler) { c.metrics = r }
}

// WithClock sets the clock used for timings and audit timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Compiler) { c.clock = clock }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New returns a compiler for the catalog's schema.
func New(cat *catalog.Catalog, opts ...Option) *Compiler {
	c := &Compiler{
		catalog: cat,
		guard:   sqlguard.New(cat.Schema.Table),
		spatial: spatial.NewBuilder(cat.Schema),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.drafter == nil {
		c.drafter = NewTemplateDrafter(cat)
	}
	if c.cache == nil {
		c.cache = qcache.New[CompiledQuery](qcache.Options{})
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Compile returns a validated statement for text, or a *CompileError.
//
// Results are memoized by (text, retrievalContext): a second call with the
// same pair returns the cached statement without drafting again. Failures
// are not cached.
func (c *Compiler) Compile(ctx context.Context, text string, analysis intent.Analysis, retrievalContext string) (CompiledQuery, error) {
	c.total.Add(1)
	start := c.clock.Now()
	key := qcache.Key(text, retrievalContext)

	q, cached, err := c.cache.GetOrCompute(key, func() (CompiledQuery, error) {
		return c.compile(ctx, text, analysis, retrievalContext)
	})
	elapsed := c.clock.Since(start)

	if err != nil {
		c.failures.Add(1)
		var ce *CompileError
		if !errors.As(err, &ce) {
			ce = newError(ErrCodeDraftFailed, "", err, "compilation failed")
		}
		c.reject(ctx, text, ce)
		if c.metrics != nil {
			c.metrics.ObserveCompile("", ce.Code, false, elapsed)
		}
		return CompiledQuery{}, ce
	}

	if cached {
		c.hits.Add(1)
	}
	q.CacheKey = key
	q.Cached = cached
	if c.metrics != nil {
		c.metrics.ObserveCompile(q.Source, "", cached, elapsed)
	}
	return q, nil
}

func (c *Compiler) compile(ctx context.Context, text string, a intent.Analysis, retrievalContext string) (CompiledQuery, error) {
	if c.wantsSpatial(a) {
		return c.compileSpatial(a)
	}

	draft, err := c.drafter.Draft(ctx, DraftRequest{
		Question: text,
		Analysis: a,
		Context:  retrievalContext,
		Schema:   c.catalog.Schema,
	})
	if err != nil {
		return CompiledQuery{}, newError(ErrCodeDraftFailed, "", err, "%s drafter failed", c.drafter.Name())
	}

	sql, err := Clean(draft, c.catalog.Schema.Table)
	if err != nil {
		if errors.Is(err, ErrForbiddenKeyword) {
			return CompiledQuery{}, newError(ErrCodeValidationRejected, draft, err, "draft rejected")
		}
		return CompiledQuery{}, newError(ErrCodeCleanupFailed, draft, err, "draft could not be cleaned")
	}

	sql, err = c.enforce(sql, a)
	if err != nil {
		return CompiledQuery{}, newError(ErrCodeSelfCheckFailed, draft, err, "self-check failed")
	}

	return c.finish(sql, draft, Source(c.drafter.Name()))
}

// wantsSpatial reports whether the question takes the nearest-neighbour
// branch: a point was extracted and the question asks for proximity.
func (c *Compiler) wantsSpatial(a intent.Analysis) bool {
	return a.Signals.Coordinates != nil && (a.Type == intent.TypeNearest || a.Signals.RadiusKm > 0)
}

func (c *Compiler) compileSpatial(a intent.Analysis) (CompiledQuery, error) {
	p := a.Signals.Coordinates
	radius := a.Signals.RadiusKm
	if radius == 0 {
		radius = spatial.DefaultRadiusKm
	}
	sql, err := c.spatial.BuildNearest(p.Latitude, p.Longitude, radius)
	if err != nil {
		return CompiledQuery{}, newError(ErrCodeSpatialFailed, "", err, "nearest-neighbour query")
	}
	return c.finish(sql, sql, SourceSpatial)
}

func (c *Compiler) finish(sql, draft string, source Source) (CompiledQuery, error) {
	report := c.guard.Check(sql)
	if !report.Valid {
		return CompiledQuery{}, newError(ErrCodeValidationRejected, draft, report.Err(), "statement rejected")
	}
	if len(report.Warnings) > 0 {
		c.logger.Warn("suspicious sql pattern",
			"event", "sql_audit",
			"warnings", report.Warnings,
			"sql", sql)
	}
	return CompiledQuery{
		SQL:        sql,
		Validated:  true,
		Source:     source,
		Warnings:   report.Warnings,
		Complexity: Complexity(sql),
	}, nil
}

func (c *Compiler) reject(ctx context.Context, text string, ce *CompileError) {
	c.logger.Warn("query compilation failed",
		"event", "compile_rejected",
		"code", string(ce.Code),
		"error", ce.Error())
	if c.audit == nil {
		return
	}
	err := c.audit.RecordRejection(ctx, Rejection{
		Question: text,
		Code:     ce.Code,
		Reason:   ce.Error(),
		Draft:    ce.Draft,
		At:       c.clock.Now(),
	})
	if err != nil {
		c.logger.Error("recording rejection", "error", err)
	}
}

// Stats returns the cumulative counters.
func (c *Compiler) Stats() Stats {
	return Stats{
		Total:     c.total.Load(),
		CacheHits: c.hits.Load(),
		Failures:  c.failures.Load(),
	}
}

// Cache exposes the underlying cache for inspection and purging.
func (c *Compiler) Cache() *qcache.Cache[CompiledQuery] { return c.cache }
