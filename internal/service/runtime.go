package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/config"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/metrics"
	"github.com/Abuzaid-01/Float-Chat/internal/qcache"
	"github.com/Abuzaid-01/Float-Chat/internal/store"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
	"github.com/Abuzaid-01/Float-Chat/internal/tools"
)

// ErrNoDatabase is returned by fetch_data when no database is configured.
var ErrNoDatabase = errors.New("no database configured")

// Runtime owns every long-lived component built from a Config.
type Runtime struct {
	Service  *Service
	Catalog  *catalog.Catalog
	Compiler *compiler.Compiler
	Tools    *engine.Registry
	// Store is nil when the query log is disabled.
	Store *store.Store
	// Metrics is registered on Registry.
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	orchestrator *engine.Orchestrator
	cache        *qcache.Cache[compiler.CompiledQuery]
	closers      []func()
}

// RuntimeOption overrides a component Open would otherwise build.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	source   datasource.Source
	drafter  compiler.Drafter
	searcher tools.Searcher
	clock    clockwork.Clock
	ids      engine.RequestIDGenerator
	logger   *slog.Logger
}

// WithSource replaces the PostgreSQL data source.
func WithSource(s datasource.Source) RuntimeOption {
	return func(o *runtimeOptions) { o.source = s }
}

// WithDrafter replaces the drafter chosen from the LLM settings.
func WithDrafter(d compiler.Drafter) RuntimeOption {
	return func(o *runtimeOptions) { o.drafter = d }
}

// WithSearcher configures search_similar_profiles.
func WithSearcher(s tools.Searcher) RuntimeOption {
	return func(o *runtimeOptions) { o.searcher = s }
}

// WithRuntimeClock sets the clock shared by every component.
func WithRuntimeClock(c clockwork.Clock) RuntimeOption {
	return func(o *runtimeOptions) { o.clock = c }
}

// WithRequestIDs sets the request ID generator.
func WithRequestIDs(g engine.RequestIDGenerator) RuntimeOption {
	return func(o *runtimeOptions) { o.ids = g }
}

// WithRuntimeLogger sets the logger shared by every component.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOptions) { o.logger = l }
}

// Open builds a Runtime. The caller must Close it.
func Open(ctx context.Context, cfg config.Config, opts ...RuntimeOption) (_ *Runtime, err error) {
	o := runtimeOptions{
		clock:  clockwork.NewRealClock(),
		ids:    engine.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.Catalog = catalog.Default()
	if cfg.Catalog != "" {
		if rt.Catalog, err = catalog.Load(cfg.Catalog); err != nil {
			return nil, err
		}
	}
	rt.Metrics = metrics.New(rt.Registry)

	source := o.source
	if source == nil {
		source, err = openSource(ctx, cfg.Database, o.logger, rt)
		if err != nil {
			return nil, err
		}
	}

	if cfg.QueryLog != "" {
		if rt.Store, err = store.Open(cfg.QueryLog); err != nil {
			return nil, fmt.Errorf("open query log: %w", err)
		}
		st := rt.Store
		rt.closers = append(rt.closers, func() { st.Close() })
	}

	rt.cache = qcache.New[compiler.CompiledQuery](qcache.Options{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
	})
	go rt.cache.Start()
	rt.closers = append(rt.closers, rt.cache.Stop)

	copts := []compiler.Option{
		compiler.WithCache(rt.cache),
		compiler.WithRecorder(rt.Metrics),
		compiler.WithClock(o.clock),
		compiler.WithLogger(o.logger),
	}
	switch {
	case o.drafter != nil:
		copts = append(copts, compiler.WithDrafter(o.drafter))
	case cfg.LLM.Enabled:
		llm := compiler.NewAnthropicCompleter(cfg.LLM.APIKey, anthropic.Model(cfg.LLM.Model), cfg.LLM.MaxTokens)
		copts = append(copts, compiler.WithDrafter(compiler.NewLLMDrafter(llm)))
	}
	if rt.Store != nil {
		copts = append(copts, compiler.WithAuditSink(rt.Store))
	}
	rt.Compiler = compiler.New(rt.Catalog, copts...)

	analyzer := intent.NewAnalyzer(rt.Catalog)
	rt.Tools, err = tools.NewRegistry(tools.Deps{
		Catalog:  rt.Catalog,
		Analyzer: analyzer,
		Compiler: rt.Compiler,
		Source:   source,
		Searcher: o.searcher,
		Clock:    o.clock,
		Logger:   o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	rt.orchestrator = engine.New(rt.Tools,
		engine.WithConcurrency(cfg.Engine.Concurrency),
		engine.WithCallTimeout(cfg.Engine.CallTimeout),
		engine.WithRetries(cfg.Engine.Attempts, cfg.Engine.RetryInterval),
		engine.WithMaxInvocations(cfg.Engine.MaxInvocations),
		engine.WithClock(o.clock),
		engine.WithRequestIDs(o.ids),
		engine.WithLogger(o.logger),
		engine.WithRecorder(rt.Metrics),
	)
	rt.closers = append(rt.closers, rt.orchestrator.Close)

	sopts := []Option{
		WithRecorder(rt.Metrics),
		WithClock(o.clock),
		WithLogger(o.logger),
	}
	if rt.Store != nil {
		sopts = append(sopts, WithQueryLog(rt.Store))
	}
	rt.Service = New(analyzer, rt.Compiler, toolplan.NewSelector(rt.Catalog), rt.orchestrator, sopts...)
	return rt, nil
}

func openSource(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger, rt *Runtime) (datasource.Source, error) {
	if cfg.DSN == "" {
		logger.Warn("no database configured, fetch_data will fail")
		return datasource.NewFailing(ErrNoDatabase), nil
	}
	pg, err := datasource.NewPostgres(ctx, datasource.PostgresConfig{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, pg.Close)
	return pg, nil
}

// Close releases components in reverse order of construction.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
