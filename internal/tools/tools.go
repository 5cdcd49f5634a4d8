// Package tools provides the reference analytic tools run by the
// orchestrator. Every tool implements engine.Tool.
//
// Tools that work on measurements read the rows produced by the
// fetch_data invocation they depend on and never issue SQL of their own.
// Only fetch_data and analyze_float_profile reach the data source, and
// both go through the shared compiler so that their statements are
// validated and memoized like any other.
package tools

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

var (
	// ErrNoUpstream means the invocation has no fetch_data result to read.
	ErrNoUpstream = errors.New("no fetch_data result available")

	// ErrUpstreamFailed means the fetch_data invocation failed.
	ErrUpstreamFailed = errors.New("fetch_data failed")

	// ErrNoData means the fetched table is empty.
	ErrNoData = errors.New("no rows fetched")

	// ErrMissingColumn means a column the tool needs was not fetched.
	ErrMissingColumn = errors.New("required column not fetched")

	// ErrInsufficientData means too few usable values remain after
	// filtering.
	ErrInsufficientData = errors.New("insufficient data")
)

// Deps are the collaborators the reference tools share.
type Deps struct {
	Catalog  *catalog.Catalog
	Analyzer *intent.Analyzer
	Compiler *compiler.Compiler
	Source   datasource.Source

	// Searcher backs search_similar_profiles. When nil the tool is still
	// registered and every call fails.
	Searcher Searcher

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Validate checks required collaborators and fills defaults.
func (d *Deps) Validate() error {
	if d.Catalog == nil {
		return errors.New("catalog is required")
	}
	if d.Compiler == nil {
		return errors.New("compiler is required")
	}
	if d.Source == nil {
		return errors.New("data source is required")
	}
	if d.Analyzer == nil {
		d.Analyzer = intent.NewAnalyzer(d.Catalog)
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return nil
}

// NewRegistry returns a registry holding every reference tool.
func NewRegistry(d Deps) (*engine.Registry, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	q := &querier{analyzer: d.Analyzer, compiler: d.Compiler, source: d.Source, logger: d.Logger}
	caps := &CapabilitiesTool{}

	reg, err := engine.NewRegistry(
		caps,
		&SchemaTool{catalog: d.Catalog},
		&FetchTool{q: q},
		&ThermoclineTool{},
		&WaterMassTool{},
		&CompareRegionsTool{catalog: d.Catalog},
		&TrendTool{catalog: d.Catalog, clock: d.Clock},
		&MixedLayerTool{},
		&FloatProfileTool{q: q},
		&SimilarProfilesTool{searcher: d.Searcher},
	)
	if err != nil {
		return nil, err
	}
	caps.registry = reg
	return reg, nil
}

// fetched returns the fetch_data payload the call depends on.
func fetched(call engine.Call) (FetchResult, error) {
	r, ok := call.Upstream[toolplan.FetchData]
	if !ok {
		return FetchResult{}, ErrNoUpstream
	}
	if !r.Succeeded {
		return FetchResult{}, fmt.Errorf("%w: %s", ErrUpstreamFailed, r.ErrorMessage)
	}
	res, ok := r.Payload.(FetchResult)
	if !ok {
		return FetchResult{}, fmt.Errorf("unexpected fetch_data payload %T", r.Payload)
	}
	if res.Table.Len() == 0 {
		return res, ErrNoData
	}
	return res, nil
}

func requireColumns(t *datasource.Table, columns ...string) error {
	for _, c := range columns {
		if !t.Has(c) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}
