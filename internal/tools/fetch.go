package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// FetchResult is the payload of fetch_data.
type FetchResult struct {
	SQL      string          `json:"sql"`
	Source   compiler.Source `json:"source"`
	Cached   bool            `json:"cached"`
	Region   string          `json:"region"`
	RowCount int             `json:"row_count"`
	// Truncated is true when the table was cut to the requested limit.
	Truncated bool              `json:"truncated,omitempty"`
	Table     *datasource.Table `json:"table"`
}

// querier compiles a question and runs the statement.
type querier struct {
	analyzer *intent.Analyzer
	compiler *compiler.Compiler
	source   datasource.Source
	logger   *slog.Logger
}

func (q *querier) run(ctx context.Context, text string) (FetchResult, error) {
	a := q.analyzer.Analyze(text)
	cq, err := q.compiler.Compile(ctx, text, a, "")
	if err != nil {
		return FetchResult{}, fmt.Errorf("compile: %w", err)
	}
	table, err := q.source.Query(ctx, cq.SQL)
	if err != nil {
		return FetchResult{}, fmt.Errorf("query: %w", err)
	}
	q.logger.Debug("rows fetched", "rows", table.Len(), "source", cq.Source, "cached", cq.Cached)
	return FetchResult{
		SQL:      cq.SQL,
		Source:   cq.Source,
		Cached:   cq.Cached,
		Region:   a.Region.Name,
		RowCount: table.Len(),
		Table:    table,
	}, nil
}

// FetchTool compiles the question and returns the matching rows.
type FetchTool struct {
	q *querier
}

func (t *FetchTool) Name() string { return toolplan.FetchData }

func (t *FetchTool) Description() string {
	return "Compile the question to SQL and fetch matching ARGO measurements"
}

func (t *FetchTool) Call(ctx context.Context, call engine.Call) (any, error) {
	query := call.StringArg("query", call.Question)
	limit := call.IntArg("limit", toolplan.DefaultFetchLimit)

	res, err := t.q.run(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit > 0 && res.Table.Len() > limit {
		res.Table = &datasource.Table{Columns: res.Table.Columns, Rows: res.Table.Rows[:limit]}
		res.RowCount = limit
		res.Truncated = true
	}
	return res, nil
}
