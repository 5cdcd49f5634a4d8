package tools

import (
	"context"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// CapabilitiesTool lists the registered tools.
type CapabilitiesTool struct {
	registry *engine.Registry
}

func (t *CapabilitiesTool) Name() string { return toolplan.ListCapabilities }

func (t *CapabilitiesTool) Description() string {
	return "List the analytic tools available to answer questions"
}

func (t *CapabilitiesTool) Call(context.Context, engine.Call) (any, error) {
	if t.registry == nil {
		return []engine.ToolInfo{}, nil
	}
	return t.registry.Describe(), nil
}

// SchemaResult is the payload of describe_schema.
type SchemaResult struct {
	Version string           `json:"version"`
	Table   string           `json:"table"`
	Columns []catalog.Column `json:"columns"`
	Quality catalog.Quality  `json:"quality"`
	Regions []string         `json:"regions"`
}

// SchemaTool describes the measurement table.
type SchemaTool struct {
	catalog *catalog.Catalog
}

func (t *SchemaTool) Name() string { return toolplan.DescribeSchema }

func (t *SchemaTool) Description() string {
	return "Describe the argo_profiles table, its columns and quality flags"
}

func (t *SchemaTool) Call(context.Context, engine.Call) (any, error) {
	res := SchemaResult{
		Version: t.catalog.Version,
		Table:   t.catalog.Schema.Table,
		Columns: t.catalog.Schema.Columns,
		Quality: t.catalog.Schema.Quality,
	}
	for _, r := range t.catalog.Regions {
		res.Regions = append(res.Regions, r.Name)
	}
	return res, nil
}
