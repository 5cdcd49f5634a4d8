package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
)

// CatalogSummary counts what a catalog defines.
type CatalogSummary struct {
	Version    string `json:"version"`
	Table      string `json:"table"`
	Columns    int    `json:"columns"`
	Regions    int    `json:"regions"`
	Parameters int    `json:"parameters"`
	QueryTypes int    `json:"query_types"`
	DepthZones int    `json:"depth_zones"`
	Locations  int    `json:"locations"`
}

// ValidationIssue is one problem found in a catalog.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Path    string            `json:"path"`
	Catalog *CatalogSummary   `json:"catalog,omitempty"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [catalog.cue]",
		Short: "Validate a domain catalog",
		Long: `Validate a CUE domain catalog: schema, regions, keyword rules, depth
zones and locations. Without an argument the catalog from the config
(or the embedded default) is checked.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := rootOpts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Catalog
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	label := path
	cat := catalog.Default()
	if path == "" {
		label = "(embedded)"
	} else {
		var err error
		cat, err = catalog.Load(path)
		if err != nil {
			res := ValidationResult{Path: label, Errors: []ValidationIssue{issueFor(err)}}
			if opts.Format == "json" {
				if err := formatter.Error(ErrCodeConfig, "catalog invalid", res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s\n", label)
				for _, e := range res.Errors {
					fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Field, e.Message)
				}
			}
			return &ExitError{Code: ExitFailure, Message: "catalog invalid", Reported: true}
		}
	}

	formatter.VerboseLog("loaded catalog %s", label)
	sum := &CatalogSummary{
		Version:    cat.Version,
		Table:      cat.Schema.Table,
		Columns:    len(cat.Schema.Columns),
		Regions:    len(cat.Regions),
		Parameters: len(cat.Parameters),
		QueryTypes: len(cat.QueryTypes),
		DepthZones: len(cat.DepthZones),
		Locations:  len(cat.Locations),
	}
	return formatter.Render(ValidationResult{Valid: true, Path: label, Catalog: sum}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s (version %s)\n", label, sum.Version)
		fmt.Fprintf(w, "  table %s: %d columns\n", sum.Table, sum.Columns)
		fmt.Fprintf(w, "  %d regions, %d parameters, %d query types, %d depth zones, %d locations\n",
			sum.Regions, sum.Parameters, sum.QueryTypes, sum.DepthZones, sum.Locations)
	})
}

func issueFor(err error) ValidationIssue {
	var le *catalog.LoadError
	if errors.As(err, &le) {
		issue := ValidationIssue{Field: le.Field, Message: le.Message}
		if le.Pos.IsValid() {
			issue.Line = le.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Field: "catalog", Message: err.Error()}
}
