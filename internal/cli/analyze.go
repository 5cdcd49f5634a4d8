package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <question>",
		Short: "Classify a question without compiling it",
		Long: `Analyze a question: detect its type, region, parameters, time period,
depth zone and complexity. No database or language model is used.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			a := intent.NewAnalyzer(cat).Analyze(question(args))
			return rootOpts.formatter(cmd).Render(a, func(w io.Writer) { writeAnalysis(w, a) })
		},
	}
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <question>",
		Short: "Show the tools a question would run",
		Long: `Select the tool invocations for a question without executing them.

Invocations sharing a level have no dependency on each other and run
concurrently.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			q := question(args)
			a := intent.NewAnalyzer(cat).Analyze(q)
			plan := toolplan.NewSelector(cat).Select(q, a)
			levels, err := plan.Levels()
			if err != nil {
				return rootOpts.formatter(cmd).Fail(ExitFailure, ErrCodePlanRefused, err.Error(), nil)
			}
			return rootOpts.formatter(cmd).Render(plan, func(w io.Writer) {
				for i, level := range levels {
					fmt.Fprintf(w, "Level %d:\n", i+1)
					for _, inv := range level {
						fmt.Fprintf(w, "  %s", inv.ID)
						if len(inv.DependsOn) > 0 {
							fmt.Fprintf(w, " (after %s)", strings.Join(inv.DependsOn, ", "))
						}
						fmt.Fprintln(w)
					}
				}
			})
		},
	}
}

// question joins the positional args so that quoting is optional.
func question(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func writeAnalysis(w io.Writer, a intent.Analysis) {
	fmt.Fprintf(w, "Type:        %s\n", a.Type)
	fmt.Fprintf(w, "Region:      %s\n", a.Region.Name)
	if b := a.Region.Bounds; b != nil {
		fmt.Fprintf(w, "Bounds:      lat %g..%g, lon %g..%g\n", b.LatMin, b.LatMax, b.LonMin, b.LonMax)
	}
	fmt.Fprintf(w, "Parameters:  %s\n", strings.Join(a.Parameters, ", "))
	fmt.Fprintf(w, "Time period: %s\n", a.TimePeriod.Label)
	if a.DepthZone != nil {
		fmt.Fprintf(w, "Depth zone:  %s\n", a.DepthZone.Name)
	}
	if c := a.Signals.Coordinates; c != nil {
		fmt.Fprintf(w, "Point:       %.4f, %.4f\n", c.Latitude, c.Longitude)
	}
	if len(a.Signals.FloatIDs) > 0 {
		fmt.Fprintf(w, "Floats:      %s\n", strings.Join(a.Signals.FloatIDs, ", "))
	}
	fmt.Fprintf(w, "Complexity:  %d\n", a.Complexity)
}
