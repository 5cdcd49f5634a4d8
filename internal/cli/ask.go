package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/metrics"
	"github.com/Abuzaid-01/Float-Chat/internal/service"
)

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question end to end",
		Long: `Answer a question: compile it, plan the analysis tools, run them
concurrently against the database and summarize the results.

The request is written to the query log when one is configured.

Exit codes:
  0 - At least one tool succeeded
  1 - Every tool failed, or the plan was refused
  2 - Command error (bad config, etc.)

Examples:
  floatq ask "Calculate thermocline in the Bay of Bengal"
  floatq ask --format json "Compare salinity between Arabian Sea and Bay of Bengal"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(rootOpts, question(args), cmd)
		},
	}
}

func runAsk(opts *RootOptions, q string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	rt, _, _, err := opts.openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ans, err := rt.Service.Ask(cmd.Context(), q)
	if err != nil {
		if service.IsRefused(err) {
			return formatter.Fail(ExitFailure, ErrCodePlanRefused, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "failed to answer", err)
	}

	formatter.VerboseLog("request %s: %d tool(s) in %s", ans.RequestID, len(ans.Plan.Invocations), ans.Elapsed)
	if err := formatter.Render(ans, func(w io.Writer) { fmt.Fprint(w, ans.Summary) }); err != nil {
		return err
	}
	if ans.Outcome() == metrics.OutcomeFailed {
		return &ExitError{Code: ExitFailure, Message: "no tool succeeded", Reported: true}
	}
	return nil
}
