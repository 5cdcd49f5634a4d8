package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
)

// CompileOutput is the JSON payload of the compile command.
type CompileOutput struct {
	Query    compiler.CompiledQuery `json:"query"`
	Analysis intent.Analysis        `json:"analysis"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <question>",
		Short: "Compile a question to validated SQL",
		Long: `Compile a question to a single read-only SELECT over the ARGO profile
table. The statement is validated but not executed.

Drafts come from the language model when llm.enabled is set and
ANTHROPIC_API_KEY is present, and from templates otherwise. Rejected
drafts are written to the query log when one is configured.

Exit codes:
  0 - Compiled
  1 - The question could not be compiled safely
  2 - Command error (bad config, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, question(args), cmd)
		},
	}
}

func runCompile(opts *RootOptions, q string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	rt, _, _, err := opts.openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	cq, a, err := rt.Service.Compile(cmd.Context(), q)
	if err != nil {
		details := map[string]string{"stage": string(compiler.CodeOf(err))}
		return formatter.Fail(ExitFailure, ErrCodeCompile, err.Error(), details)
	}

	formatter.VerboseLog("type=%s region=%s complexity=%d", a.Type, a.Region.Name, cq.Complexity)
	return formatter.Render(CompileOutput{Query: cq, Analysis: a}, func(w io.Writer) {
		fmt.Fprintln(w, cq.SQL)
		fmt.Fprintf(w, "\n-- source: %s, complexity: %d", cq.Source, cq.Complexity)
		if cq.Cached {
			fmt.Fprint(w, ", cached")
		}
		fmt.Fprintln(w)
		for _, warn := range cq.Warnings {
			fmt.Fprintf(w, "-- warning: %s\n", warn)
		}
	})
}
