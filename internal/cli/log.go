package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/store"
)

// LogOptions holds flags for the log commands.
type LogOptions struct {
	*RootOptions
	Limit int
}

// RequestDetail is the JSON payload of "log request".
type RequestDetail struct {
	Request    store.RequestRecord     `json:"request"`
	Executions []store.ExecutionRecord `json:"executions"`
}

// NewLogCommand creates the log command and its subcommands.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the query log",
		Long: `Inspect the SQLite query log written by ask, compile and serve.

The log path comes from query_log in the config file or FLOATQ_QUERY_LOG.`,
	}
	cmd.PersistentFlags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum rows to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:           "requests",
		Short:         "List recent requests",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(st *store.Store, f *OutputFormatter) error {
				reqs, err := st.Requests(cmd.Context(), opts.Limit)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read requests", err)
				}
				return f.Render(reqs, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tCREATED\tOK\tFAILED\tELAPSED\tQUESTION")
					for _, r := range reqs {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
							r.ID, r.CreatedAt.Format(time.RFC3339), r.Succeeded, r.Failed, r.Elapsed, r.Question)
					}
					tw.Flush()
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "request <id>",
		Short:         "Show one request and its tool executions",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(st *store.Store, f *OutputFormatter) error {
				req, execs, err := st.ReadRequest(cmd.Context(), args[0])
				if errors.Is(err, sql.ErrNoRows) {
					return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("request not found: %s", args[0]), nil)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read request", err)
				}
				return f.Render(RequestDetail{Request: req, Executions: execs}, func(w io.Writer) {
					fmt.Fprintf(w, "Request:  %s\n", req.ID)
					fmt.Fprintf(w, "Question: %s\n", req.Question)
					fmt.Fprintf(w, "Created:  %s\n", req.CreatedAt.Format(time.RFC3339))
					fmt.Fprintf(w, "Elapsed:  %s\n\n", req.Elapsed)
					for _, e := range execs {
						mark := "✓"
						if e.Status != "succeeded" {
							mark = "✗"
						}
						fmt.Fprintf(w, "%s [%d] %s attempts=%d %s", mark, e.Seq, e.InvocationID, e.Attempts, e.Duration)
						if e.ErrorCode != "" {
							fmt.Fprintf(w, " %s: %s", e.ErrorCode, e.ErrorMessage)
						}
						fmt.Fprintln(w)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "compilations",
		Short:         "List compiled statements",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(st *store.Store, f *OutputFormatter) error {
				recs, err := st.Compilations(cmd.Context(), opts.Limit)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read compilations", err)
				}
				return f.Render(recs, func(w io.Writer) {
					for _, c := range recs {
						cached := ""
						if c.Cached {
							cached = " (cached)"
						}
						fmt.Fprintf(w, "#%d %s %s%s\n  %s\n  %s\n", c.ID, c.CreatedAt.Format(time.RFC3339), c.Source, cached, c.Question, c.SQL)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "rejections",
		Short:         "List rejected drafts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(st *store.Store, f *OutputFormatter) error {
				recs, err := st.Rejections(cmd.Context(), opts.Limit)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read rejections", err)
				}
				return f.Render(recs, func(w io.Writer) {
					for _, r := range recs {
						fmt.Fprintf(w, "#%d %s %s: %s\n  %s\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Code, r.Reason, r.Question)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "stats",
		Short:         "Show row counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(st *store.Store, f *OutputFormatter) error {
				c, err := st.Counts(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "failed to count", err)
				}
				return f.Render(c, func(w io.Writer) {
					fmt.Fprintf(w, "Requests:     %d\n", c.Requests)
					fmt.Fprintf(w, "Executions:   %d (%d failed)\n", c.Executions, c.Failures)
					fmt.Fprintf(w, "Compilations: %d (%d cached)\n", c.Compilations, c.CacheHits)
					fmt.Fprintf(w, "Rejections:   %d\n", c.Rejections)
				})
			})
		},
	})

	return cmd
}

// withStore opens the configured query log for the duration of fn.
func withStore(opts *LogOptions, cmd *cobra.Command, fn func(*store.Store, *OutputFormatter) error) error {
	f := opts.formatter(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.QueryLog == "" {
		return f.Fail(ExitCommandError, ErrCodeNoQueryLog, "no query log configured (set query_log or FLOATQ_QUERY_LOG)", nil)
	}
	st, err := store.Open(cfg.QueryLog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open query log", err)
	}
	defer st.Close()
	return fn(st, f)
}
