package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/api"
)

// ShutdownTimeout bounds how long in-flight requests may finish.
const ShutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides server.addr

	// ready, when set, receives the bound address once listening.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the question API over HTTP until interrupted.

Endpoints:
  POST /api/analyze, /api/compile, /api/plan, /api/ask
  GET  /api/tools, /api/stats, /api/requests, /api/requests/{id}
  GET  /healthz, /metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	rt, cfg, logger, err := opts.openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	server := &http.Server{
		Handler:      api.New(rt, logger).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("starting server",
		"addr", ln.Addr().String(),
		"database", cfg.Database.DSN != "",
		"llm", cfg.LLM.Enabled,
		"query_log", cfg.QueryLog)
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	<-done
	return nil
}
