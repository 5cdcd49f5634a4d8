package cli

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/config"
	"github.com/Abuzaid-01/Float-Chat/internal/service"
)

// loadConfig reads the config file named by --config, overlaid with the
// environment.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger writes logs to w. --verbose forces debug level.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// openRuntime loads the config and builds the full pipeline. Logs go to
// stderr so that JSON output stays clean.
func (o *RootOptions) openRuntime(cmd *cobra.Command) (*service.Runtime, config.Config, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, o.Verbose)

	opts := append([]service.RuntimeOption{service.WithRuntimeLogger(logger)}, o.runtimeOpts...)
	rt, err := service.Open(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, config.Config{}, nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return rt, cfg, logger, nil
}

// loadCatalog returns the configured catalog without opening the rest of
// the pipeline.
func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	return cat, nil
}
