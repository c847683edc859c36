package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"wuuf-analytics/internal/config"
	"wuuf-analytics/internal/observability"
	"wuuf-analytics/internal/source"
)

type rootOptions struct {
	csvDir   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wuufctl",
		Short:         "Inspect and export WUUF sales data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.csvDir, "csv-dir", "", "Read tables from CSV files in this directory instead of the configured source")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newExportCmd(opts), newSummaryCmd(opts))
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return observability.NewLoggerTo(cmd.ErrOrStderr(), config.LoggerConfig{Level: o.logLevel, Format: "console"})
}

// loader returns a CSV loader for --csv-dir, otherwise the source from the
// application configuration.
func (o *rootOptions) loader(ctx context.Context, logger *slog.Logger) (source.Loader, error) {
	if o.csvDir != "" {
		return source.NewCSVLoader(o.csvDir), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return source.New(ctx, cfg.Source, logger)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("wuufctl failed", "error", err)
		os.Exit(1)
	}
}
