// Command turbineguard flags anomalous records in gas-turbine sensor exports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hed1ad/turbineguard/pkg/config"
	"github.com/hed1ad/turbineguard/pkg/dataset"
	csvio "github.com/hed1ad/turbineguard/pkg/io/csv"
)

// app holds state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string
	logger     *slog.Logger
	cfg        config.Config
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "turbineguard",
		Short: "Detect anomalies in gas-turbine sensor data",
		Long: `turbineguard scores every record of a gas-turbine export with three
independent detectors (z-score, isolation forest and a TEY regression
residual) and reports a record as anomalous when any of them flags it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
			}
			a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML settings file (defaults when empty)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newDetectCmd(a),
		newColumnsCmd(a),
		newConfigCmd(a),
	)
	return root
}

// readInput loads, renames and cleans the CSV at path.
func (a *app) readInput(path string) (*dataset.Dataset, error) {
	r, err := csvio.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer r.Close()

	raw, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if n := r.Skipped(); n > 0 {
		a.logger.Warn("skipped malformed rows", "input", path, "rows", n)
	}
	if dropped := r.Dropped(); len(dropped) > 0 {
		a.logger.Warn("dropped non-numeric columns", "input", path, "count", len(dropped), "columns", dropped)
	}

	renamed, err := dataset.RenameColumns(raw, a.cfg.Renames)
	if err != nil {
		return nil, err
	}

	ds, stats := dataset.Clean(renamed)
	a.logger.Info("input cleaned",
		"input", path,
		"records", ds.Len(),
		"duplicates", stats.Duplicates,
		"filled", stats.Filled,
		"unfilled", stats.Unfilled)
	return ds, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stderr).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
