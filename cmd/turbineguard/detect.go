package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hed1ad/turbineguard/pkg/detectors"
	tgio "github.com/hed1ad/turbineguard/pkg/io"
	"github.com/hed1ad/turbineguard/pkg/metrics"
	"github.com/hed1ad/turbineguard/pkg/pipeline"
	"github.com/hed1ad/turbineguard/pkg/plot"
	"github.com/hed1ad/turbineguard/pkg/report"
	"github.com/hed1ad/turbineguard/pkg/store"
)

const (
	reportFile    = "anomaly_report.csv"
	timeSeriesPNG = "TIT_anomalies.png"
	residualsPNG  = "TEY_residuals.png"
)

type detectOptions struct {
	input           string
	output          string
	sqlitePath      string
	metricsTextfile string
	noPlots         bool
}

func newDetectCmd(a *app) *cobra.Command {
	opts := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Score a CSV export and write the anomaly report",
		Example: `  turbineguard detect --input data/gas_turbine.csv --output output
  turbineguard detect --input data.csv --output out --sqlite runs.db --no-plots`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.detect(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input CSV file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "output", "output directory")
	cmd.Flags().StringVar(&opts.sqlitePath, "sqlite", "", "also store the report in this SQLite database")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&opts.noPlots, "no-plots", false, "skip the diagnostic PNG charts")
	cmd.MarkFlagRequired("input")

	return cmd
}

func (a *app) detect(cmd *cobra.Command, opts *detectOptions) error {
	ctx := cmd.Context()

	ds, err := a.readInput(opts.input)
	if err != nil {
		return err
	}

	m := metrics.New()
	p, err := pipeline.New(a.cfg.Detectors,
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(m))
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx, ds)
	if opts.metricsTextfile != "" {
		if err := m.WriteTextfile(opts.metricsTextfile); err != nil {
			a.logger.Error("failed to write metrics", "path", opts.metricsTextfile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	table, err := report.Assemble(res)
	if err != nil {
		return err
	}

	writers, err := a.writers(ctx, opts)
	if err != nil {
		return err
	}
	if err := writeAll(writers, table); err != nil {
		return err
	}

	if !opts.noPlots && a.cfg.Plots.Enabled {
		if err := a.writePlots(opts.output, table.RunID, res); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d records, %d anomalies\n", table.RunID, table.Rows(), res.Anomaly.Count())
	fmt.Fprintf(out, "  z-score %d, isolation forest %d, residual %d (threshold %.4f)\n",
		res.ZScore.Flags.Count(), res.Density.Flags.Count(), res.Residual.Flags.Count(), res.Residual.Threshold)
	fmt.Fprintf(out, "report written to %s\n", filepath.Join(opts.output, reportFile))
	return nil
}

// writers returns the report destinations selected by opts.
func (a *app) writers(ctx context.Context, opts *detectOptions) ([]tgio.Writer, error) {
	writers := []tgio.Writer{report.NewCSVWriter(filepath.Join(opts.output, reportFile))}
	if opts.sqlitePath != "" {
		s, err := store.Open(ctx, opts.sqlitePath, store.WithLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", opts.sqlitePath, err)
		}
		writers = append(writers, store.NewWriter(ctx, s))
	}
	return writers, nil
}

// writeAll stages t in every writer and publishes them only if all stages
// succeed. On a staging failure every writer is aborted.
func writeAll(writers []tgio.Writer, t report.Table) error {
	for _, w := range writers {
		if err := w.Write(t); err != nil {
			errs := []error{err}
			for _, w := range writers {
				errs = append(errs, w.Abort())
			}
			return errors.Join(errs...)
		}
	}

	// The CSV writer comes first, so publishing runs in reverse and the file
	// appears only after the database commit.
	for i, w := range slices.Backward(writers) {
		if err := w.Close(); err != nil {
			errs := []error{err}
			for _, rest := range writers[:i] {
				errs = append(errs, rest.Abort())
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

func (a *app) writePlots(dir, runID string, res *pipeline.Result) error {
	size := plot.Options{
		Width:   a.cfg.Plots.Width,
		Height:  a.cfg.Plots.Height,
		Caption: "run " + runID,
	}

	if slices.Contains(res.SensorColumns, "TIT") {
		tit, _ := res.Dataset.Column("TIT")
		opts := size
		opts.Title = "TIT with detected anomalies"
		opts.XLabel = "record"
		opts.YLabel = "TIT"
		if err := writePNG(filepath.Join(dir, timeSeriesPNG), func(buf *bytes.Buffer) error {
			return plot.TimeSeries(buf, tit, res.Anomaly, opts)
		}); err != nil {
			return err
		}
	}

	residuals, _ := res.Dataset.Column(detectors.ColResidual)
	opts := size
	opts.Title = "TEY regression residuals"
	opts.XLabel = "residual"
	opts.YLabel = "count"
	opts.Caption = fmt.Sprintf("run %s  threshold %.4f", runID, res.Residual.Threshold)
	return writePNG(filepath.Join(dir, residualsPNG), func(buf *bytes.Buffer) error {
		return plot.ResidualHistogram(buf, residuals, res.Residual.Threshold, opts)
	})
}

func writePNG(path string, render func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
