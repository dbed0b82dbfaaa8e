// Package pipeline runs the detector ensemble over a cleaned dataset.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
	"github.com/hed1ad/turbineguard/pkg/detectors/density"
	"github.com/hed1ad/turbineguard/pkg/detectors/iforest"
	"github.com/hed1ad/turbineguard/pkg/detectors/residual"
	"github.com/hed1ad/turbineguard/pkg/detectors/zscore"
	"github.com/hed1ad/turbineguard/pkg/ensemble"
	"github.com/hed1ad/turbineguard/pkg/metrics"
)

// derivedColumns lists the columns a run adds, in the order they are added.
var derivedColumns = []string{
	detectors.ColZFlag,
	detectors.ColIsoFlag,
	detectors.ColTEYPred,
	detectors.ColResidual,
	detectors.ColResFlag,
	detectors.ColAnomaly,
}

// Pipeline scores datasets with the z-score, density and residual detectors
// and combines their flags.
type Pipeline struct {
	cfg      detectors.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	newModel func(detectors.Config) detectors.OutlierModel
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMetrics records run metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithOutlierModel replaces the isolation forest with m.
func WithOutlierModel(m detectors.OutlierModel) Option {
	return func(p *Pipeline) {
		p.newModel = func(detectors.Config) detectors.OutlierModel { return m }
	}
}

// New creates a Pipeline. The configuration is validated.
func New(cfg detectors.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: invalid config: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg.Clone(),
		logger: slog.Default(),
		newModel: func(c detectors.Config) detectors.OutlierModel {
			return iforest.FromConfig(c)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pipeline's detector settings.
func (p *Pipeline) Config() detectors.Config {
	return p.cfg.Clone()
}

// Result is the outcome of one run.
type Result struct {
	RunID uuid.UUID
	// Dataset is the input plus the derived columns.
	Dataset       *dataset.Dataset
	SensorColumns []string
	Predictors    []string

	ZScore   *zscore.Result
	Density  *density.Result
	Residual *residual.Result
	Anomaly  detectors.Flags

	// Warnings holds non-fatal conditions such as DegenerateColumnWarning.
	Warnings []error
	Duration time.Duration
}

// Columns resolves the sensor and predictor column sets of ds.
// It fails with a *detectors.SchemaError when either set is unusable.
func (p *Pipeline) Columns(ds *dataset.Dataset) (sensors, predictors []string, err error) {
	schema := ds.Names()
	sensors, err = detectors.ResolveColumns(schema, p.cfg.SensorCandidates)
	if err != nil {
		return nil, nil, err
	}
	predictors, err = detectors.ResolvePredictors(schema, p.cfg.PredictorCandidates, p.cfg.Target, p.cfg.MinPredictors)
	if err != nil {
		return nil, nil, err
	}
	return sensors, predictors, nil
}

// Run scores every record of ds. ds is not modified. On error no result is
// returned.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	start := time.Now()
	runID := uuid.New()
	logger := p.logger.With("run_id", runID.String())

	res, err := p.run(ctx, ds, logger)
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.RunsTotal.WithLabelValues(status).Inc()
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		logger.Error("detection run failed", "error", err)
		return nil, err
	}

	res.RunID = runID
	res.Duration = time.Since(start)
	p.record(res)

	logger.Info("detection run finished",
		"records", ds.Len(),
		"anomalies", res.Anomaly.Count(),
		"duration", res.Duration)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, ds *dataset.Dataset, logger *slog.Logger) (*Result, error) {
	sensors, predictors, err := p.validate(ds)
	if err != nil {
		return nil, err
	}
	logger.Info("detection run started",
		"records", ds.Len(),
		"sensors", sensors,
		"predictors", predictors,
		"target", p.cfg.Target)

	res := &Result{
		SensorColumns: sensors,
		Predictors:    predictors,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		z, err := zscore.New(p.cfg).Detect(ds, sensors)
		res.ZScore = z
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		d, err := density.New(p.newModel(p.cfg)).Detect(ds, sensors)
		res.Density = d
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		r, err := residual.New(p.cfg).Detect(ds, predictors)
		res.Residual = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, w := range res.ZScore.Degenerate {
		logger.Warn("degenerate sensor column", "column", w.Column)
		res.Warnings = append(res.Warnings, w)
	}
	logger.Debug("detectors finished",
		"z_flags", res.ZScore.Flags.Count(),
		"iso_flags", res.Density.Flags.Count(),
		"res_flags", res.Residual.Flags.Count(),
		"residual_sigma", res.Residual.Sigma,
		"residual_threshold", res.Residual.Threshold)

	res.Anomaly, err = ensemble.Combine(res.ZScore.Flags, res.Density.Flags, res.Residual.Flags)
	if err != nil {
		return nil, err
	}

	out := ds.Clone()
	derived := map[string][]float64{
		detectors.ColZFlag:    res.ZScore.Flags.Floats(),
		detectors.ColIsoFlag:  res.Density.Flags.Floats(),
		detectors.ColTEYPred:  res.Residual.Predicted,
		detectors.ColResidual: res.Residual.Residuals,
		detectors.ColResFlag:  res.Residual.Flags.Floats(),
		detectors.ColAnomaly:  res.Anomaly.Floats(),
	}
	for _, name := range derivedColumns {
		if err := out.AddColumn(name, derived[name]); err != nil {
			return nil, err
		}
	}
	res.Dataset = out

	return res, nil
}

// validate checks every precondition before any detector runs.
func (p *Pipeline) validate(ds *dataset.Dataset) (sensors, predictors []string, err error) {
	if ds == nil || ds.Len() == 0 {
		return nil, nil, dataset.ErrEmpty
	}

	sensors, predictors, err = p.Columns(ds)
	if err != nil {
		return nil, nil, err
	}

	for _, name := range derivedColumns {
		if ds.Has(name) {
			return nil, nil, &detectors.SchemaError{
				Reason:    fmt.Sprintf("input already has derived column %q", name),
				Available: ds.Names(),
			}
		}
	}

	used := slices.Concat(sensors, predictors, []string{p.cfg.Target})
	for _, name := range used {
		values, _ := ds.Column(name)
		if err := detectors.CheckFinite(name, values); err != nil {
			return nil, nil, err
		}
	}

	return sensors, predictors, nil
}

func (p *Pipeline) record(res *Result) {
	if p.metrics == nil {
		return
	}
	m := p.metrics
	m.RecordsScored.Add(float64(len(res.Anomaly)))
	m.FlagsTotal.WithLabelValues(metrics.DetectorZScore).Add(float64(res.ZScore.Flags.Count()))
	m.FlagsTotal.WithLabelValues(metrics.DetectorDensity).Add(float64(res.Density.Flags.Count()))
	m.FlagsTotal.WithLabelValues(metrics.DetectorResidual).Add(float64(res.Residual.Flags.Count()))
	m.FlagsTotal.WithLabelValues(metrics.DetectorAnomaly).Add(float64(res.Anomaly.Count()))
	m.ResidualSigma.Set(res.Residual.Sigma)
	for _, w := range res.ZScore.Degenerate {
		m.DegenerateColumns.WithLabelValues(w.Column).Inc()
	}
}
