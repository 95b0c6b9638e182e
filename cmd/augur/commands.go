package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/data/csv"
	"github.com/peter-kozarec/augur/pkg/data/db/psql"
	"github.com/peter-kozarec/augur/pkg/data/modelstore"
	"github.com/peter-kozarec/augur/pkg/diagnostics"
	"github.com/peter-kozarec/augur/pkg/models/prophet"
	"github.com/peter-kozarec/augur/pkg/utility"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sinkFlags control where forecasts and metrics are written.
type sinkFlags struct {
	output string
	dsn    string
	series string
}

func (f *sinkFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "-", "CSV output path (- for stdout)")
	fs.StringVar(&f.dsn, "pg-dsn", "", "Also store results in this PostgreSQL database")
	fs.StringVar(&f.series, "series", "default", "Series name used in the database")
}

func (f *sinkFlags) writeForecasts(ctx context.Context, logger *zap.Logger, runID utility.RunID, rows []common.Forecast) error {
	w, err := openOutput(f.output)
	if err != nil {
		return err
	}
	if err := csv.WriteForecasts(w, rows); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if f.dsn == "" {
		return nil
	}
	db, err := psql.Open(ctx, f.dsn)
	if err != nil {
		return fmt.Errorf("unable to connect to postgres: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := psql.CreateTables(ctx, db); err != nil {
		return err
	}
	if err := psql.InsertForecasts(ctx, db, runID, f.series, rows); err != nil {
		return err
	}
	logger.Info("forecasts stored", zap.Stringer("run_id", runID), zap.Int("rows", len(rows)))
	return nil
}

func parseFrequencyFlag(s string) (prophet.Frequency, error) {
	if s == "" {
		return prophet.Frequency{}, nil
	}
	if freq, err := prophet.ParseFrequency(s); err == nil {
		return freq, nil
	}
	step, err := parseDuration(s)
	if err != nil {
		return prophet.Frequency{}, fmt.Errorf("invalid frequency %q", s)
	}
	return prophet.Every(step), nil
}

func newFitCmd(a *app) *cobra.Command {
	var input inputFlags
	var model modelFlags
	var out, storeDir string

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a model and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (out == "") == (storeDir == "") {
				return errors.New("exactly one of --out and --store is required")
			}
			fitted, err := fitModel(cmd.Context(), a, &input, &model)
			if err != nil {
				return err
			}

			path := out
			if storeDir != "" {
				store, err := modelstore.NewStore(storeDir)
				if err != nil {
					return err
				}
				if path, err = store.Put(fitted); err != nil {
					return err
				}
			} else if err := modelstore.Save(out, fitted); err != nil {
				return err
			}
			a.logger.Info("model saved", zap.Stringer("model_id", fitted.ID()), zap.String("path", path))
			return nil
		},
	}
	input.bind(cmd)
	model.bind(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Model file (.json for readable output)")
	cmd.Flags().StringVar(&storeDir, "store", "", "Model store directory")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func fitModel(ctx context.Context, a *app, input *inputFlags, flags *modelFlags) (*prophet.Fitted, error) {
	series, err := input.load(ctx)
	if err != nil {
		return nil, err
	}
	options, err := flags.options(a.logger, a.collector)
	if err != nil {
		return nil, err
	}
	model, err := prophet.New(options...)
	if err != nil {
		return nil, err
	}
	fitted, err := model.Fit(ctx, series)
	if err != nil {
		return nil, err
	}

	d := fitted.Diagnostics()
	a.logger.Info("model fitted",
		zap.Stringer("model_id", fitted.ID()),
		zap.Int("rows", len(series)),
		zap.Int("changepoints", len(fitted.Changepoints())),
		zap.Bool("converged", d.Converged),
		zap.String("stage", d.Stage),
		zap.Int("iterations", d.Iterations),
		zap.Float64("rmse", d.RMSE),
		zap.Duration("elapsed", d.Elapsed),
	)
	if !d.Converged {
		a.logger.Warn("optimizer did not converge", zap.String("warning", d.Warning))
	}
	return fitted, nil
}

func newPredictCmd(a *app) *cobra.Command {
	var input inputFlags
	var sink sinkFlags
	var modelPath, freqFlag string
	var periods int
	var includeHistory bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict with a saved model, either future periods or the rows of --input",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fitted, err := modelstore.Load(modelPath, prophet.WithLogger(a.logger), prophet.WithCollector(a.collector))
			if err != nil {
				return err
			}

			var rows []common.Forecast
			if input.path != "" {
				series, err := input.load(ctx)
				if err != nil {
					return err
				}
				rows, err = fitted.Predict(ctx, series)
				if err != nil {
					return err
				}
			} else {
				freq, err := parseFrequencyFlag(freqFlag)
				if err != nil {
					return err
				}
				if freq.IsZero() {
					freq = prophet.Daily
				}
				rows, err = fitted.PredictFuture(ctx, periods, freq, includeHistory)
				if err != nil {
					return err
				}
			}
			a.logger.Info("prediction done", zap.Stringer("model_id", fitted.ID()), zap.Int("rows", len(rows)))
			return sink.writeForecasts(ctx, a.logger, fitted.ID(), rows)
		},
	}
	input.bind(cmd)
	sink.bind(cmd)
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Saved model")
	cmd.Flags().IntVarP(&periods, "periods", "p", 30, "Future periods")
	cmd.Flags().StringVar(&freqFlag, "freq", "D", "Future frequency (H, D, W, MS, QS, YS, 300S or a duration such as 15m or 2d)")
	cmd.Flags().BoolVar(&includeHistory, "include-history", false, "Also predict the training dates")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newForecastCmd(a *app) *cobra.Command {
	var input inputFlags
	var model modelFlags
	var sink sinkFlags
	var freqFlag string
	var periods int

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fit on --input and forecast the following periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			freq, err := parseFrequencyFlag(freqFlag)
			if err != nil {
				return err
			}

			runID := utility.NewRunID()
			var rows []common.Forecast
			if freq.IsZero() {
				series, err := input.load(ctx)
				if err != nil {
					return err
				}
				options, err := model.options(a.logger, a.collector)
				if err != nil {
					return err
				}
				if rows, err = prophet.Forecast(ctx, series, periods, options...); err != nil {
					return err
				}
			} else {
				fitted, err := fitModel(ctx, a, &input, &model)
				if err != nil {
					return err
				}
				runID = fitted.ID()
				if rows, err = fitted.PredictFuture(ctx, periods, freq, false); err != nil {
					return err
				}
			}
			return sink.writeForecasts(ctx, a.logger, runID, rows)
		},
	}
	input.bind(cmd)
	model.bind(cmd)
	sink.bind(cmd)
	cmd.Flags().IntVarP(&periods, "periods", "p", 30, "Future periods")
	cmd.Flags().StringVar(&freqFlag, "freq", "", "Future frequency, detected from the series when empty")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// cvFlags configure a cross-validation run.
type cvFlags struct {
	horizon     string
	initial     string
	period      string
	cutoffs     []string
	anchor      string
	parallelism int
	foldTimeout string
}

func (f *cvFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.horizon, "horizon", "", "Forecast horizon, e.g. 365d")
	fs.StringVar(&f.initial, "initial", "", "Minimum training span (default 3 horizons)")
	fs.StringVar(&f.period, "period", "", "Spacing between cutoffs (default half a horizon)")
	fs.StringSliceVar(&f.cutoffs, "cutoff", nil, "Explicit cutoff date (repeatable)")
	fs.StringVar(&f.anchor, "anchor", "initial", "Cutoff schedule anchor (initial, latest)")
	fs.IntVar(&f.parallelism, "parallelism", 0, "Concurrent folds (default GOMAXPROCS)")
	fs.StringVar(&f.foldTimeout, "fold-timeout", "", "Wall time budget per fold")
	_ = cmd.MarkFlagRequired("horizon")
}

func (f *cvFlags) options(a *app) (time.Duration, []diagnostics.Option, error) {
	horizon, err := parseDuration(f.horizon)
	if err != nil {
		return 0, nil, err
	}
	options := []diagnostics.Option{
		diagnostics.WithLogger(a.logger),
		diagnostics.WithCollector(a.collector),
	}
	if f.initial != "" {
		initial, err := parseDuration(f.initial)
		if err != nil {
			return 0, nil, err
		}
		options = append(options, diagnostics.WithInitial(initial))
	}
	if f.period != "" {
		period, err := parseDuration(f.period)
		if err != nil {
			return 0, nil, err
		}
		options = append(options, diagnostics.WithPeriod(period))
	}
	if len(f.cutoffs) > 0 {
		cutoffs, err := parseDates(f.cutoffs)
		if err != nil {
			return 0, nil, err
		}
		options = append(options, diagnostics.WithCutoffs(cutoffs...))
	}
	switch f.anchor {
	case "initial":
	case "latest":
		options = append(options, diagnostics.WithCutoffAnchor(diagnostics.AnchorLatest))
	default:
		return 0, nil, fmt.Errorf("invalid anchor %q", f.anchor)
	}
	if f.parallelism > 0 {
		options = append(options, diagnostics.WithParallelism(f.parallelism))
	}
	if f.foldTimeout != "" {
		timeout, err := parseDuration(f.foldTimeout)
		if err != nil {
			return 0, nil, err
		}
		options = append(options, diagnostics.WithFoldTimeout(timeout))
	}
	return horizon, options, nil
}

func newCrossValidateCmd(a *app) *cobra.Command {
	var input inputFlags
	var model modelFlags
	var cv cvFlags
	var sink sinkFlags
	var rollingWindow float64
	var metricNames []string

	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Cross-validate a model configuration and report per-horizon errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			series, err := input.load(ctx)
			if err != nil {
				return err
			}
			modelOptions, err := model.options(a.logger, a.collector)
			if err != nil {
				return err
			}
			m, err := prophet.New(modelOptions...)
			if err != nil {
				return err
			}
			horizon, cvOptions, err := cv.options(a)
			if err != nil {
				return err
			}

			metricsOptions := []diagnostics.MetricsOption{diagnostics.WithRollingWindow(rollingWindow)}
			if len(metricNames) > 0 {
				selected := make([]diagnostics.Metric, 0, len(metricNames))
				for _, name := range metricNames {
					metric, err := diagnostics.ParseMetric(name)
					if err != nil {
						return err
					}
					selected = append(selected, metric)
				}
				metricsOptions = append(metricsOptions, diagnostics.WithMetrics(selected...))
			}

			result, err := diagnostics.CrossValidate(ctx, m, series, horizon, cvOptions...)
			if err != nil && (result == nil || len(result.Rows) == 0) {
				return err
			}
			if err != nil {
				a.logger.Warn("cross validation interrupted, reporting completed folds", zap.Error(err))
			}

			windows, err := diagnostics.PerformanceMetrics(result.Rows, metricsOptions...)
			if err != nil {
				return err
			}
			diagnostics.NewReport(result, windows).Print(a.logger)

			if sink.dsn == "" {
				return nil
			}
			db, err := psql.Open(ctx, sink.dsn)
			if err != nil {
				return fmt.Errorf("unable to connect to postgres: %w", err)
			}
			defer func() { _ = db.Close() }()
			if err := psql.CreateTables(ctx, db); err != nil {
				return err
			}
			return psql.InsertMetrics(ctx, db, result.RunID, sink.series, windows)
		},
	}
	input.bind(cmd)
	model.bind(cmd)
	cv.bind(cmd)
	cmd.Flags().StringVar(&sink.dsn, "pg-dsn", "", "Also store metrics in this PostgreSQL database")
	cmd.Flags().StringVar(&sink.series, "series", "default", "Series name used in the database")
	cmd.Flags().Float64Var(&rollingWindow, "rolling-window", 0.1, "Fraction of rows per metrics window (negative for per-row)")
	cmd.Flags().StringSliceVar(&metricNames, "metric", nil, "Metric to compute (repeatable)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newTuneCmd(a *app) *cobra.Command {
	var input inputFlags
	var model modelFlags
	var cv cvFlags
	var cps, sps []float64
	var modes []string

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Grid search prior scales and seasonality mode by cross-validated RMSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			series, err := input.load(ctx)
			if err != nil {
				return err
			}
			base, err := model.options(zap.NewNop(), a.collector)
			if err != nil {
				return err
			}
			horizon, cvOptions, err := cv.options(a)
			if err != nil {
				return err
			}

			grid := diagnostics.Grid{ChangepointPriorScales: cps, SeasonalityPriorScales: sps}
			for _, s := range modes {
				mode, err := prophet.ParseMode(s)
				if err != nil {
					return err
				}
				grid.SeasonalityModes = append(grid.SeasonalityModes, mode)
			}

			results, err := diagnostics.GridSearch(ctx, base, series, grid, horizon, cvOptions...)
			for _, r := range results {
				a.logger.Info("grid point",
					zap.Float64("changepoint_prior_scale", r.Point.ChangepointPriorScale),
					zap.Float64("seasonality_prior_scale", r.Point.SeasonalityPriorScale),
					zap.Stringer("seasonality_mode", r.Point.SeasonalityMode),
					zap.Float64("rmse", r.RMSE),
					zap.Error(r.Err),
				)
			}
			if err != nil {
				return err
			}
			best, err := diagnostics.Best(results)
			if err != nil {
				return err
			}
			a.logger.Info("best grid point",
				zap.Float64("changepoint_prior_scale", best.Point.ChangepointPriorScale),
				zap.Float64("seasonality_prior_scale", best.Point.SeasonalityPriorScale),
				zap.Stringer("seasonality_mode", best.Point.SeasonalityMode),
				zap.Float64("rmse", best.RMSE),
			)
			return nil
		},
	}
	input.bind(cmd)
	model.bind(cmd)
	cv.bind(cmd)
	cmd.Flags().Float64SliceVar(&cps, "changepoint-prior-scales", []float64{0.001, 0.01, 0.1, 0.5}, "Candidate changepoint prior scales")
	cmd.Flags().Float64SliceVar(&sps, "seasonality-prior-scales", []float64{0.01, 0.1, 1, 10}, "Candidate seasonality prior scales")
	cmd.Flags().StringSliceVar(&modes, "seasonality-modes", nil, "Candidate seasonality modes")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newAnomaliesCmd(a *app) *cobra.Command {
	var input inputFlags
	var model modelFlags

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Report observations outside their in-sample uncertainty interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("interval-width") {
				model.intervalWidth = 0.99
			}
			series, err := input.load(ctx)
			if err != nil {
				return err
			}
			options, err := model.options(a.logger, a.collector)
			if err != nil {
				return err
			}
			anomalies, err := prophet.Anomalies(ctx, series, options...)
			if err != nil {
				return err
			}
			for _, an := range anomalies {
				a.logger.Info("anomaly",
					zap.Time("ds", an.TimeStamp),
					zap.Float64("y", an.Value),
					zap.Float64("yhat", an.Forecast.Yhat),
					zap.Float64("yhat_lower", an.Forecast.YhatLower),
					zap.Float64("yhat_upper", an.Forecast.YhatUpper),
				)
			}
			a.logger.Info("anomaly scan done", zap.Int("rows", len(series)), zap.Int("anomalies", len(anomalies)))
			return nil
		},
	}
	input.bind(cmd)
	model.bind(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
