package diagnostics

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Report summarises a cross-validation run.
type Report struct {
	RunID        string
	Horizon      time.Duration
	Folds        int
	FailedFolds  int
	NonConverged int
	Rows         int
	FirstCutoff  time.Time
	LastCutoff   time.Time
	RMSE         float64
	MAE          float64
	Coverage     float64
	Elapsed      time.Duration

	Windows []MetricsRow
}

// NewReport computes the overall errors of result. windows are optional per
// horizon metrics printed with the report.
func NewReport(result *Result, windows []MetricsRow) Report {
	r := Report{
		RunID:       result.RunID.String(),
		Horizon:     result.Horizon,
		Folds:       len(result.Folds),
		FailedFolds: len(result.Failures),
		Rows:        len(result.Rows),
		Elapsed:     result.Elapsed,
		RMSE:        math.NaN(),
		MAE:         math.NaN(),
		Coverage:    math.NaN(),
		Windows:     windows,
	}
	if len(result.Cutoffs) > 0 {
		r.FirstCutoff = result.Cutoffs[0]
		r.LastCutoff = result.Cutoffs[len(result.Cutoffs)-1]
	}
	for _, f := range result.Folds {
		if !f.Converged {
			r.NonConverged++
		}
	}
	if len(result.Rows) == 0 {
		return r
	}

	se := make([]float64, len(result.Rows))
	ae := make([]float64, len(result.Rows))
	covered := make([]float64, len(result.Rows))
	for i, row := range result.Rows {
		e := row.Y - row.Yhat
		se[i] = e * e
		ae[i] = math.Abs(e)
		if row.Y >= row.YhatLower && row.Y <= row.YhatUpper {
			covered[i] = 1
		}
	}
	r.RMSE = math.Sqrt(stat.Mean(se, nil))
	r.MAE = stat.Mean(ae, nil)
	r.Coverage = stat.Mean(covered, nil)
	return r
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("cross validation report",
		zap.String("run_id", report.RunID),
		zap.Duration("horizon", report.Horizon),
		zap.Int("folds", report.Folds),
		zap.Int("failed_folds", report.FailedFolds),
		zap.Int("non_converged", report.NonConverged),
		zap.Int("rows", report.Rows),
		zap.Time("first_cutoff", report.FirstCutoff),
		zap.Time("last_cutoff", report.LastCutoff),
		zap.Duration("elapsed", report.Elapsed),
	)

	logger.Info("forecast accuracy",
		zap.Float64("rmse", report.RMSE),
		zap.Float64("mae", report.MAE),
		zap.Float64("coverage", report.Coverage),
	)

	for _, w := range report.Windows {
		fields := []zap.Field{zap.Duration("horizon", w.Horizon)}
		for _, m := range w.Metrics {
			fields = append(fields, zap.Float64(string(m), w.Value(m)))
		}
		logger.Info("horizon window", fields...)
	}
}
