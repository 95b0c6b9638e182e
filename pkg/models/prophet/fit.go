package prophet

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/utility"
	"go.uber.org/zap"
)

// constantSigma is the noise scale assigned to a series without variation.
const constantSigma = 1e-9

// Fit estimates the decomposition on series. Missing values are kept for the
// future index but do not enter the likelihood. Non-convergence is reported
// through Diagnostics, never as an error.
func (m *Model) Fit(ctx context.Context, series []common.Observation, options ...FitOption) (*Fitted, error) {
	started := time.Now()

	cfg := fitConfig{seed: m.seed}
	for _, option := range options {
		option(&cfg)
	}

	if err := validateSeries(series); err != nil {
		return nil, err
	}
	sorted := common.SortedCopy(series)
	history := common.Present(sorted)

	resolved, err := m.Resolve(history)
	if err != nil {
		return nil, err
	}

	hasFloor := false
	if resolved.growth == GrowthLogistic {
		if err := validateCapacity(history, true); err != nil {
			return nil, err
		}
		for _, o := range history {
			if o.Floor != 0 {
				hasFloor = true
				break
			}
		}
	}

	normalizer, err := NewNormalizer(history, hasFloor)
	if err != nil {
		return nil, err
	}

	changepoints, err := resolved.placeChangepoints(history)
	if err != nil {
		return nil, err
	}
	cpT := make([]float64, len(changepoints))
	for i, cp := range changepoints {
		cpT[i] = normalizer.Time(cp)
	}

	scales := resolved.regressorScales(history)
	design, err := resolved.buildDesign(history, scales, ErrMissingRegressor)
	if err != nil {
		return nil, err
	}

	t := normalizer.Times(history)
	y := make([]float64, len(history))
	var capScaled []float64
	if resolved.growth == GrowthLogistic {
		capScaled = make([]float64, len(history))
	}
	for i, o := range history {
		y[i] = normalizer.Value(o)
		if capScaled != nil {
			capScaled[i] = normalizer.Cap(o)
		}
	}

	obj := newObjective(resolved.growth, t, y, capScaled, cpT, design, resolved.changepointPriorScale)
	k0, m0 := initialTrend(resolved.growth, t, y, capScaled)

	var (
		params      Params
		diagnostics Diagnostics
	)

	if isConstant(history) {
		params = Params{
			K:        k0,
			M:        m0,
			Deltas:   make([]float64, len(cpT)),
			Beta:     make([]float64, design.cols()),
			SigmaObs: constantSigma,
		}
		diagnostics = Diagnostics{Converged: true, Stage: "constant", Status: "Success"}
	} else {
		x0 := Params{
			K:        k0,
			M:        m0,
			Deltas:   make([]float64, len(cpT)),
			Beta:     make([]float64, design.cols()),
			SigmaObs: 1,
		}.vector()
		if cfg.init != nil {
			if len(cfg.init.Deltas) != len(cpT) || len(cfg.init.Beta) != design.cols() || !(cfg.init.SigmaObs > 0) {
				return nil, fmt.Errorf("%w: initial params have %d deltas and %d coefficients, model needs %d and %d",
					ErrInvalidConfig, len(cfg.init.Deltas), len(cfg.init.Beta), len(cpT), design.cols())
			}
			x0 = cfg.init.vector()
		}

		opt := optimizer{logger: m.logger, maxIterations: resolved.maxIterations, timeout: resolved.fitTimeout}
		best, attempts := opt.minimize(ctx, obj, x0)
		params = paramsFromVector(best.x, len(cpT), design.cols())

		diagnostics = Diagnostics{
			Converged:    best.converged() && best.finite(),
			Stage:        best.name,
			Status:       best.status.String(),
			LogPosterior: -best.f,
		}
		for _, a := range attempts {
			diagnostics.Iterations += a.iterations
			diagnostics.FuncEvaluations += a.evals
		}
		if best.name == "reduced" {
			diagnostics.Warning = fmt.Sprintf("fell back to a fit without changepoint deltas (%s)", describeAttempts(attempts))
			diagnostics.Cause = ErrNotConverged
		}
		if !diagnostics.Converged {
			diagnostics.Warning = fmt.Sprintf("keeping best-effort coefficients (%s)", describeAttempts(attempts))
			diagnostics.Cause = ErrNotConverged
		}
		if diagnostics.Cause != nil {
			m.logger.Warn("fit did not converge",
				zap.String("growth", resolved.growth.String()),
				zap.String("stage", diagnostics.Stage),
				zap.String("warning", diagnostics.Warning))
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fit cancelled: %w", err)
		}
	}

	historyDates := make([]time.Time, len(sorted))
	for i, o := range sorted {
		historyDates[i] = o.TimeStamp
	}

	fitted := newFitted(utility.NewRunID(), resolved, normalizer, changepoints, params, scales, historyDates, cfg.seed, diagnostics)
	fitted.diagnostics.RMSE, fitted.diagnostics.MAE, fitted.diagnostics.MAPE = fitted.inSampleErrors(history, design)
	fitted.diagnostics.Elapsed = time.Since(started)

	m.collector.ObserveFit(resolved.growth.String(), fitted.diagnostics.Converged, fitted.diagnostics.Iterations, fitted.diagnostics.Elapsed)
	m.logger.Debug("model fitted",
		zap.Stringer("id", fitted.id),
		zap.Int("observations", len(history)),
		zap.Int("changepoints", len(changepoints)),
		zap.Int("features", design.cols()),
		zap.Bool("converged", fitted.diagnostics.Converged),
		zap.Int("iterations", fitted.diagnostics.Iterations),
		zap.Duration("elapsed", fitted.diagnostics.Elapsed))

	return fitted, nil
}

// inSampleErrors scores the point forecast on the training rows.
func (f *Fitted) inSampleErrors(history []common.Observation, design *designMatrix) (rmse, mae, mape float64) {
	point := f.pointForecast(history, design)
	var se, ae, ape float64
	nape := 0
	for i, o := range history {
		e := o.Value - point.yhat[i]
		se += e * e
		ae += math.Abs(e)
		if o.Value != 0 {
			ape += math.Abs(e / o.Value)
			nape++
		}
	}
	n := float64(len(history))
	rmse, mae = math.Sqrt(se/n), ae/n
	if nape > 0 {
		mape = ape / float64(nape)
	}
	return rmse, mae, mape
}

func validateSeries(series []common.Observation) error {
	for i, o := range series {
		if o.TimeStamp.IsZero() {
			return fmt.Errorf("%w: row %d has no timestamp", ErrInvalidTimeRange, i)
		}
		if math.IsInf(o.Value, 0) {
			return fmt.Errorf("%w: infinite value at %s", ErrInvalidValue, o.TimeStamp.Format(time.RFC3339))
		}
	}
	return nil
}

// validateCapacity checks the logistic columns. With bounded set, every
// observed value must also stay within the capacity.
func validateCapacity(rows []common.Observation, bounded bool) error {
	for _, o := range rows {
		if !o.HasCap() {
			return fmt.Errorf("%w: at %s", ErrMissingCapacity, o.TimeStamp.Format(time.RFC3339))
		}
		if math.IsNaN(o.Cap) || math.IsInf(o.Cap, 0) || o.Cap <= o.Floor {
			return fmt.Errorf("%w: cap %v must exceed floor %v at %s", ErrInvalidCapacity, o.Cap, o.Floor, o.TimeStamp.Format(time.RFC3339))
		}
		if bounded && o.Value > o.Cap {
			return fmt.Errorf("%w: value %v above cap %v at %s", ErrInvalidCapacity, o.Value, o.Cap, o.TimeStamp.Format(time.RFC3339))
		}
	}
	return nil
}

func isConstant(history []common.Observation) bool {
	for _, o := range history[1:] {
		if o.Value != history[0].Value {
			return false
		}
	}
	return true
}
