package prophet

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

// pointEstimate holds the deterministic part of a forecast, in series units.
type pointEstimate struct {
	t           []float64
	capScaled   []float64
	floor       []float64
	trend       []float64
	additive    []float64
	multiplier  []float64 // sum of multiplicative terms
	yhat        []float64
	contributes [][]float64 // per row, per design column: x_ij * beta_j
}

// Predict evaluates the fitted decomposition on rows. Only the timestamp and
// the capacity, floor, regressor and condition columns of each row are read.
// The result is ordered by timestamp.
func (f *Fitted) Predict(ctx context.Context, rows []common.Observation, options ...PredictOption) ([]common.Forecast, error) {
	cfg := predictConfig{seed: f.seed}
	for _, option := range options {
		option(&cfg)
	}
	if len(rows) == 0 {
		return []common.Forecast{}, nil
	}

	for i, o := range rows {
		if o.TimeStamp.IsZero() {
			return nil, fmt.Errorf("%w: row %d has no timestamp", ErrInvalidTimeRange, i)
		}
	}
	sorted := common.SortedCopy(rows)

	if f.model.growth == GrowthLogistic {
		if err := validateCapacity(sorted, false); err != nil {
			return nil, err
		}
	}
	design, err := f.model.buildDesign(sorted, f.regressorScales, ErrUnseenRegressor)
	if err != nil {
		return nil, err
	}

	point := f.pointForecast(sorted, design)
	forecasts := make([]common.Forecast, len(sorted))
	for i, o := range sorted {
		forecasts[i] = common.Forecast{
			TimeStamp:  o.TimeStamp,
			Yhat:       point.yhat[i],
			YhatLower:  point.yhat[i],
			YhatUpper:  point.yhat[i],
			Trend:      point.trend[i],
			TrendLower: point.trend[i],
			TrendUpper: point.trend[i],
			Components: f.componentsAt(point, i),
		}
		if f.model.growth == GrowthLogistic {
			forecasts[i].Cap = o.Cap
		}
	}

	if f.model.uncertaintySamples > 0 && !cfg.noUncertainty {
		sim := newIntervalSimulator(rand.New(rand.NewSource(cfg.seed)), f, f.model.uncertaintySamples)
		bounds, err := sim.run(ctx, point)
		if err != nil {
			return nil, err
		}
		for i := range forecasts {
			forecasts[i].YhatLower = math.Min(bounds.yhatLower[i], forecasts[i].Yhat)
			forecasts[i].YhatUpper = math.Max(bounds.yhatUpper[i], forecasts[i].Yhat)
			forecasts[i].TrendLower = math.Min(bounds.trendLower[i], forecasts[i].Trend)
			forecasts[i].TrendUpper = math.Max(bounds.trendUpper[i], forecasts[i].Trend)
		}
	}

	if f.model.growth == GrowthLogistic {
		for i := range forecasts {
			c := forecasts[i].Cap
			forecasts[i].Yhat = math.Min(forecasts[i].Yhat, c)
			forecasts[i].YhatLower = math.Min(forecasts[i].YhatLower, c)
			forecasts[i].YhatUpper = math.Min(forecasts[i].YhatUpper, c)
		}
	}

	f.model.collector.ObservePrediction(len(forecasts))
	return forecasts, nil
}

// PredictFuture builds the future index and predicts it. It is limited to
// models without regressors, conditions or logistic growth, whose future rows
// need caller supplied columns.
func (f *Fitted) PredictFuture(ctx context.Context, periods int, freq Frequency, includeHistory bool, options ...PredictOption) ([]common.Forecast, error) {
	if f.model.growth == GrowthLogistic {
		return nil, fmt.Errorf("%w: logistic growth needs capacity on future rows", ErrMissingCapacity)
	}
	if len(f.model.regressors) > 0 {
		return nil, fmt.Errorf("%w: %q needs future values", ErrUnseenRegressor, f.model.regressors[0].Name)
	}
	for _, s := range f.model.seasonalities {
		if s.ConditionName != "" {
			return nil, fmt.Errorf("%w: %q needs future values", ErrMissingCondition, s.ConditionName)
		}
	}
	dates, err := f.MakeFutureIndex(periods, freq, includeHistory)
	if err != nil {
		return nil, err
	}
	rows := make([]common.Observation, len(dates))
	for i, ts := range dates {
		rows[i] = common.Observation{TimeStamp: ts, Value: math.NaN()}
	}
	return f.Predict(ctx, rows, options...)
}

// pointForecast evaluates the decomposition at the fitted coefficients for
// rows already sorted and validated.
func (f *Fitted) pointForecast(rows []common.Observation, design *designMatrix) pointEstimate {
	n := len(rows)
	p := pointEstimate{
		t:          f.normalizer.Times(rows),
		floor:      make([]float64, n),
		trend:      make([]float64, n),
		additive:   make([]float64, n),
		multiplier: make([]float64, n),
		yhat:       make([]float64, n),
	}
	if f.model.growth == GrowthLogistic {
		p.capScaled = make([]float64, n)
	}
	for i, o := range rows {
		p.floor[i] = f.normalizer.floor(o)
		if p.capScaled != nil {
			p.capScaled[i] = f.normalizer.Cap(o)
		}
	}

	state := f.trendState(f.params.Deltas, f.changepointsT)
	scaled := state.evaluate(p.t, p.capScaled)

	xa := design.product(f.params.Beta, ModeAdditive)
	xm := design.product(f.params.Beta, ModeMultiplicative)

	p.contributes = make([][]float64, n)
	for i := range rows {
		p.trend[i] = scaled[i]*f.normalizer.YScale + p.floor[i]
		p.additive[i] = xa[i] * f.normalizer.YScale
		p.multiplier[i] = xm[i]
		p.yhat[i] = p.trend[i]*(1+p.multiplier[i]) + p.additive[i]

		row := make([]float64, design.cols())
		for j := range row {
			row[j] = design.at(i, j) * f.params.Beta[j]
		}
		p.contributes[i] = row
	}
	return p
}

func (f *Fitted) trendState(deltas, changepoints []float64) trendState {
	return trendState{
		growth:       f.model.growth,
		k:            f.params.K,
		m:            f.params.M,
		deltas:       deltas,
		changepoints: changepoints,
	}
}

func (f *Fitted) componentsAt(p pointEstimate, i int) map[string]float64 {
	out := make(map[string]float64, len(f.components))
	for name, columns := range f.components {
		var v float64
		for _, j := range columns {
			v += p.contributes[i][j]
		}
		if componentMode(name, f.features, columns) == ModeAdditive {
			v *= f.normalizer.YScale
		}
		out[name] = v
	}
	return out
}

// Anomaly is an observation outside its in-sample interval.
type Anomaly struct {
	TimeStamp time.Time
	Value     float64
	Forecast  common.Forecast
}

// Anomalies returns the non-missing rows of series whose value falls outside
// the predicted interval.
func (f *Fitted) Anomalies(ctx context.Context, series []common.Observation, options ...PredictOption) ([]Anomaly, error) {
	history := common.SortedCopy(common.Present(series))
	forecasts, err := f.Predict(ctx, history, options...)
	if err != nil {
		return nil, err
	}
	var anomalies []Anomaly
	for i, fc := range forecasts {
		if !fc.Contains(history[i].Value) {
			anomalies = append(anomalies, Anomaly{TimeStamp: fc.TimeStamp, Value: history[i].Value, Forecast: fc})
		}
	}
	return anomalies, nil
}
