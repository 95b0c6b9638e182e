package diagnostics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/models/prophet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Grid lists the candidate values of the tuned hyperparameters. An empty
// list keeps the base configuration for that parameter.
type Grid struct {
	ChangepointPriorScales []float64
	SeasonalityPriorScales []float64
	SeasonalityModes       []prophet.Mode
}

// GridPoint is one combination of a Grid.
type GridPoint struct {
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	SeasonalityMode       prophet.Mode
}

func (p GridPoint) options() []prophet.Option {
	var options []prophet.Option
	if p.ChangepointPriorScale > 0 {
		options = append(options, prophet.WithChangepointPriorScale(p.ChangepointPriorScale))
	}
	if p.SeasonalityPriorScale > 0 {
		options = append(options, prophet.WithSeasonalityPriorScale(p.SeasonalityPriorScale))
	}
	if p.SeasonalityMode != prophet.ModeInherit {
		options = append(options, prophet.WithSeasonalityMode(p.SeasonalityMode))
	}
	return options
}

// Points expands the grid into its combinations, changepoint prior scale
// varying slowest.
func (g Grid) Points() []GridPoint {
	cps := g.ChangepointPriorScales
	if len(cps) == 0 {
		cps = []float64{0}
	}
	sps := g.SeasonalityPriorScales
	if len(sps) == 0 {
		sps = []float64{0}
	}
	modes := g.SeasonalityModes
	if len(modes) == 0 {
		modes = []prophet.Mode{prophet.ModeInherit}
	}

	points := make([]GridPoint, 0, len(cps)*len(sps)*len(modes))
	for _, cp := range cps {
		for _, sp := range sps {
			for _, mode := range modes {
				points = append(points, GridPoint{ChangepointPriorScale: cp, SeasonalityPriorScale: sp, SeasonalityMode: mode})
			}
		}
	}
	return points
}

type GridResult struct {
	Point GridPoint
	RMSE  float64
	Err   error
}

// GridSearch cross-validates every grid point in parallel and scores it by
// the RMSE over all of its cross-validation rows. Results follow the order
// of Grid.Points. A point that fails keeps its error and a NaN score.
func GridSearch(ctx context.Context, base []prophet.Option, series []common.Observation, grid Grid, horizon time.Duration, options ...Option) ([]GridResult, error) {
	cfg := newConfig(horizon, options)
	points := grid.Points()
	results := make([]GridResult, len(points))

	type scored struct {
		index int
		rmse  float64
		err   error
	}
	scores := make(chan scored)

	go func() {
		var g errgroup.Group
		g.SetLimit(cfg.parallelism)
		for i, p := range points {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				rmse, err := scorePoint(ctx, base, p, series, horizon, options)
				scores <- scored{index: i, rmse: rmse, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(scores)
	}()

	for i, p := range points {
		results[i] = GridResult{Point: p, RMSE: math.NaN(), Err: context.Canceled}
	}
	for s := range scores {
		results[s.index].RMSE = s.rmse
		results[s.index].Err = s.err
		if s.err != nil {
			cfg.logger.Warn("grid point failed", zap.Int("index", s.index), zap.Error(s.err))
			continue
		}
		cfg.logger.Debug("grid point scored", zap.Int("index", s.index), zap.Float64("rmse", s.rmse))
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func scorePoint(ctx context.Context, base []prophet.Option, p GridPoint, series []common.Observation, horizon time.Duration, options []Option) (float64, error) {
	model, err := prophet.New(append(append([]prophet.Option(nil), base...), p.options()...)...)
	if err != nil {
		return math.NaN(), err
	}
	result, err := CrossValidate(ctx, model, series, horizon, options...)
	if err != nil {
		return math.NaN(), err
	}
	windows, err := PerformanceMetrics(result.Rows, WithRollingWindow(1), WithMetrics(MetricRMSE))
	if err != nil {
		return math.NaN(), err
	}
	return windows[len(windows)-1].RMSE, nil
}

// Best returns the successful result with the lowest RMSE.
func Best(results []GridResult) (GridResult, error) {
	best := -1
	for i, r := range results {
		if r.Err != nil || math.IsNaN(r.RMSE) {
			continue
		}
		if best < 0 || r.RMSE < results[best].RMSE {
			best = i
		}
	}
	if best < 0 {
		return GridResult{}, fmt.Errorf("%w: every grid point failed", ErrNoFolds)
	}
	return results[best], nil
}
