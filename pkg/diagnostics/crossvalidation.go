package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/models/prophet"
	"github.com/peter-kozarec/augur/pkg/utility"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const day = 24 * time.Hour

// Row is one out-of-sample prediction made from the history up to Cutoff.
type Row struct {
	TimeStamp time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
	Y         float64
	Cutoff    time.Time
}

func (r Row) Horizon() time.Duration {
	return r.TimeStamp.Sub(r.Cutoff)
}

// Fold summarises a completed fold.
type Fold struct {
	Cutoff    time.Time
	ModelID   utility.RunID
	Rows      int
	Converged bool
	Elapsed   time.Duration
}

type FoldFailure struct {
	Cutoff time.Time
	Err    error
}

type Result struct {
	RunID    utility.RunID
	Horizon  time.Duration
	Cutoffs  []time.Time
	Folds    []Fold
	Rows     []Row
	Failures []FoldFailure
	Elapsed  time.Duration
}

type foldResult struct {
	index   int
	fold    Fold
	rows    []Row
	err     error
	outcome string
}

// CrossValidate refits model at every cutoff on the observations up to the
// cutoff and scores its predictions over the following horizon. Folds run in
// parallel and fail independently; rows are grouped by cutoff in schedule
// order. When ctx ends early the completed folds are still returned together
// with ctx.Err().
func CrossValidate(ctx context.Context, model *prophet.Model, series []common.Observation, horizon time.Duration, options ...Option) (*Result, error) {
	started := time.Now()
	cfg := newConfig(horizon, options)

	sorted := common.SortedCopy(series)
	history := common.Present(sorted)

	// pin the automatic seasonalities on the full series so every fold
	// estimates the same components
	resolved, err := model.Resolve(history)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientHistory, err)
	}
	if longest := time.Duration(resolved.MaxSeasonalityPeriod() * float64(day)); cfg.initial < longest {
		cfg.logger.Warn("initial window shorter than the longest seasonality",
			zap.Duration("initial", cfg.initial),
			zap.Duration("seasonality", longest))
	}

	var cutoffs []time.Time
	if len(cfg.cutoffs) > 0 {
		if err := validateCutoffs(history, cfg.cutoffs, horizon, cfg); err != nil {
			return nil, err
		}
		cutoffs = cfg.cutoffs
	} else {
		cutoffs, err = GenerateCutoffs(history, horizon, cfg.period, cfg.initial, cfg.anchor)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		RunID:   utility.NewRunID(),
		Horizon: horizon,
		Cutoffs: cutoffs,
	}
	cfg.logger.Info("cross validation scheduled",
		zap.Stringer("run_id", result.RunID),
		zap.Int("folds", len(cutoffs)),
		zap.Time("first_cutoff", cutoffs[0]),
		zap.Time("last_cutoff", cutoffs[len(cutoffs)-1]),
		zap.Duration("horizon", horizon),
		zap.Int("parallelism", cfg.parallelism))

	v := validator{
		model:   resolved,
		sorted:  sorted,
		history: history,
		horizon: horizon,
		timeout: cfg.foldTimeout,
	}

	results := make(chan foldResult)
	go func() {
		var g errgroup.Group
		g.SetLimit(cfg.parallelism)
		for i, cutoff := range cutoffs {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				results <- v.run(ctx, i, cutoff)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	folds := make([]*foldResult, len(cutoffs))
	for r := range results {
		folds[r.index] = &r
		cfg.collector.ObserveFold(r.outcome, r.fold.Elapsed)
		if r.err != nil {
			cfg.logger.Warn("fold failed",
				zap.Time("cutoff", r.fold.Cutoff),
				zap.String("outcome", r.outcome),
				zap.Error(r.err))
			continue
		}
		cfg.logger.Debug("fold completed",
			zap.Time("cutoff", r.fold.Cutoff),
			zap.Stringer("model_id", r.fold.ModelID),
			zap.Int("rows", r.fold.Rows),
			zap.Bool("converged", r.fold.Converged),
			zap.Duration("elapsed", r.fold.Elapsed))
	}

	for _, r := range folds {
		if r == nil {
			continue
		}
		if r.err != nil {
			result.Failures = append(result.Failures, FoldFailure{Cutoff: r.fold.Cutoff, Err: r.err})
			continue
		}
		result.Folds = append(result.Folds, r.fold)
		result.Rows = append(result.Rows, r.rows...)
	}
	result.Elapsed = time.Since(started)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(result.Folds) == 0 {
		return result, fmt.Errorf("%w: %d folds failed, first: %w", ErrNoFolds, len(result.Failures), result.Failures[0].Err)
	}
	return result, nil
}

// validator evaluates single folds. It only reads the shared series.
type validator struct {
	model   *prophet.Model
	sorted  []common.Observation
	history []common.Observation
	horizon time.Duration
	timeout time.Duration
}

func (v validator) run(ctx context.Context, index int, cutoff time.Time) foldResult {
	started := time.Now()
	r := foldResult{index: index, fold: Fold{Cutoff: cutoff}, outcome: "ok"}

	rows, fold, err := v.evaluate(ctx, cutoff)
	r.fold.Elapsed = time.Since(started)
	if err != nil {
		r.err = err
		r.outcome = "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.outcome = "cancelled"
		}
		return r
	}
	r.rows = rows
	r.fold.ModelID = fold.ModelID
	r.fold.Rows = len(rows)
	r.fold.Converged = fold.Converged
	return r
}

func (v validator) evaluate(ctx context.Context, cutoff time.Time) ([]Row, Fold, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	end := sort.Search(len(v.sorted), func(i int) bool { return v.sorted[i].TimeStamp.After(cutoff) })
	train := v.sorted[:end]
	present := common.Present(train)
	if common.DistinctTimeStamps(present) < 2 {
		return nil, Fold{}, fmt.Errorf("%w: fewer than 2 distinct timestamps before %s", ErrInsufficientHistory, cutoff.Format(time.RFC3339))
	}

	from := sort.Search(len(v.history), func(i int) bool { return v.history[i].TimeStamp.After(cutoff) })
	to := sort.Search(len(v.history), func(i int) bool { return v.history[i].TimeStamp.After(cutoff.Add(v.horizon)) })
	test := v.history[from:to]

	_, lastSeen := common.Span(present)
	fitted, err := v.model.TruncateChangepoints(lastSeen).Fit(ctx, train)
	if err != nil {
		return nil, Fold{}, fmt.Errorf("fit at %s: %w", cutoff.Format(time.RFC3339), err)
	}
	forecasts, err := fitted.Predict(ctx, test)
	if err != nil {
		return nil, Fold{}, fmt.Errorf("predict at %s: %w", cutoff.Format(time.RFC3339), err)
	}

	rows := make([]Row, len(forecasts))
	for i, fc := range forecasts {
		rows[i] = Row{
			TimeStamp: fc.TimeStamp,
			Yhat:      fc.Yhat,
			YhatLower: fc.YhatLower,
			YhatUpper: fc.YhatUpper,
			Y:         test[i].Value,
			Cutoff:    cutoff,
		}
	}
	return rows, Fold{ModelID: fitted.ID(), Converged: fitted.Diagnostics().Converged}, nil
}
