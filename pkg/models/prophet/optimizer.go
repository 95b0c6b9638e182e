package prophet

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

const (
	gradientThreshold = 1e-6
	functionTolerance = 1e-10
	stallIterations   = 25
	lbfgsStore        = 5
)

// contextConverger stops the optimizer once ctx is done and otherwise defers
// to a function-value convergence test.
type contextConverger struct {
	ctx   context.Context
	inner optimize.Converger
}

func (c *contextConverger) Init(dim int) {
	c.inner.Init(dim)
}

func (c *contextConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	return c.inner.Converged(loc)
}

type stageResult struct {
	name       string
	x          []float64 // full parameter vector
	f          float64
	status     optimize.Status
	iterations int
	evals      int
}

func (r stageResult) converged() bool {
	switch r.status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold,
		optimize.StepConvergence, optimize.FunctionThreshold, optimize.MethodConverge:
		return true
	}
	return false
}

func (r stageResult) finite() bool {
	return !math.IsInf(r.f, 0) && !math.IsNaN(r.f)
}

type optimizer struct {
	logger        *zap.Logger
	maxIterations int
	timeout       time.Duration
}

// minimize runs the staged search: L-BFGS from x0, BFGS from the best point
// so far, then the same problem with the changepoint deltas pinned to zero.
// The first converged stage wins; without one the lowest finite objective is
// returned.
func (opt optimizer) minimize(ctx context.Context, obj *objective, x0 []float64) (stageResult, []stageResult) {
	var deadline time.Time
	if opt.timeout > 0 {
		deadline = time.Now().Add(opt.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}

	stages := []struct {
		name    string
		method  func() optimize.Method
		reduced bool
	}{
		{"lbfgs", func() optimize.Method { return &optimize.LBFGS{Store: lbfgsStore} }, false},
		{"bfgs", func() optimize.Method { return &optimize.BFGS{} }, false},
		{"reduced", func() optimize.Method { return &optimize.LBFGS{Store: lbfgsStore} }, true},
	}

	var (
		attempts []stageResult
		best     stageResult
		start    = append([]float64(nil), x0...)
	)
	best.f = math.Inf(1)
	best.x = start

	for _, stage := range stages {
		if ctx.Err() != nil {
			break
		}
		if stage.reduced && obj.nDeltas() == 0 {
			continue
		}
		obj.fixDeltas = stage.reduced

		x := make([]float64, obj.searchDim())
		obj.contract(x, start)

		settings := &optimize.Settings{
			GradientThreshold: gradientThreshold,
			MajorIterations:   opt.maxIterations,
			Converger: &contextConverger{
				ctx: ctx,
				inner: &optimize.FunctionConverge{
					Absolute:   functionTolerance,
					Relative:   functionTolerance,
					Iterations: stallIterations,
				},
			},
		}
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			settings.Runtime = remaining
		}

		result, err := optimize.Minimize(obj.problem(), x, settings, stage.method())
		attempt := stageResult{name: stage.name, f: math.Inf(1), status: optimize.Failure}
		if result != nil {
			attempt.x = append([]float64(nil), obj.expand(result.X)...)
			attempt.f = result.F
			attempt.status = result.Status
			attempt.iterations = result.Stats.MajorIterations
			attempt.evals = result.Stats.FuncEvaluations
		}
		obj.fixDeltas = false

		opt.logger.Debug("optimizer stage finished",
			zap.String("stage", stage.name),
			zap.String("status", attempt.status.String()),
			zap.Float64("objective", attempt.f),
			zap.Int("iterations", attempt.iterations),
			zap.Error(err))

		attempts = append(attempts, attempt)
		if attempt.converged() && attempt.finite() {
			return attempt, attempts
		}
		if attempt.finite() && attempt.f < best.f {
			best = attempt
			start = attempt.x
		}
	}

	if best.name == "" {
		best.name = "initial"
		best.f = obj.evaluate(best.x, nil)
		best.status = optimize.Failure
	}
	return best, attempts
}

func describeAttempts(attempts []stageResult) string {
	s := ""
	for i, a := range attempts {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %s", a.name, a.status)
	}
	return s
}
