package prophet

import (
	"math"
	"time"
)

// Params are the fitted coefficients on the scaled axes.
type Params struct {
	K        float64
	M        float64
	Deltas   []float64
	Beta     []float64
	SigmaObs float64
}

func (p Params) clone() Params {
	p.Deltas = append([]float64(nil), p.Deltas...)
	p.Beta = append([]float64(nil), p.Beta...)
	return p
}

func (p Params) vector() []float64 {
	x := make([]float64, 0, 3+len(p.Deltas)+len(p.Beta))
	x = append(x, p.K, p.M)
	x = append(x, p.Deltas...)
	x = append(x, p.Beta...)
	return append(x, math.Log(p.SigmaObs))
}

func paramsFromVector(x []float64, nDeltas, nBeta int) Params {
	return Params{
		K:        x[0],
		M:        x[1],
		Deltas:   append([]float64(nil), x[2:2+nDeltas]...),
		Beta:     append([]float64(nil), x[2+nDeltas:2+nDeltas+nBeta]...),
		SigmaObs: math.Exp(x[2+nDeltas+nBeta]),
	}
}

// Diagnostics describe how a fit went. A fit that did not converge still
// carries usable best-effort coefficients.
type Diagnostics struct {
	Converged       bool
	Stage           string
	Status          string
	Iterations      int
	FuncEvaluations int
	LogPosterior    float64
	Warning         string
	Cause           error
	Elapsed         time.Duration

	// in-sample point-forecast errors, in the units of the series
	RMSE float64
	MAE  float64
	MAPE float64
}
