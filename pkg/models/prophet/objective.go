package prophet

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	trendPriorVariance = 25.0 // N(0, 5) on k and m
	sigmaPriorVariance = 0.25 // half-normal(0, 0.5) on sigma
	laplaceSmoothing   = 1e-8
)

// objective is the negative log posterior of the decomposition on the scaled
// history. The parameter vector is [k, m, delta_1..delta_S, beta_1..beta_K,
// log sigma].
type objective struct {
	growth       Growth
	t            []float64
	y            []float64
	capScaled    []float64
	seg          []int
	changepoints []float64
	design       *designMatrix
	priorScales  []float64
	tau          float64

	// fixDeltas drops the changepoint deltas from the search space and holds
	// them at zero.
	fixDeltas bool
}

func newObjective(growth Growth, t, y, capScaled, changepoints []float64, design *designMatrix, tau float64) *objective {
	seg := make([]int, len(t))
	for i, ti := range t {
		seg[i] = segment(changepoints, ti)
	}
	priorScales := make([]float64, design.cols())
	for j, f := range design.features {
		priorScales[j] = f.PriorScale
	}
	return &objective{
		growth:       growth,
		t:            t,
		y:            y,
		capScaled:    capScaled,
		seg:          seg,
		changepoints: changepoints,
		design:       design,
		priorScales:  priorScales,
		tau:          tau,
	}
}

func (o *objective) nDeltas() int { return len(o.changepoints) }
func (o *objective) nBeta() int   { return o.design.cols() }
func (o *objective) dim() int     { return 3 + o.nDeltas() + o.nBeta() }

func (o *objective) searchDim() int {
	if o.fixDeltas {
		return o.dim() - o.nDeltas()
	}
	return o.dim()
}

// expand maps a point of the search space to the full parameter vector.
func (o *objective) expand(x []float64) []float64 {
	if !o.fixDeltas {
		return x
	}
	full := make([]float64, o.dim())
	full[0], full[1] = x[0], x[1]
	copy(full[2+o.nDeltas():], x[2:])
	return full
}

// contract is the inverse of expand.
func (o *objective) contract(dst, full []float64) {
	if !o.fixDeltas {
		copy(dst, full)
		return
	}
	dst[0], dst[1] = full[0], full[1]
	copy(dst[2:], full[2+o.nDeltas():])
}

func (o *objective) problem() optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			return o.evaluate(o.expand(x), nil)
		},
		Grad: func(grad, x []float64) {
			full := make([]float64, o.dim())
			o.evaluate(o.expand(x), full)
			o.contract(grad, full)
		},
	}
}

// evaluate returns the objective at the full parameter vector x and, when
// grad is non-nil, writes its gradient. Non-finite evaluations return +Inf
// with a zero gradient so line searches back off.
func (o *objective) evaluate(x, grad []float64) float64 {
	S, K := o.nDeltas(), o.nBeta()
	k, m := x[0], x[1]
	deltas := x[2 : 2+S]
	beta := x[2+S : 2+S+K]
	logSigma := x[2+S+K]
	sigma := math.Exp(logSigma)
	variance := sigma * sigma

	state := trendState{growth: o.growth, k: k, m: m, deltas: deltas, changepoints: o.changepoints}
	rates := state.rates()
	offsets := state.offsets(rates)

	n := len(o.t)
	trend := make([]float64, n)
	var sig []float64
	if o.growth == GrowthLogistic {
		sig = make([]float64, n)
	}
	for i, ti := range o.t {
		s := o.seg[i]
		switch o.growth {
		case GrowthLogistic:
			sig[i] = sigmoid(rates[s] * (ti - offsets[s]))
			trend[i] = o.capScaled[i] * sig[i]
		case GrowthLinear:
			trend[i] = rates[s]*ti + offsets[s]
		default:
			trend[i] = m
		}
	}

	xa := o.design.product(beta, ModeAdditive)
	xm := o.design.product(beta, ModeMultiplicative)

	residuals := make([]float64, n)
	var ss float64
	for i := range residuals {
		residuals[i] = o.y[i] - (trend[i]*(1+xm[i]) + xa[i])
		ss += residuals[i] * residuals[i]
	}

	f := float64(n)*logSigma + ss/(2*variance)
	f += (k*k + m*m) / (2 * trendPriorVariance)
	for _, d := range deltas {
		f += math.Sqrt(d*d+laplaceSmoothing) / o.tau
	}
	for j, b := range beta {
		f += b * b / (2 * o.priorScales[j] * o.priorScales[j])
	}
	f += variance / (2 * sigmaPriorVariance)

	if math.IsNaN(f) || math.IsInf(f, 0) {
		if grad != nil {
			for i := range grad {
				grad[i] = 0
			}
		}
		return math.Inf(1)
	}
	if grad == nil {
		return f
	}

	// g is d(f)/d(mean), h is d(f)/d(trend)
	g := make([]float64, n)
	h := make([]float64, n)
	for i := range g {
		g[i] = -residuals[i] / variance
		h[i] = g[i] * (1 + xm[i])
	}

	if K > 0 {
		gt := make([]float64, n)
		floats.MulTo(gt, g, trend)
		va := o.design.transposeProduct(g)
		vm := o.design.transposeProduct(gt)
		for j, feat := range o.design.features {
			if feat.Mode == ModeMultiplicative {
				grad[2+S+j] = vm[j]
			} else {
				grad[2+S+j] = va[j]
			}
			grad[2+S+j] += beta[j] / (o.priorScales[j] * o.priorScales[j])
		}
	}

	dk, dm := k/trendPriorVariance, m/trendPriorVariance
	dDeltas := grad[2 : 2+S]
	for j, d := range deltas {
		dDeltas[j] = d / math.Sqrt(d*d+laplaceSmoothing) / o.tau
	}

	switch o.growth {
	case GrowthLinear:
		ht := make([]float64, S+1)
		hs := make([]float64, S+1)
		for i, ti := range o.t {
			ht[o.seg[i]] += h[i] * ti
			hs[o.seg[i]] += h[i]
		}
		dk += floats.Sum(ht)
		dm += floats.Sum(hs)
		var sufT, suf float64
		for j := S - 1; j >= 0; j-- {
			sufT += ht[j+1]
			suf += hs[j+1]
			dDeltas[j] += sufT - o.changepoints[j]*suf
		}

	case GrowthLogistic:
		a := make([]float64, S+1)
		b := make([]float64, S+1)
		for i, ti := range o.t {
			s := o.seg[i]
			q := h[i] * o.capScaled[i] * sig[i] * (1 - sig[i])
			a[s] += q * (ti - offsets[s])
			b[s] -= q * rates[s]
		}
		dOffsets := o.offsetJacobian(rates, offsets, deltas, m)
		var suffix float64
		for s := S; s >= 0; s-- {
			dk += a[s] + b[s]*dOffsets[s][0]
			dm += b[s] * dOffsets[s][1]
			for l := 0; l < S; l++ {
				dDeltas[l] += b[s] * dOffsets[s][2+l]
			}
			if s > 0 {
				suffix += a[s]
				dDeltas[s-1] += suffix
			}
		}

	default:
		dm += floats.Sum(h)
	}

	grad[0], grad[1] = dk, dm
	grad[2+S+K] = float64(n) - ss/variance + variance/sigmaPriorVariance
	return f
}

// offsetJacobian differentiates the logistic segment offsets with respect
// to [k, m, delta_1..delta_S].
func (o *objective) offsetJacobian(rates, offsets, deltas []float64, m float64) [][]float64 {
	S := len(deltas)
	p := 2 + S
	jac := make([][]float64, S+1)
	jac[0] = make([]float64, p)
	jac[0][1] = 1

	for j := 0; j < S; j++ {
		next := rates[j+1]
		rho := 1 - rates[j]/next
		base := o.changepoints[j] - offsets[j]
		shared := -deltas[j] / (next * next)

		row := make([]float64, p)
		for q := 0; q < p; q++ {
			var dRho float64
			switch {
			case q == 0:
				dRho = shared
			case q >= 2 && q-2 < j:
				dRho = shared
			case q-2 == j:
				dRho = rates[j] / (next * next)
			}
			row[q] = jac[j][q] + (-jac[j][q]*rho + base*dRho)
		}
		jac[j+1] = row
	}
	return jac
}
