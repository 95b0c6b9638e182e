package prophet

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientFixture builds an objective over 60 scaled points with one
// additive seasonality and one multiplicative regressor.
func gradientFixture(t *testing.T, growth Growth) (*objective, []float64) {
	t.Helper()

	m := mustModel(t,
		WithGrowth(growth),
		WithSeasonality(Seasonality{Name: "weekly", Period: 7, FourierOrder: 2, Mode: ModeAdditive}),
		WithRegressor(Regressor{Name: "load", Mode: ModeMultiplicative}),
	)
	series := createDailySeries(60, 7)
	rng := rand.New(rand.NewSource(11))
	for i := range series {
		series[i].Regressors = map[string]float64{"load": rng.Float64()}
	}
	design, err := m.buildDesign(series, m.regressorScales(series), ErrMissingRegressor)
	require.NoError(t, err)

	tt := make([]float64, len(series))
	y := make([]float64, len(series))
	var capScaled []float64
	for i := range series {
		tt[i] = float64(i) / float64(len(series)-1)
		y[i] = series[i].Value / 12
	}
	if growth == GrowthLogistic {
		capScaled = make([]float64, len(series))
		for i := range capScaled {
			capScaled[i] = 1.2
		}
	}
	cps := []float64{0.2, 0.45, 0.7}
	obj := newObjective(growth, tt, y, capScaled, cps, design, 0.05)

	x := make([]float64, obj.dim())
	x[0], x[1] = 1.5, 0.3
	x[2], x[3], x[4] = 0.4, -0.6, 0.2
	for j := 0; j < obj.nBeta(); j++ {
		x[5+j] = 0.05 * float64(j+1)
	}
	x[len(x)-1] = math.Log(0.2)
	return obj, x
}

func numericGradient(f func([]float64) float64, x []float64) []float64 {
	const h = 1e-6
	grad := make([]float64, len(x))
	probe := append([]float64(nil), x...)
	for i := range x {
		probe[i] = x[i] + h
		up := f(probe)
		probe[i] = x[i] - h
		down := f(probe)
		probe[i] = x[i]
		grad[i] = (up - down) / (2 * h)
	}
	return grad
}

func TestObjective_GradientMatchesFiniteDifferences(t *testing.T) {
	for _, growth := range []Growth{GrowthLinear, GrowthLogistic, GrowthFlat} {
		t.Run(growth.String(), func(t *testing.T) {
			obj, x := gradientFixture(t, growth)

			analytic := make([]float64, len(x))
			f := obj.evaluate(x, analytic)
			require.False(t, math.IsInf(f, 0))

			numeric := numericGradient(func(p []float64) float64 { return obj.evaluate(p, nil) }, x)
			for i := range x {
				tol := 1e-4 * math.Max(1, math.Abs(numeric[i]))
				assert.InDelta(t, numeric[i], analytic[i], tol, "component %d", i)
			}
		})
	}
}

func TestObjective_ReducedProblem(t *testing.T) {
	obj, x := gradientFixture(t, GrowthLinear)
	for j := 0; j < obj.nDeltas(); j++ {
		x[2+j] = 0
	}
	obj.fixDeltas = true
	require.Equal(t, obj.dim()-3, obj.searchDim())

	reduced := make([]float64, obj.searchDim())
	obj.contract(reduced, x)
	assert.Equal(t, x, obj.expand(reduced))

	p := obj.problem()
	grad := make([]float64, len(reduced))
	p.Grad(grad, reduced)
	numeric := numericGradient(p.Func, reduced)
	for i := range reduced {
		assert.InDelta(t, numeric[i], grad[i], 1e-4*math.Max(1, math.Abs(numeric[i])), "component %d", i)
	}
}

func TestObjective_NonFinite(t *testing.T) {
	obj, x := gradientFixture(t, GrowthLogistic)
	// a zero rate after the first changepoint makes the offsets undefined
	x[2] = -x[0]

	grad := make([]float64, len(x))
	for i := range grad {
		grad[i] = 1
	}
	f := obj.evaluate(x, grad)
	assert.True(t, math.IsInf(f, 1))
	for _, g := range grad {
		assert.Equal(t, 0.0, g)
	}
}
