package prophet

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	deltaScaleFloor = 1e-8
	poissonChunk    = 30.0
)

type intervals struct {
	yhatLower, yhatUpper   []float64
	trendLower, trendUpper []float64
}

// intervalSimulator draws future trend paths and observation noise to build
// empirical prediction intervals. Future changepoints arrive as a Poisson
// process at the historical rate with Laplace distributed deltas.
type intervalSimulator struct {
	rng     *rand.Rand
	fitted  *Fitted
	samples int

	deltaScale float64
}

func newIntervalSimulator(rng *rand.Rand, fitted *Fitted, samples int) *intervalSimulator {
	var mean float64
	for _, d := range fitted.params.Deltas {
		mean += math.Abs(d)
	}
	if n := len(fitted.params.Deltas); n > 0 {
		mean /= float64(n)
	}
	return &intervalSimulator{
		rng:        rng,
		fitted:     fitted,
		samples:    samples,
		deltaScale: mean + deltaScaleFloor,
	}
}

func (s *intervalSimulator) run(ctx context.Context, p pointEstimate) (intervals, error) {
	n := len(p.t)
	yhatSamples := make([]float64, n*s.samples)
	trendSamples := make([]float64, n*s.samples)

	tMax := math.Inf(-1)
	for _, t := range p.t {
		tMax = math.Max(tMax, t)
	}

	yScale := s.fitted.normalizer.YScale
	sigma := s.fitted.params.SigmaObs
	for k := 0; k < s.samples; k++ {
		if k%64 == 0 {
			if err := ctx.Err(); err != nil {
				return intervals{}, fmt.Errorf("interval simulation cancelled: %w", err)
			}
		}
		trend := s.sampleTrend(p, tMax)
		for i := 0; i < n; i++ {
			tr := trend[i]*yScale + p.floor[i]
			noise := s.rng.NormFloat64() * sigma * yScale
			trendSamples[i*s.samples+k] = tr
			yhatSamples[i*s.samples+k] = tr*(1+p.multiplier[i]) + p.additive[i] + noise
		}
	}

	width := s.fitted.model.intervalWidth
	lowerP, upperP := (1-width)/2, (1+width)/2
	out := intervals{
		yhatLower:  make([]float64, n),
		yhatUpper:  make([]float64, n),
		trendLower: make([]float64, n),
		trendUpper: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ys := yhatSamples[i*s.samples : (i+1)*s.samples]
		ts := trendSamples[i*s.samples : (i+1)*s.samples]
		sort.Float64s(ys)
		sort.Float64s(ts)
		out.yhatLower[i] = stat.Quantile(lowerP, stat.LinInterp, ys, nil)
		out.yhatUpper[i] = stat.Quantile(upperP, stat.LinInterp, ys, nil)
		out.trendLower[i] = stat.Quantile(lowerP, stat.LinInterp, ts, nil)
		out.trendUpper[i] = stat.Quantile(upperP, stat.LinInterp, ts, nil)
	}
	return out, nil
}

// sampleTrend returns one scaled trend path. Changepoints are only invented
// beyond the end of the history (t > 1).
func (s *intervalSimulator) sampleTrend(p pointEstimate, tMax float64) []float64 {
	f := s.fitted
	deltas := f.params.Deltas
	changepoints := f.changepointsT

	S := len(f.changepointsT)
	if f.model.growth != GrowthFlat && tMax > 1 && S > 0 {
		count := poisson(s.rng, float64(S)*(tMax-1))
		if count > 0 {
			future := make([]float64, count)
			for i := range future {
				future[i] = 1 + s.rng.Float64()*(tMax-1)
			}
			sort.Float64s(future)

			deltas = append(append([]float64(nil), deltas...), make([]float64, count)...)
			changepoints = append(append([]float64(nil), changepoints...), future...)
			for i := S; i < len(deltas); i++ {
				deltas[i] = laplace(s.rng, s.deltaScale)
			}
		}
	}
	return f.trendState(deltas, changepoints).evaluate(p.t, p.capScaled)
}

// poisson draws from Poisson(lambda) by summing Knuth draws over chunks of
// the rate, which keeps exp(-lambda) away from underflow.
func poisson(rng *rand.Rand, lambda float64) int {
	count := 0
	for lambda > 0 {
		chunk := math.Min(lambda, poissonChunk)
		lambda -= chunk
		limit := math.Exp(-chunk)
		prod := rng.Float64()
		for prod > limit {
			count++
			prod *= rng.Float64()
		}
	}
	return count
}

func laplace(rng *rand.Rand, scale float64) float64 {
	u := rng.Float64() - 0.5
	if u == -0.5 {
		u = math.Nextafter(u, 0)
	}
	if u < 0 {
		return scale * math.Log(1+2*u)
	}
	return -scale * math.Log(1-2*u)
}
