package prophet

import (
	"math"
	"sort"
)

// trendState is the piecewise trend on the scaled time axis. Changepoints
// must be sorted.
type trendState struct {
	growth       Growth
	k, m         float64
	deltas       []float64
	changepoints []float64
}

// segment counts the changepoints at or before t.
func segment(changepoints []float64, t float64) int {
	return sort.Search(len(changepoints), func(j int) bool { return changepoints[j] > t })
}

// rates returns the growth rate in force on each of the S+1 segments.
func (s trendState) rates() []float64 {
	rates := make([]float64, len(s.deltas)+1)
	rates[0] = s.k
	for j, d := range s.deltas {
		rates[j+1] = rates[j] + d
	}
	return rates
}

// offsets returns the intercept on each segment so that the trend stays
// continuous across changepoints.
func (s trendState) offsets(rates []float64) []float64 {
	offsets := make([]float64, len(s.deltas)+1)
	offsets[0] = s.m
	switch s.growth {
	case GrowthLogistic:
		var cum float64
		for j, c := range s.changepoints {
			gamma := (c - s.m - cum) * (1 - rates[j]/rates[j+1])
			cum += gamma
			offsets[j+1] = s.m + cum
		}
	case GrowthLinear:
		for j, c := range s.changepoints {
			offsets[j+1] = offsets[j] - c*s.deltas[j]
		}
	default:
		for j := range s.changepoints {
			offsets[j+1] = s.m
		}
	}
	return offsets
}

// evaluate returns the scaled trend at each t. capScaled is only read for
// logistic growth.
func (s trendState) evaluate(t, capScaled []float64) []float64 {
	out := make([]float64, len(t))
	if s.growth == GrowthFlat {
		for i := range out {
			out[i] = s.m
		}
		return out
	}

	rates := s.rates()
	offsets := s.offsets(rates)
	for i, ti := range t {
		seg := segment(s.changepoints, ti)
		if s.growth == GrowthLogistic {
			out[i] = capScaled[i] * sigmoid(rates[seg]*(ti-offsets[seg]))
		} else {
			out[i] = rates[seg]*ti + offsets[seg]
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// initialTrend returns starting k and m from the first and last points of
// the scaled history.
func initialTrend(growth Growth, t, y, capScaled []float64) (k, m float64) {
	n := len(t)
	switch growth {
	case GrowthFlat:
		var sum float64
		for _, v := range y {
			sum += v
		}
		return 0, sum / float64(n)

	case GrowthLogistic:
		span := t[n-1] - t[0]
		c0, c1 := capScaled[0], capScaled[n-1]
		y0 := math.Max(0.01*c0, math.Min(0.99*c0, y[0]))
		y1 := math.Max(0.01*c1, math.Min(0.99*c1, y[n-1]))
		r0, r1 := c0/y0, c1/y1
		if math.Abs(r0-r1) <= 0.01 {
			r0 *= 1.05
		}
		l0, l1 := math.Log(r0-1), math.Log(r1-1)
		m = l0 * span / (l0 - l1)
		k = (l0 - l1) / span
		return k, m

	default:
		k = (y[n-1] - y[0]) / (t[n-1] - t[0])
		return k, y[0] - k*t[0]
	}
}
