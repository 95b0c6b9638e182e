package diagnostics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Metric string

const (
	MetricMSE      Metric = "mse"
	MetricRMSE     Metric = "rmse"
	MetricMAE      Metric = "mae"
	MetricMAPE     Metric = "mape"
	MetricMDAPE    Metric = "mdape"
	MetricSMAPE    Metric = "smape"
	MetricCoverage Metric = "coverage"
)

// DefaultMetrics is the metric set used when WithMetrics is not given.
var DefaultMetrics = []Metric{MetricMSE, MetricRMSE, MetricMAE, MetricMAPE, MetricMDAPE, MetricSMAPE, MetricCoverage}

const (
	defaultRollingWindow = 0.1
	nearZero             = 1e-8
)

func ParseMetric(s string) (Metric, error) {
	for _, m := range DefaultMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMetric, s)
}

// MetricsRow holds the metrics of one horizon window. Metrics that were not
// computed are NaN; Metrics names the computed ones.
type MetricsRow struct {
	Horizon  time.Duration
	MSE      float64
	RMSE     float64
	MAE      float64
	MAPE     float64
	MDAPE    float64
	SMAPE    float64
	Coverage float64

	Metrics []Metric
}

func (r MetricsRow) Value(m Metric) float64 {
	switch m {
	case MetricMSE:
		return r.MSE
	case MetricRMSE:
		return r.RMSE
	case MetricMAE:
		return r.MAE
	case MetricMAPE:
		return r.MAPE
	case MetricMDAPE:
		return r.MDAPE
	case MetricSMAPE:
		return r.SMAPE
	case MetricCoverage:
		return r.Coverage
	}
	return math.NaN()
}

func (r *MetricsRow) set(m Metric, v float64) {
	switch m {
	case MetricMSE:
		r.MSE = v
	case MetricRMSE:
		r.RMSE = v
	case MetricMAE:
		r.MAE = v
	case MetricMAPE:
		r.MAPE = v
	case MetricMDAPE:
		r.MDAPE = v
	case MetricSMAPE:
		r.SMAPE = v
	case MetricCoverage:
		r.Coverage = v
	}
}

// PerformanceMetrics aggregates cross-validation rows by horizon. Rows are
// sorted by horizon and every output row covers the window of w rows ending
// at its horizon, where w is the rolling window fraction of the rows (at
// least 1). Output is ordered by increasing horizon.
func PerformanceMetrics(rows []Row, options ...MetricsOption) ([]MetricsRow, error) {
	cfg := metricsConfig{rollingWindow: defaultRollingWindow, metrics: DefaultMetrics}
	for _, option := range options {
		option(&cfg)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyResult
	}

	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Horizon() < sorted[j].Horizon() })

	selected, err := selectMetrics(sorted, cfg.metrics)
	if err != nil {
		return nil, err
	}

	n := len(sorted)
	w := int(cfg.rollingWindow * float64(n))
	if cfg.windowRows > 0 {
		w = cfg.windowRows
	}
	if w >= 0 {
		w = min(max(w, 1), n)
	}

	h := make([]time.Duration, n)
	se := make([]float64, n)
	ae := make([]float64, n)
	ape := make([]float64, n)
	sape := make([]float64, n)
	covered := make([]float64, n)
	for i, r := range sorted {
		h[i] = r.Horizon()
		e := r.Y - r.Yhat
		se[i] = e * e
		ae[i] = math.Abs(e)
		ape[i] = math.Abs(e / r.Y)
		sape[i] = math.Abs(e) / ((math.Abs(r.Y) + math.Abs(r.Yhat)) / 2)
		if math.IsNaN(sape[i]) {
			sape[i] = 0
		}
		if r.Y >= r.YhatLower && r.Y <= r.YhatUpper {
			covered[i] = 1
		}
	}

	if w < 0 {
		out := make([]MetricsRow, n)
		for i := range sorted {
			out[i] = newMetricsRow(h[i], selected)
			for _, m := range selected {
				switch m {
				case MetricMSE:
					out[i].set(m, se[i])
				case MetricRMSE, MetricMAE:
					out[i].set(m, ae[i])
				case MetricMAPE, MetricMDAPE:
					out[i].set(m, ape[i])
				case MetricSMAPE:
					out[i].set(m, sape[i])
				case MetricCoverage:
					out[i].set(m, covered[i])
				}
			}
		}
		return out, nil
	}

	var out []MetricsRow
	for _, m := range selected {
		var hs []time.Duration
		var values []float64
		switch m {
		case MetricMSE:
			hs, values = rollingMeanByH(se, h, w)
		case MetricRMSE:
			hs, values = rollingMeanByH(se, h, w)
			for i := range values {
				values[i] = math.Sqrt(values[i])
			}
		case MetricMAE:
			hs, values = rollingMeanByH(ae, h, w)
		case MetricMAPE:
			hs, values = rollingMeanByH(ape, h, w)
		case MetricMDAPE:
			hs, values = rollingMedianByH(ape, h, w)
		case MetricSMAPE:
			hs, values = rollingMeanByH(sape, h, w)
		case MetricCoverage:
			hs, values = rollingMeanByH(covered, h, w)
		}
		if out == nil {
			out = make([]MetricsRow, len(hs))
			for i := range hs {
				out[i] = newMetricsRow(hs[i], selected)
			}
		}
		for i := range values {
			out[i].set(m, values[i])
		}
	}
	return out, nil
}

func newMetricsRow(h time.Duration, metrics []Metric) MetricsRow {
	nan := math.NaN()
	return MetricsRow{
		Horizon: h, MSE: nan, RMSE: nan, MAE: nan, MAPE: nan, MDAPE: nan, SMAPE: nan, Coverage: nan,
		Metrics: metrics,
	}
}

// selectMetrics validates the requested metrics and drops the ones the rows
// cannot support: percentage errors when some actual is close to zero and
// coverage when the rows carry no interval.
func selectMetrics(rows []Row, requested []Metric) ([]Metric, error) {
	seen := make(map[Metric]struct{}, len(requested))
	for _, m := range requested {
		if _, err := ParseMetric(string(m)); err != nil {
			return nil, err
		}
		if _, dup := seen[m]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMetric, m)
		}
		seen[m] = struct{}{}
	}

	minAbs := math.Inf(1)
	hasBounds := false
	for _, r := range rows {
		minAbs = math.Min(minAbs, math.Abs(r.Y))
		if r.YhatLower != r.YhatUpper {
			hasBounds = true
		}
	}

	selected := make([]Metric, 0, len(requested))
	for _, m := range requested {
		switch {
		case (m == MetricMAPE || m == MetricMDAPE) && minAbs < nearZero:
			continue
		case m == MetricCoverage && !hasBounds:
			continue
		}
		selected = append(selected, m)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: none of %v applies to these rows", ErrInvalidMetric, requested)
	}
	return selected, nil
}

type horizonGroup struct {
	h     time.Duration
	start int // first row index
	count int
}

// groupByH collapses runs of equal horizons; h must be sorted.
func groupByH(h []time.Duration) []horizonGroup {
	var groups []horizonGroup
	for i, v := range h {
		if len(groups) > 0 && groups[len(groups)-1].h == v {
			groups[len(groups)-1].count++
			continue
		}
		groups = append(groups, horizonGroup{h: v, start: i, count: 1})
	}
	return groups
}

// rollingMeanByH averages x over the w rows ending at each distinct horizon.
// When the window splits a horizon group, that group contributes the
// fraction of its sum that falls inside the window.
func rollingMeanByH(x []float64, h []time.Duration, w int) ([]time.Duration, []float64) {
	groups := groupByH(h)
	sums := make([]float64, len(groups))
	for i, g := range groups {
		sums[i] = floats.Sum(x[g.start : g.start+g.count])
	}

	res := make([]float64, len(groups))
	trailing := len(groups) - 1
	var xSum float64
	var nSum int
	for i := len(groups) - 1; i >= 0; i-- {
		xSum += sums[i]
		nSum += groups[i].count
		for nSum >= w {
			excessN := nSum - w
			excessX := float64(excessN) * sums[i] / float64(groups[i].count)
			res[trailing] = (xSum - excessX) / float64(w)
			xSum -= sums[trailing]
			nSum -= groups[trailing].count
			trailing--
		}
	}

	hs := make([]time.Duration, 0, len(groups)-trailing-1)
	for _, g := range groups[trailing+1:] {
		hs = append(hs, g.h)
	}
	return hs, res[trailing+1:]
}

// rollingMedianByH takes the median over each distinct horizon group,
// extended backwards with earlier rows until it holds at least w values.
func rollingMedianByH(x []float64, h []time.Duration, w int) ([]time.Duration, []float64) {
	groups := groupByH(h)
	var hs []time.Duration
	var values []float64
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		window := append([]float64(nil), x[g.start:g.start+g.count]...)
		for next := g.start - 1; len(window) < w && next >= 0; next-- {
			window = append(window, x[next])
		}
		if len(window) < w {
			break
		}
		hs = append(hs, g.h)
		values = append(values, median(window))
	}
	for i, j := 0, len(hs)-1; i < j; i, j = i+1, j-1 {
		hs[i], hs[j] = hs[j], hs[i]
		values[i], values[j] = values[j], values[i]
	}
	return hs, values
}

func median(x []float64) float64 {
	sort.Float64s(x)
	n := len(x)
	if n%2 == 1 {
		return x[n/2]
	}
	return stat.Mean(x[n/2-1:n/2+1], nil)
}
