package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "augur"

// Collector groups the counters and histograms recorded by fits and
// cross-validation runs. A nil *Collector is valid and records nothing.
type Collector struct {
	FitsTotal           *prometheus.CounterVec
	FitDuration         prometheus.Histogram
	OptimizerIterations prometheus.Histogram
	FoldsTotal          *prometheus.CounterVec
	FoldDuration        prometheus.Histogram
	PredictRows         prometheus.Counter
}

// New registers the collectors with reg. Passing a dedicated registry keeps
// tests and embedded uses isolated from the default one.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		FitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fits_total",
				Help:      "Number of completed model fits",
			},
			[]string{"growth", "converged"},
		),
		FitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Wall time of a single model fit",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		OptimizerIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimizer_iterations",
			Help:      "Major iterations used by the optimizer per fit",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 12),
		}),
		FoldsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cv_folds_total",
				Help:      "Number of cross-validation folds by outcome",
			},
			[]string{"outcome"},
		),
		FoldDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cv_fold_duration_seconds",
			Help:      "Wall time of a cross-validation fold",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		PredictRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predicted_rows_total",
			Help:      "Number of forecast rows produced",
		}),
	}
}

func (c *Collector) ObserveFit(growth string, converged bool, iterations int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.FitsTotal.WithLabelValues(growth, strconv.FormatBool(converged)).Inc()
	c.FitDuration.Observe(elapsed.Seconds())
	c.OptimizerIterations.Observe(float64(iterations))
}

func (c *Collector) ObserveFold(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.FoldsTotal.WithLabelValues(outcome).Inc()
	c.FoldDuration.Observe(elapsed.Seconds())
}

func (c *Collector) ObservePrediction(rows int) {
	if c == nil {
		return
	}
	c.PredictRows.Add(float64(rows))
}
