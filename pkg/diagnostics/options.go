package diagnostics

import (
	"runtime"
	"time"

	"github.com/peter-kozarec/augur/pkg/metrics"
	"go.uber.org/zap"
)

// Anchor selects where an automatic cutoff schedule starts.
type Anchor int

const (
	// AnchorInitial steps forward from the end of the initial window.
	AnchorInitial Anchor = iota
	// AnchorLatest steps backward from the last cutoff that still leaves a
	// full horizon of history.
	AnchorLatest
)

func (a Anchor) String() string {
	if a == AnchorLatest {
		return "latest"
	}
	return "initial"
}

type Option func(*config)

type config struct {
	initial     time.Duration
	initialSet  bool
	period      time.Duration
	cutoffs     []time.Time
	anchor      Anchor
	parallelism int
	foldTimeout time.Duration
	logger      *zap.Logger
	collector   *metrics.Collector
}

func newConfig(horizon time.Duration, options []Option) config {
	cfg := config{
		initial:     3 * horizon,
		period:      horizon / 2,
		parallelism: runtime.GOMAXPROCS(0),
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.parallelism < 1 {
		cfg.parallelism = 1
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// WithInitial sets the length of the first training window. Explicit
// cutoffs are only checked against it when it is set.
func WithInitial(initial time.Duration) Option {
	return func(c *config) {
		c.initial = initial
		c.initialSet = true
	}
}

func WithPeriod(period time.Duration) Option {
	return func(c *config) {
		c.period = period
	}
}

// WithCutoffs replaces the generated schedule. Folds are reported in the
// order given.
func WithCutoffs(cutoffs ...time.Time) Option {
	return func(c *config) {
		c.cutoffs = append([]time.Time(nil), cutoffs...)
	}
}

func WithCutoffAnchor(anchor Anchor) Option {
	return func(c *config) {
		c.anchor = anchor
	}
}

// WithParallelism bounds the number of folds evaluated at once.
func WithParallelism(n int) Option {
	return func(c *config) {
		c.parallelism = n
	}
}

// WithFoldTimeout aborts a single fold after d. The fold is recorded as a
// failure and the other folds continue.
func WithFoldTimeout(d time.Duration) Option {
	return func(c *config) {
		c.foldTimeout = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithCollector(collector *metrics.Collector) Option {
	return func(c *config) {
		c.collector = collector
	}
}

type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	rollingWindow float64
	windowRows    int
	metrics       []Metric
}

// WithRollingWindow sets the window as a fraction of the rows. A negative
// fraction disables windowing and scores every row on its own.
func WithRollingWindow(fraction float64) MetricsOption {
	return func(c *metricsConfig) {
		c.rollingWindow = fraction
		c.windowRows = 0
	}
}

// WithWindowRows sets the window length in rows.
func WithWindowRows(n int) MetricsOption {
	return func(c *metricsConfig) {
		c.windowRows = n
	}
}

func WithMetrics(metrics ...Metric) MetricsOption {
	return func(c *metricsConfig) {
		c.metrics = append([]Metric(nil), metrics...)
	}
}
