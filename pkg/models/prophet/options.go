package prophet

import (
	"time"

	"github.com/peter-kozarec/augur/pkg/metrics"
	"go.uber.org/zap"
)

type Option func(*Model)

func WithGrowth(growth Growth) Option {
	return func(m *Model) {
		m.growth = growth
	}
}

// WithChangepoints replaces automatic placement with explicit dates.
func WithChangepoints(changepoints ...time.Time) Option {
	return func(m *Model) {
		m.changepoints = append([]time.Time(nil), changepoints...)
		m.specifiedChangepoints = true
	}
}

func WithNChangepoints(n int) Option {
	return func(m *Model) {
		m.nChangepoints = n
	}
}

func WithChangepointRange(fraction float64) Option {
	return func(m *Model) {
		m.changepointRange = fraction
	}
}

func WithChangepointPriorScale(scale float64) Option {
	return func(m *Model) {
		m.changepointPriorScale = scale
	}
}

func WithChangepointPlacement(placement Placement) Option {
	return func(m *Model) {
		m.placement = placement
	}
}

func WithSeasonalityMode(mode Mode) Option {
	return func(m *Model) {
		m.seasonalityMode = mode
	}
}

func WithSeasonalityPriorScale(scale float64) Option {
	return func(m *Model) {
		m.seasonalityPriorScale = scale
	}
}

func WithHolidaysPriorScale(scale float64) Option {
	return func(m *Model) {
		m.holidaysPriorScale = scale
	}
}

// WithSeasonality adds a custom component. A component named like a
// built-in one (yearly, weekly, daily) replaces it.
func WithSeasonality(s Seasonality) Option {
	return func(m *Model) {
		m.seasonalities = append(m.seasonalities, s)
	}
}

func WithYearlySeasonality(order int) Option {
	return func(m *Model) {
		m.yearly = Toggle(max(order, 0))
	}
}

func WithoutYearlySeasonality() Option {
	return func(m *Model) {
		m.yearly = ToggleOff
	}
}

func WithWeeklySeasonality(order int) Option {
	return func(m *Model) {
		m.weekly = Toggle(max(order, 0))
	}
}

func WithoutWeeklySeasonality() Option {
	return func(m *Model) {
		m.weekly = ToggleOff
	}
}

func WithDailySeasonality(order int) Option {
	return func(m *Model) {
		m.daily = Toggle(max(order, 0))
	}
}

func WithoutDailySeasonality() Option {
	return func(m *Model) {
		m.daily = ToggleOff
	}
}

func WithHolidays(holidays ...Holiday) Option {
	return func(m *Model) {
		m.holidays = append(m.holidays, holidays...)
	}
}

func WithRegressor(r Regressor) Option {
	return func(m *Model) {
		m.regressors = append(m.regressors, r)
	}
}

func WithIntervalWidth(width float64) Option {
	return func(m *Model) {
		m.intervalWidth = width
	}
}

// WithUncertaintySamples sets the number of simulated paths behind the
// intervals. Zero disables interval estimation.
func WithUncertaintySamples(samples int) Option {
	return func(m *Model) {
		m.uncertaintySamples = samples
	}
}

func WithSeed(seed int64) Option {
	return func(m *Model) {
		m.seed = seed
	}
}

func WithMaxIterations(iterations int) Option {
	return func(m *Model) {
		m.maxIterations = iterations
	}
}

// WithFitTimeout bounds the wall time of the optimizer. The best point found
// so far is kept when the budget runs out.
func WithFitTimeout(timeout time.Duration) Option {
	return func(m *Model) {
		m.fitTimeout = timeout
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

func WithCollector(collector *metrics.Collector) Option {
	return func(m *Model) {
		m.collector = collector
	}
}

type FitOption func(*fitConfig)

type fitConfig struct {
	seed int64
	init *Params
}

// WithFitSeed overrides the model seed for one fit.
func WithFitSeed(seed int64) FitOption {
	return func(c *fitConfig) {
		c.seed = seed
	}
}

// WithInitialParams warm-starts the optimizer, typically from the Params of
// a model fit on a shorter history.
func WithInitialParams(p Params) FitOption {
	return func(c *fitConfig) {
		clone := p.clone()
		c.init = &clone
	}
}

type PredictOption func(*predictConfig)

type predictConfig struct {
	seed          int64
	noUncertainty bool
}

func WithPredictSeed(seed int64) PredictOption {
	return func(c *predictConfig) {
		c.seed = seed
	}
}

// WithoutUncertainty skips the interval simulation; bounds equal the point
// estimate.
func WithoutUncertainty() PredictOption {
	return func(c *predictConfig) {
		c.noUncertainty = true
	}
}
