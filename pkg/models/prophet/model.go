package prophet

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/metrics"
	"go.uber.org/zap"
)

const (
	DefaultNChangepoints         = 25
	DefaultChangepointRange      = 0.8
	DefaultChangepointPriorScale = 0.05
	DefaultSeasonalityPriorScale = 10.0
	DefaultHolidaysPriorScale    = 10.0
	DefaultIntervalWidth         = 0.80
	DefaultUncertaintySamples    = 1000
	DefaultMaxIterations         = 10000
)

const (
	yearlyPeriod = 365.25
	weeklyPeriod = 7.0
	dailyPeriod  = 1.0

	yearlyOrder = 10
	weeklyOrder = 3
	dailyOrder  = 4
)

var reservedNames = map[string]struct{}{
	"trend": {}, "additive_terms": {}, "multiplicative_terms": {},
	"extra_regressors_additive": {}, "extra_regressors_multiplicative": {},
	"holidays": {}, "yhat": {}, "ds": {}, "y": {}, "cap": {}, "floor": {},
	"y_scaled": {}, "cap_scaled": {}, "zeros": {},
}

// Model is an unfitted configuration. It is immutable once built and can be
// fit any number of times, concurrently.
type Model struct {
	growth                Growth
	changepoints          []time.Time
	specifiedChangepoints bool
	nChangepoints         int
	changepointRange      float64
	changepointPriorScale float64
	placement             Placement

	seasonalityMode       Mode
	seasonalityPriorScale float64
	holidaysPriorScale    float64
	yearly                Toggle
	weekly                Toggle
	daily                 Toggle
	seasonalities         []Seasonality
	holidays              []Holiday
	regressors            []Regressor

	intervalWidth      float64
	uncertaintySamples int
	seed               int64
	maxIterations      int
	fitTimeout         time.Duration

	logger    *zap.Logger
	collector *metrics.Collector
}

func New(options ...Option) (*Model, error) {
	m := &Model{
		growth:                GrowthLinear,
		nChangepoints:         DefaultNChangepoints,
		changepointRange:      DefaultChangepointRange,
		changepointPriorScale: DefaultChangepointPriorScale,
		placement:             PlacementQuantile,
		seasonalityMode:       ModeAdditive,
		seasonalityPriorScale: DefaultSeasonalityPriorScale,
		holidaysPriorScale:    DefaultHolidaysPriorScale,
		yearly:                ToggleAuto,
		weekly:                ToggleAuto,
		daily:                 ToggleAuto,
		intervalWidth:         DefaultIntervalWidth,
		uncertaintySamples:    DefaultUncertaintySamples,
		maxIterations:         DefaultMaxIterations,
		logger:                zap.NewNop(),
	}

	for _, option := range options {
		option(m)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	m.applyDefaults()
	return m, nil
}

func (m *Model) Growth() Growth                { return m.growth }
func (m *Model) SeasonalityMode() Mode          { return m.seasonalityMode }
func (m *Model) IntervalWidth() float64         { return m.intervalWidth }
func (m *Model) UncertaintySamples() int        { return m.uncertaintySamples }
func (m *Model) Seed() int64                    { return m.seed }
func (m *Model) Logger() *zap.Logger            { return m.logger }
func (m *Model) Collector() *metrics.Collector  { return m.collector }
func (m *Model) ChangepointPriorScale() float64 { return m.changepointPriorScale }

func (m *Model) Seasonalities() []Seasonality {
	return append([]Seasonality(nil), m.seasonalities...)
}

func (m *Model) Regressors() []Regressor {
	return append([]Regressor(nil), m.regressors...)
}

func (m *Model) Holidays() []Holiday {
	return append([]Holiday(nil), m.holidays...)
}

// MaxSeasonalityPeriod returns the longest configured period in days, zero
// when there is none.
func (m *Model) MaxSeasonalityPeriod() float64 {
	var longest float64
	for _, s := range m.seasonalities {
		longest = math.Max(longest, s.Period)
	}
	return longest
}

// With returns a copy of the model with extra options applied.
func (m *Model) With(options ...Option) (*Model, error) {
	c := m.clone()
	for _, option := range options {
		option(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

// TruncateChangepoints returns a copy whose explicit changepoints all fall
// strictly before end. Models with automatic placement are returned as is.
func (m *Model) TruncateChangepoints(end time.Time) *Model {
	if !m.specifiedChangepoints {
		return m
	}
	c := m.clone()
	c.changepoints = c.changepoints[:0]
	for _, cp := range m.changepoints {
		if cp.Before(end) {
			c.changepoints = append(c.changepoints, cp)
		}
	}
	return c
}

// Resolve decides the automatic seasonalities against the given series and
// returns a model with them pinned. Fitting the result on any sub-range of the
// series yields the same component set.
func (m *Model) Resolve(series []common.Observation) (*Model, error) {
	history := common.SortedCopy(common.Present(series))
	if common.DistinctTimeStamps(history) < 2 {
		return nil, fmt.Errorf("%w: fewer than 2 distinct timestamps", ErrInvalidTimeRange)
	}

	first, last := common.Span(history)
	span := last.Sub(first)
	minStep := smallestStep(history)

	c := m.clone()
	builtins := []struct {
		name     string
		toggle   Toggle
		period   float64
		order    int
		minSpan  time.Duration
		maxStep  time.Duration
		disabled string
	}{
		{"yearly", m.yearly, yearlyPeriod, yearlyOrder, 370 * 24 * time.Hour, 0, "history shorter than 370 days"},
		{"weekly", m.weekly, weeklyPeriod, weeklyOrder, 14 * 24 * time.Hour, 7 * 24 * time.Hour, "history shorter than 14 days or spacing of a week or more"},
		{"daily", m.daily, dailyPeriod, dailyOrder, 2 * 24 * time.Hour, 24 * time.Hour, "history shorter than 2 days or spacing of a day or more"},
	}

	for _, b := range builtins {
		if c.hasSeasonality(b.name) {
			continue
		}
		order := 0
		switch {
		case b.toggle == ToggleAuto:
			if span >= b.minSpan && (b.maxStep == 0 || minStep < b.maxStep) {
				order = b.order
			} else {
				m.logger.Info("disabling seasonality",
					zap.String("name", b.name),
					zap.String("reason", b.disabled))
			}
		case b.toggle > 0:
			order = int(b.toggle)
		}
		if order > 0 {
			c.seasonalities = append(c.seasonalities, Seasonality{
				Name:         b.name,
				Period:       b.period,
				FourierOrder: order,
				PriorScale:   c.seasonalityPriorScale,
				Mode:         c.seasonalityMode,
			})
		}
	}
	c.yearly, c.weekly, c.daily = ToggleOff, ToggleOff, ToggleOff
	return c, nil
}

func (m *Model) hasSeasonality(name string) bool {
	for _, s := range m.seasonalities {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (m *Model) clone() *Model {
	c := *m
	c.changepoints = append([]time.Time(nil), m.changepoints...)
	c.seasonalities = append([]Seasonality(nil), m.seasonalities...)
	c.holidays = append([]Holiday(nil), m.holidays...)
	c.regressors = append([]Regressor(nil), m.regressors...)
	return &c
}

func (m *Model) applyDefaults() {
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	for i := range m.seasonalities {
		if m.seasonalities[i].PriorScale == 0 {
			m.seasonalities[i].PriorScale = m.seasonalityPriorScale
		}
		m.seasonalities[i].Mode = m.seasonalities[i].Mode.resolve(m.seasonalityMode)
	}
	for i := range m.holidays {
		if m.holidays[i].PriorScale == 0 {
			m.holidays[i].PriorScale = m.holidaysPriorScale
		}
	}
	for i := range m.regressors {
		if m.regressors[i].PriorScale == 0 {
			m.regressors[i].PriorScale = m.holidaysPriorScale
		}
		m.regressors[i].Mode = m.regressors[i].Mode.resolve(m.seasonalityMode)
	}
	sort.Slice(m.changepoints, func(i, j int) bool {
		return m.changepoints[i].Before(m.changepoints[j])
	})
}

func (m *Model) validate() error {
	if m.growth < GrowthLinear || m.growth > GrowthFlat {
		return fmt.Errorf("%w: unknown growth %d", ErrInvalidConfig, m.growth)
	}
	if m.seasonalityMode != ModeAdditive && m.seasonalityMode != ModeMultiplicative {
		return fmt.Errorf("%w: seasonality mode must be additive or multiplicative", ErrInvalidConfig)
	}
	if m.nChangepoints < 0 {
		return fmt.Errorf("%w: n_changepoints must be non-negative", ErrInvalidConfig)
	}
	if m.changepointRange < 0 || m.changepointRange > 1 {
		return fmt.Errorf("%w: changepoint range must be in [0, 1]", ErrInvalidConfig)
	}
	for _, scale := range []float64{m.changepointPriorScale, m.seasonalityPriorScale, m.holidaysPriorScale} {
		if !(scale > 0) || math.IsInf(scale, 0) {
			return fmt.Errorf("%w: prior scales must be positive and finite", ErrInvalidConfig)
		}
	}
	if !(m.intervalWidth > 0 && m.intervalWidth < 1) {
		return fmt.Errorf("%w: interval width must be in (0, 1)", ErrInvalidConfig)
	}
	if m.uncertaintySamples < 0 {
		return fmt.Errorf("%w: uncertainty samples must be non-negative", ErrInvalidConfig)
	}
	if m.maxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive", ErrInvalidConfig)
	}

	seen := make(map[int64]struct{}, len(m.changepoints))
	for _, cp := range m.changepoints {
		if cp.IsZero() {
			return fmt.Errorf("%w: zero timestamp", ErrInvalidChangepoints)
		}
		if _, dup := seen[cp.UnixNano()]; dup {
			return fmt.Errorf("%w: duplicate changepoint %s", ErrInvalidChangepoints, cp.Format(time.RFC3339))
		}
		seen[cp.UnixNano()] = struct{}{}
	}

	owners := make(map[string]string)
	claim := func(name, kind string) error {
		if err := validateName(name); err != nil {
			return err
		}
		if owner, ok := owners[name]; ok && owner != kind {
			return fmt.Errorf("%w: name %q used by both %s and %s", ErrInvalidConfig, name, owner, kind)
		}
		owners[name] = kind
		return nil
	}

	seasonalNames := make(map[string]struct{})
	for _, s := range m.seasonalities {
		if err := claim(s.Name, "seasonality"); err != nil {
			return err
		}
		if _, dup := seasonalNames[s.Name]; dup {
			return fmt.Errorf("%w: duplicate seasonality %q", ErrInvalidConfig, s.Name)
		}
		seasonalNames[s.Name] = struct{}{}
		if !(s.Period > 0) {
			return fmt.Errorf("%w: seasonality %q period must be positive", ErrInvalidConfig, s.Name)
		}
		if s.FourierOrder <= 0 {
			return fmt.Errorf("%w: seasonality %q fourier order must be positive", ErrInvalidConfig, s.Name)
		}
		if s.PriorScale < 0 {
			return fmt.Errorf("%w: seasonality %q prior scale must be positive", ErrInvalidConfig, s.Name)
		}
		if s.ConditionName != "" {
			if err := validateName(s.ConditionName); err != nil {
				return err
			}
		}
	}

	for _, h := range m.holidays {
		if err := claim(h.Name, "holiday"); err != nil {
			return err
		}
		if h.Date.IsZero() {
			return fmt.Errorf("%w: holiday %q has no date", ErrInvalidConfig, h.Name)
		}
		if h.LowerWindow > 0 || h.UpperWindow < 0 {
			return fmt.Errorf("%w: holiday %q window must satisfy lower <= 0 <= upper", ErrInvalidConfig, h.Name)
		}
		if h.PriorScale < 0 {
			return fmt.Errorf("%w: holiday %q prior scale must be positive", ErrInvalidConfig, h.Name)
		}
	}

	regressorNames := make(map[string]struct{})
	for _, r := range m.regressors {
		if err := claim(r.Name, "regressor"); err != nil {
			return err
		}
		if _, dup := regressorNames[r.Name]; dup {
			return fmt.Errorf("%w: duplicate regressor %q", ErrInvalidConfig, r.Name)
		}
		regressorNames[r.Name] = struct{}{}
		if r.PriorScale < 0 {
			return fmt.Errorf("%w: regressor %q prior scale must be positive", ErrInvalidConfig, r.Name)
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty component name", ErrInvalidConfig)
	}
	if strings.Contains(name, featureDelimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrReservedName, name, featureDelimiter)
	}
	base := strings.TrimSuffix(strings.TrimSuffix(name, "_lower"), "_upper")
	if _, ok := reservedNames[base]; ok {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// smallestStep is the smallest positive spacing between sorted timestamps.
func smallestStep(sorted []common.Observation) time.Duration {
	var step time.Duration
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].TimeStamp.Sub(sorted[i-1].TimeStamp)
		if d > 0 && (step == 0 || d < step) {
			step = d
		}
	}
	return step
}
