package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/augur/pkg/metrics"
	"github.com/peter-kozarec/augur/pkg/models/prophet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// parseDuration accepts Go durations and a day suffix such as 730d or 1.5d.
func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n * float64(day)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseDates(values []string) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(values))
	for _, v := range values {
		ts, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		dates = append(dates, ts)
	}
	return dates, nil
}

// parseHoliday reads name:date[:lower:upper].
func parseHoliday(s string) (prophet.Holiday, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return prophet.Holiday{}, fmt.Errorf("invalid holiday %q, want name:date[:lower:upper]", s)
	}
	date, err := parseDate(parts[1])
	if err != nil {
		return prophet.Holiday{}, err
	}
	h := prophet.Holiday{Name: parts[0], Date: date}
	if len(parts) == 4 {
		if h.LowerWindow, err = strconv.Atoi(parts[2]); err != nil {
			return prophet.Holiday{}, fmt.Errorf("invalid lower window in %q", s)
		}
		if h.UpperWindow, err = strconv.Atoi(parts[3]); err != nil {
			return prophet.Holiday{}, fmt.Errorf("invalid upper window in %q", s)
		}
	}
	return h, nil
}

// modelFlags are the model configuration flags shared by the commands that
// fit.
type modelFlags struct {
	growth                string
	seasonalityMode       string
	nChangepoints         int
	changepointRange      float64
	changepointPriorScale float64
	changepoints          []string
	seasonalityPriorScale float64
	holidaysPriorScale    float64
	yearly                int
	weekly                int
	daily                 int
	holidays              []string
	regressors            []string
	standardize           bool
	intervalWidth         float64
	samples               int
	seed                  int64
	maxIterations         int
	fitTimeout            string
}

func (f *modelFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.growth, "growth", "linear", "Trend growth (linear, logistic, flat)")
	fs.StringVar(&f.seasonalityMode, "seasonality-mode", "additive", "Seasonality mode (additive, multiplicative)")
	fs.IntVar(&f.nChangepoints, "n-changepoints", 25, "Number of automatic changepoints")
	fs.Float64Var(&f.changepointRange, "changepoint-range", 0.8, "Fraction of history holding changepoints")
	fs.Float64Var(&f.changepointPriorScale, "changepoint-prior-scale", 0.05, "Trend flexibility")
	fs.StringSliceVar(&f.changepoints, "changepoint", nil, "Explicit changepoint date (repeatable)")
	fs.Float64Var(&f.seasonalityPriorScale, "seasonality-prior-scale", 10, "Seasonality strength prior")
	fs.Float64Var(&f.holidaysPriorScale, "holidays-prior-scale", 10, "Holiday strength prior")
	fs.IntVar(&f.yearly, "yearly", int(prophet.ToggleAuto), "Yearly Fourier order (-1 auto, 0 off)")
	fs.IntVar(&f.weekly, "weekly", int(prophet.ToggleAuto), "Weekly Fourier order (-1 auto, 0 off)")
	fs.IntVar(&f.daily, "daily", int(prophet.ToggleAuto), "Daily Fourier order (-1 auto, 0 off)")
	fs.StringSliceVar(&f.holidays, "holiday", nil, "Holiday as name:date[:lower:upper] (repeatable)")
	fs.StringSliceVar(&f.regressors, "regressor", nil, "Extra regressor column (repeatable)")
	fs.BoolVar(&f.standardize, "standardize", false, "Standardize regressors")
	fs.Float64Var(&f.intervalWidth, "interval-width", 0.8, "Uncertainty interval width")
	fs.IntVar(&f.samples, "samples", 1000, "Uncertainty samples (0 disables intervals)")
	fs.Int64Var(&f.seed, "seed", 0, "Random seed")
	fs.IntVar(&f.maxIterations, "max-iterations", 10000, "Optimizer iteration budget")
	fs.StringVar(&f.fitTimeout, "fit-timeout", "", "Optimizer wall time budget")
}

func (f *modelFlags) options(logger *zap.Logger, collector *metrics.Collector) ([]prophet.Option, error) {
	growth, err := prophet.ParseGrowth(f.growth)
	if err != nil {
		return nil, err
	}
	mode, err := prophet.ParseMode(f.seasonalityMode)
	if err != nil {
		return nil, err
	}

	options := []prophet.Option{
		prophet.WithGrowth(growth),
		prophet.WithSeasonalityMode(mode),
		prophet.WithNChangepoints(f.nChangepoints),
		prophet.WithChangepointRange(f.changepointRange),
		prophet.WithChangepointPriorScale(f.changepointPriorScale),
		prophet.WithSeasonalityPriorScale(f.seasonalityPriorScale),
		prophet.WithHolidaysPriorScale(f.holidaysPriorScale),
		prophet.WithIntervalWidth(f.intervalWidth),
		prophet.WithUncertaintySamples(f.samples),
		prophet.WithSeed(f.seed),
		prophet.WithMaxIterations(f.maxIterations),
		prophet.WithLogger(logger),
		prophet.WithCollector(collector),
	}
	options = append(options, toggle(f.yearly, prophet.WithYearlySeasonality, prophet.WithoutYearlySeasonality)...)
	options = append(options, toggle(f.weekly, prophet.WithWeeklySeasonality, prophet.WithoutWeeklySeasonality)...)
	options = append(options, toggle(f.daily, prophet.WithDailySeasonality, prophet.WithoutDailySeasonality)...)

	if len(f.changepoints) > 0 {
		dates, err := parseDates(f.changepoints)
		if err != nil {
			return nil, err
		}
		options = append(options, prophet.WithChangepoints(dates...))
	}
	for _, s := range f.holidays {
		h, err := parseHoliday(s)
		if err != nil {
			return nil, err
		}
		options = append(options, prophet.WithHolidays(h))
	}
	for _, name := range f.regressors {
		options = append(options, prophet.WithRegressor(prophet.Regressor{Name: name, Standardize: f.standardize}))
	}
	if f.fitTimeout != "" {
		timeout, err := parseDuration(f.fitTimeout)
		if err != nil {
			return nil, err
		}
		options = append(options, prophet.WithFitTimeout(timeout))
	}
	return options, nil
}

func toggle(order int, on func(int) prophet.Option, off func() prophet.Option) []prophet.Option {
	switch {
	case order == int(prophet.ToggleAuto):
		return nil
	case order <= 0:
		return []prophet.Option{off()}
	default:
		return []prophet.Option{on(order)}
	}
}
