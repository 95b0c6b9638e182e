package prophet

import (
	"fmt"
	"time"
)

type Growth int

const (
	GrowthLinear Growth = iota
	GrowthLogistic
	GrowthFlat
)

func (g Growth) String() string {
	switch g {
	case GrowthLinear:
		return "linear"
	case GrowthLogistic:
		return "logistic"
	case GrowthFlat:
		return "flat"
	default:
		return fmt.Sprintf("growth(%d)", int(g))
	}
}

func ParseGrowth(s string) (Growth, error) {
	switch s {
	case "linear":
		return GrowthLinear, nil
	case "logistic":
		return GrowthLogistic, nil
	case "flat":
		return GrowthFlat, nil
	}
	return 0, fmt.Errorf("%w: unknown growth %q", ErrInvalidConfig, s)
}

// Mode is the composition of a component with the trend. The zero value
// inherits the model-wide seasonality mode.
type Mode int

const (
	ModeInherit Mode = iota
	ModeAdditive
	ModeMultiplicative
)

func (m Mode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeAdditive:
		return "additive"
	case ModeMultiplicative:
		return "multiplicative"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "additive":
		return ModeAdditive, nil
	case "multiplicative":
		return ModeMultiplicative, nil
	case "", "inherit":
		return ModeInherit, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

func (m Mode) resolve(fallback Mode) Mode {
	if m == ModeInherit {
		return fallback
	}
	return m
}

// Placement selects where automatic changepoints go inside the changepoint
// range.
type Placement int

const (
	// PlacementQuantile spreads changepoints evenly over the observation rows.
	PlacementQuantile Placement = iota
	// PlacementUniform spreads changepoints evenly over time.
	PlacementUniform
)

// Toggle controls a built-in seasonality: ToggleAuto decides from the
// history, ToggleOff disables it and a positive value forces it on with that
// Fourier order.
type Toggle int

const (
	ToggleAuto Toggle = -1
	ToggleOff  Toggle = 0
)

// Seasonality is a Fourier component with Period in days.
type Seasonality struct {
	Name          string
	Period        float64
	FourierOrder  int
	PriorScale    float64
	Mode          Mode
	ConditionName string
}

// Holiday is one occurrence of a named event. The window extends the
// indicator LowerWindow days before (non-positive) and UpperWindow days after
// the date. Dates match on the calendar date, each timestamp read in its own
// location.
type Holiday struct {
	Name        string
	Date        time.Time
	LowerWindow int
	UpperWindow int
	PriorScale  float64
}

// Regressor is an external covariate read from Observation.Regressors.
type Regressor struct {
	Name        string
	PriorScale  float64
	Mode        Mode
	Standardize bool
}
