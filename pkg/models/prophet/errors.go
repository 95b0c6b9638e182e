package prophet

import "errors"

var (
	ErrInvalidTimeRange    = errors.New("invalid time range")
	ErrInvalidValue        = errors.New("invalid observation value")
	ErrMissingCapacity     = errors.New("missing capacity")
	ErrInvalidCapacity     = errors.New("invalid capacity")
	ErrMissingRegressor    = errors.New("missing regressor value")
	ErrUnseenRegressor     = errors.New("unseen regressor")
	ErrMissingCondition    = errors.New("missing seasonality condition")
	ErrInvalidConfig       = errors.New("invalid model configuration")
	ErrReservedName        = errors.New("reserved component name")
	ErrInvalidChangepoints = errors.New("invalid changepoints")
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrCorruptModel        = errors.New("corrupt model encoding")

	// ErrNotConverged is attached to Diagnostics.Cause; Fit never returns it.
	ErrNotConverged = errors.New("optimizer did not converge")
)
