package diagnostics

import "errors"

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidCutoffs      = errors.New("invalid cutoffs")
	ErrNoFolds             = errors.New("no cross-validation fold succeeded")
	ErrInvalidMetric       = errors.New("invalid metric")
	ErrDuplicateMetric     = errors.New("duplicate metric")
	ErrEmptyResult         = errors.New("empty cross-validation result")
)
