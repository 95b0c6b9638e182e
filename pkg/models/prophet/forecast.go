package prophet

import (
	"context"
	"fmt"

	"github.com/peter-kozarec/augur/pkg/common"
)

// Forecast fits a model on series and predicts count steps past its end at
// the detected frequency of the series.
func Forecast(ctx context.Context, series []common.Observation, count int, options ...Option) ([]common.Forecast, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidConfig)
	}
	freq, err := DetectFrequency(common.Present(series))
	if err != nil {
		return nil, err
	}
	model, err := New(options...)
	if err != nil {
		return nil, err
	}
	fitted, err := model.Fit(ctx, series)
	if err != nil {
		return nil, err
	}
	return fitted.PredictFuture(ctx, count, freq, false)
}

// Anomalies fits a model with a 99% interval (unless options set another
// width) and returns the observations outside their in-sample interval.
func Anomalies(ctx context.Context, series []common.Observation, options ...Option) ([]Anomaly, error) {
	model, err := New(append([]Option{WithIntervalWidth(0.99)}, options...)...)
	if err != nil {
		return nil, err
	}
	fitted, err := model.Fit(ctx, series)
	if err != nil {
		return nil, err
	}
	return fitted.Anomalies(ctx, series)
}
