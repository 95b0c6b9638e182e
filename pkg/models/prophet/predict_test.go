package prophet

import (
	"context"
	"math"
	"testing"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict_YearAhead(t *testing.T) {
	series := createDailySeries(2900, 123)

	fitted, err := mustModel(t, WithSeed(123)).Fit(context.Background(), series)
	require.NoError(t, err)

	forecasts, err := fitted.PredictFuture(context.Background(), 365, Daily, false)
	require.NoError(t, err)
	require.Len(t, forecasts, 365)

	last := series[len(series)-1].TimeStamp
	for i, fc := range forecasts {
		assert.Equal(t, last.AddDate(0, 0, i+1), fc.TimeStamp)
		assert.LessOrEqual(t, fc.YhatLower, fc.Yhat)
		assert.LessOrEqual(t, fc.Yhat, fc.YhatUpper)
		assert.LessOrEqual(t, fc.TrendLower, fc.Trend)
		assert.LessOrEqual(t, fc.Trend, fc.TrendUpper)
	}
	// trend uncertainty grows with the horizon
	first, end := forecasts[0], forecasts[len(forecasts)-1]
	assert.Greater(t, end.YhatUpper-end.YhatLower, first.YhatUpper-first.YhatLower)
}

func TestPredict_SeededIntervals(t *testing.T) {
	series := createDailySeries(200, 3)
	fitted, err := mustModel(t, WithUncertaintySamples(200)).Fit(context.Background(), series)
	require.NoError(t, err)

	rows := futureRows(series[len(series)-1].TimeStamp, 30)
	a, err := fitted.Predict(context.Background(), rows)
	require.NoError(t, err)
	b, err := fitted.Predict(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := fitted.Predict(context.Background(), rows, WithPredictSeed(99))
	require.NoError(t, err)
	assert.NotEqual(t, a[29].YhatUpper, c[29].YhatUpper)
	assert.Equal(t, a[29].Yhat, c[29].Yhat, "point forecast does not depend on the seed")
}

func TestPredict_WithoutUncertainty(t *testing.T) {
	series := createDailySeries(100, 3)
	fitted, err := mustModel(t).Fit(context.Background(), series)
	require.NoError(t, err)

	forecasts, err := fitted.Predict(context.Background(), futureRows(series[len(series)-1].TimeStamp, 5), WithoutUncertainty())
	require.NoError(t, err)
	for _, fc := range forecasts {
		assert.Equal(t, fc.Yhat, fc.YhatLower)
		assert.Equal(t, fc.Yhat, fc.YhatUpper)
	}
}

func TestPredict_ComponentsAddUp(t *testing.T) {
	series := createDailySeries(400, 2)
	for i := range series {
		series[i].Regressors = map[string]float64{"promo": float64(i % 5 / 4)}
	}
	m := mustModel(t,
		WithRegressor(Regressor{Name: "promo", Mode: ModeMultiplicative}),
		WithHolidays(Holiday{Name: "launch", Date: testStart.AddDate(0, 3, 0), UpperWindow: 2}),
	)
	fitted, err := m.Fit(context.Background(), series)
	require.NoError(t, err)

	forecasts, err := fitted.Predict(context.Background(), series[:60], WithoutUncertainty())
	require.NoError(t, err)
	for _, fc := range forecasts {
		add, ok := fc.Component(componentAdditiveTerms)
		require.True(t, ok)
		mul, ok := fc.Component(componentMultiplicativeTerms)
		require.True(t, ok)
		assert.InDelta(t, fc.Yhat, fc.Trend*(1+mul)+add, 1e-9)

		weekly, _ := fc.Component("weekly")
		yearly, _ := fc.Component("yearly")
		holidays, _ := fc.Component(componentHolidays)
		assert.InDelta(t, add, weekly+yearly+holidays, 1e-9)

		promo, _ := fc.Component("promo")
		regressors, _ := fc.Component(componentRegressorsMultiple)
		assert.InDelta(t, mul, promo, 1e-12)
		assert.InDelta(t, regressors, promo, 1e-12)
	}
	assert.Contains(t, forecasts[0].ComponentNames(), "launch")
}

func TestPredict_UnseenRegressor(t *testing.T) {
	series := createDailySeries(100, 1)
	for i := range series {
		series[i].Regressors = map[string]float64{"temp": float64(i % 7)}
	}
	fitted, err := mustModel(t, WithRegressor(Regressor{Name: "temp"})).Fit(context.Background(), series)
	require.NoError(t, err)

	rows := futureRows(series[len(series)-1].TimeStamp, 10)
	_, err = fitted.Predict(context.Background(), rows)
	assert.ErrorIs(t, err, ErrUnseenRegressor)

	_, err = fitted.PredictFuture(context.Background(), 10, Daily, false)
	assert.ErrorIs(t, err, ErrUnseenRegressor)

	// a blank CSV cell arrives as NaN
	for i := range rows {
		rows[i].Regressors = map[string]float64{"temp": math.NaN()}
	}
	_, err = fitted.Predict(context.Background(), rows)
	assert.ErrorIs(t, err, ErrUnseenRegressor)
	assert.NotErrorIs(t, err, ErrInvalidValue)

	for i := range rows {
		rows[i].Regressors = map[string]float64{"temp": 3}
	}
	forecasts, err := fitted.Predict(context.Background(), rows)
	require.NoError(t, err)
	assert.Len(t, forecasts, 10)
}

func TestPredict_Logistic(t *testing.T) {
	series := createLogisticSeries(300, 10, 1)
	fitted, err := mustModel(t, WithGrowth(GrowthLogistic), WithoutWeeklySeasonality()).Fit(context.Background(), series)
	require.NoError(t, err)

	rows := futureRows(series[len(series)-1].TimeStamp, 200)
	_, err = fitted.Predict(context.Background(), rows)
	assert.ErrorIs(t, err, ErrMissingCapacity)

	_, err = fitted.PredictFuture(context.Background(), 10, Daily, false)
	assert.ErrorIs(t, err, ErrMissingCapacity)

	for i := range rows {
		rows[i].Cap = 10
	}
	forecasts, err := fitted.Predict(context.Background(), rows)
	require.NoError(t, err)
	for _, fc := range forecasts {
		assert.LessOrEqual(t, fc.Yhat, 10.0)
		assert.LessOrEqual(t, fc.YhatUpper, 10.0)
		assert.LessOrEqual(t, fc.Trend, 10.0)
		assert.LessOrEqual(t, fc.YhatLower, fc.Yhat)
		assert.Equal(t, 10.0, fc.Cap)
	}
	assert.InDelta(t, 10, forecasts[len(forecasts)-1].Yhat, 1, "saturates at the cap")
}

func TestPredict_EmptyRows(t *testing.T) {
	fitted, err := mustModel(t).Fit(context.Background(), createDailySeries(50, 1))
	require.NoError(t, err)

	forecasts, err := fitted.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, forecasts)

	_, err = fitted.Predict(context.Background(), []common.Observation{{Value: 1}})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestPredict_Cancelled(t *testing.T) {
	fitted, err := mustModel(t).Fit(context.Background(), createDailySeries(50, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fitted.Predict(ctx, futureRows(testStart.AddDate(0, 0, 49), 5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredict_Anomalies(t *testing.T) {
	series := createDailySeries(300, 12)
	series[100].Value += 5
	series[200].Value -= 5
	series[250].Value = math.NaN()

	fitted, err := mustModel(t, WithIntervalWidth(0.99)).Fit(context.Background(), series)
	require.NoError(t, err)

	anomalies, err := fitted.Anomalies(context.Background(), series)
	require.NoError(t, err)

	var found []int
	for _, a := range anomalies {
		found = append(found, int(a.TimeStamp.Sub(testStart).Hours()/24))
		assert.False(t, a.Forecast.Contains(a.Value))
	}
	assert.Contains(t, found, 100)
	assert.Contains(t, found, 200)
	assert.NotContains(t, found, 250)
}

func TestPoissonAndLaplace(t *testing.T) {
	rng := newTestRand(1)

	var sum float64
	const draws = 20000
	for i := 0; i < draws; i++ {
		sum += float64(poisson(rng, 45))
	}
	assert.InDelta(t, 45, sum/draws, 0.5)
	assert.Equal(t, 0, poisson(rng, 0))

	var abs float64
	for i := 0; i < draws; i++ {
		v := laplace(rng, 2)
		require.False(t, math.IsInf(v, 0))
		abs += math.Abs(v)
	}
	assert.InDelta(t, 2, abs/draws, 0.1)
}
