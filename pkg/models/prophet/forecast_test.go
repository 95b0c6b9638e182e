package prophet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecast(t *testing.T) {
	series := createDailySeries(400, 21)

	forecasts, err := Forecast(context.Background(), series, 30, WithUncertaintySamples(100))
	require.NoError(t, err)
	require.Len(t, forecasts, 30)

	last := series[len(series)-1].TimeStamp
	assert.Equal(t, last.AddDate(0, 0, 1), forecasts[0].TimeStamp)
	assert.Equal(t, last.AddDate(0, 0, 30), forecasts[29].TimeStamp)

	_, err = Forecast(context.Background(), series, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Forecast(context.Background(), series[:5], 3)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestAnomalies(t *testing.T) {
	series := createDailySeries(200, 8)
	series[150].Value += 6

	anomalies, err := Anomalies(context.Background(), series, WithUncertaintySamples(500))
	require.NoError(t, err)
	require.NotEmpty(t, anomalies)

	found := false
	for _, a := range anomalies {
		if a.TimeStamp.Equal(series[150].TimeStamp) {
			found = true
			assert.Greater(t, a.Value, a.Forecast.YhatUpper)
		}
	}
	assert.True(t, found)
}
