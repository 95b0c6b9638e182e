package prophet

import (
	"math"
	"testing"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_TimeScale(t *testing.T) {
	history := createLinearSeries(11, -4, 1)

	n, err := NewNormalizer(history, false)
	require.NoError(t, err)

	assert.Equal(t, testStart, n.Start)
	assert.Equal(t, (10 * 24 * time.Hour).Seconds(), n.TScale)
	assert.Equal(t, 6.0, n.YScale, "max absolute value")

	assert.Equal(t, 0.0, n.Time(testStart))
	assert.Equal(t, 1.0, n.Time(testStart.AddDate(0, 0, 10)))
	assert.InDelta(t, 1.5, n.Time(testStart.AddDate(0, 0, 15)), 1e-12, "future maps past 1")
	assert.Equal(t, testStart.AddDate(0, 0, 5), n.TimeStamp(0.5))
}

func TestNormalizer_Floor(t *testing.T) {
	history := []common.Observation{
		{TimeStamp: testStart, Value: 3, Floor: 2, Cap: 10},
		{TimeStamp: testStart.AddDate(0, 0, 1), Value: 6, Floor: 2, Cap: 10},
	}
	n, err := NewNormalizer(history, true)
	require.NoError(t, err)

	assert.Equal(t, 4.0, n.YScale)
	assert.Equal(t, 1.0, n.Value(history[1]))
	assert.Equal(t, 2.0, n.Cap(history[1]))
}

func TestNormalizer_ZeroSeries(t *testing.T) {
	history := createLinearSeries(5, 0, 0)
	n, err := NewNormalizer(history, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n.YScale)
}

func TestNormalizer_InvalidTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		history []common.Observation
	}{
		{name: "Empty"},
		{name: "Single row", history: createLinearSeries(1, 0, 1)},
		{
			name: "Repeated timestamp",
			history: []common.Observation{
				{TimeStamp: testStart, Value: 1},
				{TimeStamp: testStart, Value: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNormalizer(tt.history, false)
			assert.ErrorIs(t, err, ErrInvalidTimeRange)
		})
	}
}

func TestNormalizer_FitRejectsDegenerateSeries(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	series := createLinearSeries(10, 1, 1)
	for i := 1; i < len(series); i++ {
		series[i].Value = math.NaN()
	}
	_, err = m.Fit(t.Context(), series)
	assert.ErrorIs(t, err, ErrInvalidTimeRange, "one present value is not a range")

	_, err = m.Fit(t.Context(), []common.Observation{{Value: 1}, {Value: 2}})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}
