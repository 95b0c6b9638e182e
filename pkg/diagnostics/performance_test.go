package diagnostics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createRows builds rows with horizons of 1, 1, 2 and 3 days, actual 10 and
// errors of 1, 2, 3 and 4.
func createRows() []Row {
	cutoff := dayOf(100)
	horizons := []int{1, 1, 2, 3}
	rows := make([]Row, len(horizons))
	for i, h := range horizons {
		yhat := 10 - float64(i+1)
		rows[i] = Row{
			TimeStamp: cutoff.AddDate(0, 0, h),
			Cutoff:    cutoff,
			Y:         10,
			Yhat:      yhat,
			YhatLower: yhat - 1.5,
			YhatUpper: yhat + 1.5,
		}
	}
	// shuffle the input; aggregation sorts by horizon
	rows[2], rows[3] = rows[3], rows[2]
	return rows
}

func TestPerformanceMetrics_RollingWindow(t *testing.T) {
	out, err := PerformanceMetrics(createRows(), WithWindowRows(2))
	require.NoError(t, err)
	require.Len(t, out, 3)

	want := []struct {
		mse, mae, mdape, coverage float64
	}{
		{mse: 2.5, mae: 1.5, mdape: 0.15, coverage: 0.5},
		{mse: 5.75, mae: 2.25, mdape: 0.25, coverage: 0.25},
		{mse: 12.5, mae: 3.5, mdape: 0.35, coverage: 0},
	}
	for i, w := range want {
		assert.Equal(t, days(i+1), out[i].Horizon)
		assert.InDelta(t, w.mse, out[i].MSE, 1e-12)
		assert.InDelta(t, math.Sqrt(w.mse), out[i].RMSE, 1e-12)
		assert.InDelta(t, w.mae, out[i].MAE, 1e-12)
		assert.InDelta(t, w.mae/10, out[i].MAPE, 1e-12)
		assert.InDelta(t, w.mdape, out[i].MDAPE, 1e-12)
		assert.InDelta(t, w.coverage, out[i].Coverage, 1e-12)
	}
	assert.Equal(t, DefaultMetrics, out[0].Metrics)
}

func TestPerformanceMetrics_WindowSize(t *testing.T) {
	rows := createRows()

	tests := []struct {
		name    string
		options []MetricsOption
		want    int
	}{
		{name: "Default fraction", want: 3},
		{name: "Whole result", options: []MetricsOption{WithRollingWindow(1)}, want: 1},
		{name: "Half", options: []MetricsOption{WithRollingWindow(0.5)}, want: 3},
		{name: "Three rows", options: []MetricsOption{WithWindowRows(3)}, want: 2},
		{name: "More rows than exist", options: []MetricsOption{WithWindowRows(10)}, want: 1},
		{name: "Unwindowed", options: []MetricsOption{WithRollingWindow(-1)}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := PerformanceMetrics(rows, tt.options...)
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
			for i := 1; i < len(out); i++ {
				assert.LessOrEqual(t, out[i-1].Horizon, out[i].Horizon)
			}
		})
	}
}

func TestPerformanceMetrics_Unwindowed(t *testing.T) {
	out, err := PerformanceMetrics(createRows(), WithRollingWindow(-1), WithMetrics(MetricMSE, MetricSMAPE, MetricCoverage))
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, 1.0, out[0].MSE)
	assert.Equal(t, 4.0, out[1].MSE)
	assert.InDelta(t, 1/9.5, out[0].SMAPE, 1e-12)
	assert.Equal(t, 1.0, out[0].Coverage)
	assert.Equal(t, 0.0, out[3].Coverage)
	assert.True(t, math.IsNaN(out[0].MAE), "metrics not requested stay NaN")
}

func TestPerformanceMetrics_SkipsUnsupportedMetrics(t *testing.T) {
	rows := createRows()
	rows[1].Y = 0
	for i := range rows {
		rows[i].YhatLower = rows[i].Yhat
		rows[i].YhatUpper = rows[i].Yhat
	}

	out, err := PerformanceMetrics(rows)
	require.NoError(t, err)
	assert.Equal(t, []Metric{MetricMSE, MetricRMSE, MetricMAE, MetricSMAPE}, out[0].Metrics)
	assert.True(t, math.IsNaN(out[0].MAPE))
	assert.True(t, math.IsNaN(out[0].Coverage))

	_, err = PerformanceMetrics(rows, WithMetrics(MetricMAPE))
	assert.ErrorIs(t, err, ErrInvalidMetric)
}

func TestPerformanceMetrics_SMAPEOfZeros(t *testing.T) {
	rows := []Row{{TimeStamp: dayOf(2), Cutoff: dayOf(1), Y: 0, Yhat: 0}}
	out, err := PerformanceMetrics(rows, WithMetrics(MetricSMAPE))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[0].SMAPE)
}

func TestPerformanceMetrics_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rows    []Row
		options []MetricsOption
		wantErr error
	}{
		{name: "No rows", rows: nil, wantErr: ErrEmptyResult},
		{name: "Unknown metric", rows: createRows(), options: []MetricsOption{WithMetrics("r2")}, wantErr: ErrInvalidMetric},
		{name: "Duplicate metric", rows: createRows(), options: []MetricsOption{WithMetrics(MetricMAE, MetricMAE)}, wantErr: ErrDuplicateMetric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PerformanceMetrics(tt.rows, tt.options...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("mdape")
	require.NoError(t, err)
	assert.Equal(t, MetricMDAPE, m)

	_, err = ParseMetric("MDAPE")
	assert.ErrorIs(t, err, ErrInvalidMetric)
}
