package diagnostics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/peter-kozarec/augur/pkg/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func createResult() *Result {
	cutoffs := []time.Time{dayOf(10), dayOf(20)}
	return &Result{
		RunID:   utility.NewRunID(),
		Horizon: days(2),
		Cutoffs: cutoffs,
		Folds: []Fold{
			{Cutoff: cutoffs[0], Rows: 2, Converged: true},
			{Cutoff: cutoffs[1], Rows: 2, Converged: false},
		},
		Rows: []Row{
			{Cutoff: cutoffs[0], TimeStamp: dayOf(11), Y: 10, Yhat: 11, YhatLower: 9, YhatUpper: 12},
			{Cutoff: cutoffs[0], TimeStamp: dayOf(12), Y: 10, Yhat: 7, YhatLower: 6, YhatUpper: 8},
			{Cutoff: cutoffs[1], TimeStamp: dayOf(21), Y: 10, Yhat: 10, YhatLower: 9, YhatUpper: 11},
			{Cutoff: cutoffs[1], TimeStamp: dayOf(22), Y: 10, Yhat: 9, YhatLower: 8, YhatUpper: 10},
		},
		Failures: []FoldFailure{{Cutoff: dayOf(30), Err: errors.New("fit failed")}},
		Elapsed:  time.Second,
	}
}

func TestNewReport(t *testing.T) {
	result := createResult()
	report := NewReport(result, nil)

	assert.Equal(t, result.RunID.String(), report.RunID)
	assert.Equal(t, 2, report.Folds)
	assert.Equal(t, 1, report.FailedFolds)
	assert.Equal(t, 1, report.NonConverged)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, dayOf(10), report.FirstCutoff)
	assert.Equal(t, dayOf(20), report.LastCutoff)
	// errors 1, 3, 0, 1
	assert.InDelta(t, math.Sqrt(11.0/4), report.RMSE, 1e-12)
	assert.InDelta(t, 5.0/4, report.MAE, 1e-12)
	assert.InDelta(t, 0.75, report.Coverage, 1e-12)
}

func TestNewReport_NoRows(t *testing.T) {
	report := NewReport(&Result{Horizon: days(1)}, nil)
	assert.Zero(t, report.Rows)
	assert.True(t, math.IsNaN(report.RMSE))
	assert.True(t, math.IsNaN(report.Coverage))
	assert.True(t, report.FirstCutoff.IsZero())
}

func TestReport_Print(t *testing.T) {
	result := createResult()
	windows, err := PerformanceMetrics(result.Rows, WithRollingWindow(0.5), WithMetrics(MetricMAE, MetricCoverage))
	require.NoError(t, err)
	require.Len(t, windows, 2)

	core, logs := observer.New(zapcore.InfoLevel)
	NewReport(result, windows).Print(zap.New(core))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "cross validation report", entries[0].Message)
	assert.Equal(t, int64(2), entries[0].ContextMap()["folds"])
	assert.Equal(t, "forecast accuracy", entries[1].Message)
	assert.Equal(t, 2, logs.FilterMessage("horizon window").Len())

	fields := entries[2].ContextMap()
	assert.Contains(t, fields, "mae")
	assert.Contains(t, fields, "coverage")
	assert.NotContains(t, fields, "rmse")
}
