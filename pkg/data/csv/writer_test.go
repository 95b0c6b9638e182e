package csv

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteForecasts(t *testing.T) {
	ts := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []common.Forecast{
		{TimeStamp: ts, Yhat: 1.5, YhatLower: 1, YhatUpper: 2, Trend: 1.25, TrendLower: 1.25, TrendUpper: 1.25,
			Components: map[string]float64{"weekly": 0.25, "additive_terms": 0.25}},
		{TimeStamp: ts.AddDate(0, 0, 1), Yhat: 2, YhatLower: 1.5, YhatUpper: 2.5, Trend: 2,
			Components: map[string]float64{"weekly": 0}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteForecasts(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ds", "yhat", "yhat_lower", "yhat_upper", "trend", "trend_lower", "trend_upper", "additive_terms", "weekly"}, records[0])
	assert.Equal(t, []string{"2021-03-01T00:00:00Z", "1.5", "1", "2", "1.25", "1.25", "1.25", "0.25", "0.25"}, records[1])
	assert.Equal(t, "", records[2][7])
	assert.Equal(t, "0", records[2][8])
}

func TestWriteForecasts_Cap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteForecasts(&buf, []common.Forecast{{TimeStamp: time.Unix(0, 0).UTC(), Cap: 10}}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "cap", records[0][7])
	assert.Equal(t, "10", records[1][7])
}
