package prophet

import (
	"testing"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "D", want: Daily},
		{in: "h", want: Hourly},
		{in: "W", want: Weekly},
		{in: "MS", want: MonthStart},
		{in: "QS", want: QuarterStart},
		{in: "YS", want: YearStart},
		{in: "300S", want: Every(5 * time.Minute)},
		{in: "90m", want: Every(90 * time.Minute)},
		{in: "0S", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "fortnight", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFrequency)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuture_FrequencyString(t *testing.T) {
	assert.Equal(t, "D", Daily.String())
	assert.Equal(t, "QS", QuarterStart.String())
	assert.Equal(t, "300S", Every(5*time.Minute).String())
	assert.True(t, Frequency{}.IsZero())
}

func TestFuture_MakeFutureIndex(t *testing.T) {
	history := []time.Time{
		testStart,
		testStart.AddDate(0, 0, 1),
		testStart.AddDate(0, 0, 1),
		testStart.AddDate(0, 0, 2).Add(6 * time.Hour),
	}
	f := &Fitted{historyDates: history}
	last := history[3]

	tests := []struct {
		name           string
		periods        int
		freq           Frequency
		includeHistory bool
		want           []time.Time
	}{
		{
			name:    "Daily",
			periods: 2,
			freq:    Daily,
			want:    []time.Time{last.AddDate(0, 0, 1), last.AddDate(0, 0, 2)},
		},
		{
			name:           "With history",
			periods:        1,
			freq:           Daily,
			includeHistory: true,
			want:           []time.Time{history[0], history[1], history[3], last.AddDate(0, 0, 1)},
		},
		{
			name:    "Month start",
			periods: 2,
			freq:    MonthStart,
			want: []time.Time{
				time.Date(2008, 2, 1, 6, 0, 0, 0, time.UTC),
				time.Date(2008, 3, 1, 6, 0, 0, 0, time.UTC),
			},
		},
		{
			name:    "Zero periods",
			periods: 0,
			freq:    Hourly,
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.MakeFutureIndex(tt.periods, tt.freq, tt.includeHistory)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.MakeFutureIndex(3, Frequency{}, false)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	_, err = f.MakeFutureIndex(-1, Daily, false)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFuture_MonthStartSkipsCurrentMonth(t *testing.T) {
	f := &Fitted{historyDates: []time.Time{time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)}}

	got, err := f.MakeFutureIndex(2, QuarterStart, false)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC),
	}, got)
}

func TestFuture_DetectFrequency(t *testing.T) {
	monthly := make([]time.Time, 24)
	for i := range monthly {
		monthly[i] = time.Date(2015, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC)
	}
	hourly := make([]time.Time, 48)
	for i := range hourly {
		hourly[i] = testStart.Add(time.Duration(i) * time.Hour)
	}
	irregular := dailyDates(30)
	irregular = append(irregular[:10], irregular[12:]...)

	tests := []struct {
		name    string
		dates   []time.Time
		want    Frequency
		wantErr bool
	}{
		{name: "Daily", dates: dailyDates(30), want: Daily},
		{name: "Daily with gaps", dates: irregular, want: Daily},
		{name: "Hourly", dates: hourly, want: Hourly},
		{name: "Monthly", dates: monthly, want: MonthStart},
		{name: "Too short", dates: dailyDates(5), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := make([]common.Observation, len(tt.dates))
			for i, ts := range tt.dates {
				series[i] = common.Observation{TimeStamp: ts, Value: 1}
			}
			got, err := DetectFrequency(series)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFrequency)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
