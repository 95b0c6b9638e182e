package main

import (
	"testing"
	"time"

	"github.com/peter-kozarec/augur/pkg/models/prophet"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "730d", want: 730 * day},
		{in: "1.5d", want: 36 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "d", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDates(t *testing.T) {
	dates, err := parseDates([]string{"2013-02-15", "2013-08-15 12:00:00", "2014-02-15T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2013, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2013, 8, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2014, 2, 15, 0, 0, 0, 0, time.UTC),
	}, dates)

	_, err = parseDates([]string{"15/02/2013"})
	assert.Error(t, err)
}

func TestParseHoliday(t *testing.T) {
	h, err := parseHoliday("xmas:2020-12-25:-1:2")
	require.NoError(t, err)
	assert.Equal(t, prophet.Holiday{Name: "xmas", Date: time.Date(2020, 12, 25, 0, 0, 0, 0, time.UTC), LowerWindow: -1, UpperWindow: 2}, h)

	h, err = parseHoliday("launch:2021-03-01")
	require.NoError(t, err)
	assert.Equal(t, "launch", h.Name)
	assert.Zero(t, h.UpperWindow)

	for _, bad := range []string{"xmas", "xmas:2020-12-25:-1", "xmas:tomorrow", "xmas:2020-12-25:a:b"} {
		_, err := parseHoliday(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFrequencyFlag(t *testing.T) {
	freq, err := parseFrequencyFlag("")
	require.NoError(t, err)
	assert.True(t, freq.IsZero())

	freq, err = parseFrequencyFlag("D")
	require.NoError(t, err)
	assert.Equal(t, prophet.Daily, freq)

	freq, err = parseFrequencyFlag("2d")
	require.NoError(t, err)
	assert.Equal(t, prophet.Every(48*time.Hour), freq)

	_, err = parseFrequencyFlag("fortnightly")
	assert.Error(t, err)
}

func TestModelFlags_Bind(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var flags modelFlags
	flags.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--growth", "logistic",
		"--seasonality-mode", "multiplicative",
		"--yearly", "0",
		"--weekly", "5",
		"--changepoint", "2020-06-01",
		"--holiday", "xmas:2020-12-25",
		"--regressor", "temp",
		"--fit-timeout", "30s",
	}))

	assert.Equal(t, "logistic", flags.growth)
	assert.Equal(t, 0, flags.yearly)
	assert.Equal(t, -1, flags.daily)
	assert.Equal(t, []string{"temp"}, flags.regressors)

	options, err := flags.options(zap.NewNop(), nil)
	require.NoError(t, err)
	m, err := prophet.New(options...)
	require.NoError(t, err)
	assert.Equal(t, prophet.GrowthLogistic, m.Growth())
	assert.Equal(t, prophet.ModeMultiplicative, m.SeasonalityMode())
	require.Len(t, m.Regressors(), 1)
	assert.Equal(t, prophet.ModeMultiplicative, m.Regressors()[0].Mode)
	require.Len(t, m.Holidays(), 1)
}

func TestModelFlags_OptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *modelFlags)
	}{
		{name: "Bad growth", mutate: func(f *modelFlags) { f.growth = "exponential" }},
		{name: "Bad mode", mutate: func(f *modelFlags) { f.seasonalityMode = "mixed" }},
		{name: "Bad changepoint", mutate: func(f *modelFlags) { f.changepoints = []string{"later"} }},
		{name: "Bad holiday", mutate: func(f *modelFlags) { f.holidays = []string{"xmas"} }},
		{name: "Bad timeout", mutate: func(f *modelFlags) { f.fitTimeout = "long" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := modelFlags{growth: "linear", seasonalityMode: "additive", yearly: -1, weekly: -1, daily: -1}
			tt.mutate(&f)
			_, err := f.options(zap.NewNop(), nil)
			assert.Error(t, err)
		})
	}
}

func TestToggle(t *testing.T) {
	assert.Nil(t, toggle(-1, prophet.WithYearlySeasonality, prophet.WithoutYearlySeasonality))
	assert.Len(t, toggle(0, prophet.WithYearlySeasonality, prophet.WithoutYearlySeasonality), 1)
	assert.Len(t, toggle(8, prophet.WithYearlySeasonality, prophet.WithoutYearlySeasonality), 1)
}
