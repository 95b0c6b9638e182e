package prophet

import (
	"context"
	"testing"

	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	linear := createDailySeries(120, 1)
	for i := range linear {
		linear[i].Regressors = map[string]float64{"temp": float64(i%10) * 1.5}
	}

	tests := []struct {
		name    string
		options []Option
		series  []common.Observation
		rows    func(last common.Observation) []common.Observation
	}{
		{
			name: "Linear with regressor and holiday",
			options: []Option{
				WithRegressor(Regressor{Name: "temp", Standardize: true}),
				WithHolidays(Holiday{Name: "sale", Date: testStart.AddDate(0, 1, 0), LowerWindow: -1}),
				WithSeed(42),
			},
			series: linear,
			rows: func(last common.Observation) []common.Observation {
				rows := futureRows(last.TimeStamp, 20)
				for i := range rows {
					rows[i].Regressors = map[string]float64{"temp": 4}
				}
				return rows
			},
		},
		{
			name:    "Logistic",
			options: []Option{WithGrowth(GrowthLogistic), WithoutWeeklySeasonality()},
			series:  createLogisticSeries(150, 8, 2),
			rows: func(last common.Observation) []common.Observation {
				rows := futureRows(last.TimeStamp, 20)
				for i := range rows {
					rows[i].Cap = 8
				}
				return rows
			},
		},
		{
			name:    "Flat with explicit changepoints",
			options: []Option{WithGrowth(GrowthFlat), WithSeasonalityMode(ModeMultiplicative)},
			series:  createDailySeries(60, 3),
			rows: func(last common.Observation) []common.Observation {
				return futureRows(last.TimeStamp, 20)
			},
		},
		{
			name:    "Linear with explicit changepoints",
			options: []Option{WithChangepoints(testStart.AddDate(0, 0, 20), testStart.AddDate(0, 0, 40))},
			series:  createKinkedSeries(60, 30, 3),
			rows: func(last common.Observation) []common.Observation {
				return futureRows(last.TimeStamp, 20)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fitted, err := mustModel(t, tt.options...).Fit(context.Background(), tt.series)
			require.NoError(t, err)
			rows := tt.rows(tt.series[len(tt.series)-1])

			want, err := fitted.Predict(context.Background(), rows)
			require.NoError(t, err)

			binary, err := fitted.MarshalBinary()
			require.NoError(t, err)
			fromBinary, err := DecodeBinary(binary)
			require.NoError(t, err)

			data, err := fitted.MarshalJSON()
			require.NoError(t, err)
			fromJSON, err := DecodeJSON(data)
			require.NoError(t, err)

			for _, decoded := range []*Fitted{fromBinary, fromJSON} {
				assert.Equal(t, fitted.ID(), decoded.ID())
				assert.Equal(t, fitted.Seed(), decoded.Seed())
				assert.Equal(t, fitted.Params(), decoded.Params())
				assert.Equal(t, fitted.Changepoints(), decoded.Changepoints())
				assert.Equal(t, fitted.FeatureNames(), decoded.FeatureNames())
				assert.Equal(t, fitted.RegressorScales(), decoded.RegressorScales())
				assert.Equal(t, fitted.Diagnostics().Converged, decoded.Diagnostics().Converged)

				got, err := decoded.Predict(context.Background(), rows)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestCodec_Corrupt(t *testing.T) {
	tests := []struct {
		name   string
		decode func() (*Fitted, error)
	}{
		{name: "Binary garbage", decode: func() (*Fitted, error) { return DecodeBinary([]byte("garbage")) }},
		{name: "JSON garbage", decode: func() (*Fitted, error) { return DecodeJSON([]byte("{")) }},
		{name: "Unknown version", decode: func() (*Fitted, error) { return DecodeJSON([]byte(`{"version": 9}`)) }},
		{name: "Bad id", decode: func() (*Fitted, error) { return DecodeJSON([]byte(`{"version": 1, "id": "x"}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decode()
			assert.ErrorIs(t, err, ErrCorruptModel)
		})
	}
}

func TestCodec_CoefficientMismatch(t *testing.T) {
	fitted, err := mustModel(t).Fit(context.Background(), createDailySeries(60, 1))
	require.NoError(t, err)

	broken := *fitted
	broken.params = fitted.Params()
	broken.params.Beta = broken.params.Beta[1:]

	data, err := broken.MarshalBinary()
	require.NoError(t, err)
	_, err = DecodeBinary(data)
	assert.ErrorIs(t, err, ErrCorruptModel)
}
