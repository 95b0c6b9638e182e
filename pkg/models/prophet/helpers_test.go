package prophet

import (
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

var testStart = time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)

// createDailySeries builds a noisy daily series with a linear trend, weekly
// and yearly cycles.
func createDailySeries(days int, seed int64) []common.Observation {
	rng := rand.New(rand.NewSource(seed))
	series := make([]common.Observation, days)
	for i := range series {
		d := float64(i)
		y := 10 + 0.002*d +
			0.5*math.Sin(2*math.Pi*d/7) +
			1.0*math.Sin(2*math.Pi*d/365.25) +
			0.1*rng.NormFloat64()
		series[i] = common.Observation{
			TimeStamp: testStart.AddDate(0, 0, i),
			Value:     y,
		}
	}
	return series
}

// createLinearSeries builds a noiseless line y = intercept + slope*day.
func createLinearSeries(days int, intercept, slope float64) []common.Observation {
	series := make([]common.Observation, days)
	for i := range series {
		series[i] = common.Observation{
			TimeStamp: testStart.AddDate(0, 0, i),
			Value:     intercept + slope*float64(i),
		}
	}
	return series
}

// createKinkedSeries changes slope at the given day.
func createKinkedSeries(days, kink int, seed int64) []common.Observation {
	rng := rand.New(rand.NewSource(seed))
	series := make([]common.Observation, days)
	for i := range series {
		d := float64(i)
		y := 5 + 0.05*d
		if i > kink {
			y = 5 + 0.05*float64(kink) - 0.08*(d-float64(kink))
		}
		series[i] = common.Observation{
			TimeStamp: testStart.AddDate(0, 0, i),
			Value:     y + 0.05*rng.NormFloat64(),
		}
	}
	return series
}

// createLogisticSeries saturates towards capacity.
func createLogisticSeries(days int, capacity float64, seed int64) []common.Observation {
	rng := rand.New(rand.NewSource(seed))
	series := make([]common.Observation, days)
	for i := range series {
		d := float64(i)
		y := capacity/(1+math.Exp(-0.02*(d-float64(days)/3))) + 0.05*rng.NormFloat64()
		series[i] = common.Observation{
			TimeStamp: testStart.AddDate(0, 0, i),
			Value:     math.Min(y, capacity),
			Cap:       capacity,
		}
	}
	return series
}

func futureRows(after time.Time, days int) []common.Observation {
	rows := make([]common.Observation, days)
	for i := range rows {
		rows[i] = common.Observation{TimeStamp: after.AddDate(0, 0, i+1), Value: math.NaN()}
	}
	return rows
}

func dailyDates(days int) []time.Time {
	out := make([]time.Time, days)
	for i := range out {
		out[i] = testStart.AddDate(0, 0, i)
	}
	return out
}

func seriesOf(dates []time.Time, values []float64) []common.Observation {
	return common.NewSeries(dates, values)
}

func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
