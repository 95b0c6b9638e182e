package diagnostics

import (
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

var testStart = time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)

func days(n int) time.Duration {
	return time.Duration(n) * day
}

// createDailySeries builds a noisy daily series with a linear trend, weekly
// and yearly cycles.
func createDailySeries(n int, seed int64) []common.Observation {
	rng := rand.New(rand.NewSource(seed))
	series := make([]common.Observation, n)
	for i := range series {
		d := float64(i)
		series[i] = common.Observation{
			TimeStamp: testStart.AddDate(0, 0, i),
			Value: 20 + 0.003*d +
				0.8*math.Sin(2*math.Pi*d/7) +
				2*math.Sin(2*math.Pi*d/365.25) +
				0.2*rng.NormFloat64(),
		}
	}
	return series
}

func dayOf(i int) time.Time {
	return testStart.AddDate(0, 0, i)
}
