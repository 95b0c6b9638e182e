package common

import (
	"math"
	"sort"
	"time"
)

// Observation is one row of an input series. A NaN Value marks a missing
// observation. Cap is only read for logistic growth; zero means unset.
type Observation struct {
	TimeStamp  time.Time          `json:"ds"`
	Value      float64            `json:"y"`
	Cap        float64            `json:"cap,omitempty"`
	Floor      float64            `json:"floor,omitempty"`
	Regressors map[string]float64 `json:"regressors,omitempty"`
	Conditions map[string]bool    `json:"conditions,omitempty"`
}

func (o Observation) IsMissing() bool {
	return math.IsNaN(o.Value)
}

func (o Observation) HasCap() bool {
	return o.Cap != 0
}

// NewSeries zips timestamps and values into observations.
func NewSeries(timeStamps []time.Time, values []float64) []Observation {
	n := min(len(timeStamps), len(values))
	series := make([]Observation, n)
	for i := 0; i < n; i++ {
		series[i] = Observation{TimeStamp: timeStamps[i], Value: values[i]}
	}
	return series
}

// SortedCopy returns the series ordered by timestamp. Rows sharing a
// timestamp keep their relative order.
func SortedCopy(series []Observation) []Observation {
	sorted := make([]Observation, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeStamp.Before(sorted[j].TimeStamp)
	})
	return sorted
}

// Present drops the rows with a missing value.
func Present(series []Observation) []Observation {
	out := make([]Observation, 0, len(series))
	for _, o := range series {
		if !o.IsMissing() {
			out = append(out, o)
		}
	}
	return out
}

// Span returns the first and last timestamp of the series.
func Span(series []Observation) (first, last time.Time) {
	for i, o := range series {
		if i == 0 || o.TimeStamp.Before(first) {
			first = o.TimeStamp
		}
		if i == 0 || o.TimeStamp.After(last) {
			last = o.TimeStamp
		}
	}
	return first, last
}

// DistinctTimeStamps counts unique timestamps.
func DistinctTimeStamps(series []Observation) int {
	seen := make(map[int64]struct{}, len(series))
	for _, o := range series {
		seen[o.TimeStamp.UnixNano()] = struct{}{}
	}
	return len(seen)
}
