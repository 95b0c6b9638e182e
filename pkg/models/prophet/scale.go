package prophet

import (
	"fmt"
	"math"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

// Normalizer maps timestamps onto the training time scale, where the first
// training timestamp is 0 and the last is 1. Values are divided by YScale
// after the floor is removed.
type Normalizer struct {
	Start  time.Time
	TScale float64 // seconds
	YScale float64
	// LogisticFloor is set when the series carries a floor, which is then
	// subtracted before scaling.
	LogisticFloor bool
}

// NewNormalizer derives the scales from a sorted history without missing
// values.
func NewNormalizer(history []common.Observation, logisticFloor bool) (Normalizer, error) {
	if common.DistinctTimeStamps(history) < 2 {
		return Normalizer{}, fmt.Errorf("%w: fewer than 2 distinct timestamps", ErrInvalidTimeRange)
	}
	first, last := common.Span(history)

	var yScale float64
	for _, o := range history {
		floor := 0.0
		if logisticFloor {
			floor = o.Floor
		}
		yScale = math.Max(yScale, math.Abs(o.Value-floor))
	}
	if yScale == 0 {
		yScale = 1
	}

	return Normalizer{
		Start:         first,
		TScale:        last.Sub(first).Seconds(),
		YScale:        yScale,
		LogisticFloor: logisticFloor,
	}, nil
}

func (n Normalizer) Time(ts time.Time) float64 {
	return ts.Sub(n.Start).Seconds() / n.TScale
}

func (n Normalizer) Times(series []common.Observation) []float64 {
	t := make([]float64, len(series))
	for i, o := range series {
		t[i] = n.Time(o.TimeStamp)
	}
	return t
}

// TimeStamp inverts Time.
func (n Normalizer) TimeStamp(t float64) time.Time {
	return n.Start.Add(time.Duration(math.Round(t * n.TScale * float64(time.Second))))
}

func (n Normalizer) floor(o common.Observation) float64 {
	if n.LogisticFloor {
		return o.Floor
	}
	return 0
}

func (n Normalizer) Value(o common.Observation) float64 {
	return (o.Value - n.floor(o)) / n.YScale
}

func (n Normalizer) Cap(o common.Observation) float64 {
	return (o.Cap - n.floor(o)) / n.YScale
}
