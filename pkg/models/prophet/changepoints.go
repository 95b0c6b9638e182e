package prophet

import (
	"fmt"
	"math"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"go.uber.org/zap"
)

// placeChangepoints returns the changepoint timestamps for a sorted history.
// Explicit changepoints must lie inside the history span.
func (m *Model) placeChangepoints(history []common.Observation) ([]time.Time, error) {
	first, last := common.Span(history)

	if m.specifiedChangepoints {
		for _, cp := range m.changepoints {
			if cp.Before(first) || cp.After(last) {
				return nil, fmt.Errorf("%w: %s outside history [%s, %s]", ErrInvalidChangepoints,
					cp.Format(time.RFC3339), first.Format(time.RFC3339), last.Format(time.RFC3339))
			}
		}
		return append([]time.Time(nil), m.changepoints...), nil
	}

	if m.growth == GrowthFlat {
		return nil, nil
	}

	histSize := int(math.Floor(float64(len(history)) * m.changepointRange))
	n := m.nChangepoints
	if n+1 > histSize {
		n = max(histSize-1, 0)
		if n != m.nChangepoints {
			m.logger.Info("reducing changepoints",
				zap.Int("requested", m.nChangepoints),
				zap.Int("used", n))
		}
	}
	if n == 0 {
		return nil, nil
	}

	var candidates []time.Time
	switch m.placement {
	case PlacementUniform:
		end := history[histSize-1].TimeStamp
		span := end.Sub(first)
		for i := 1; i <= n; i++ {
			candidates = append(candidates, first.Add(time.Duration(float64(span)*float64(i)/float64(n))))
		}
	default:
		step := float64(histSize-1) / float64(n)
		for i := 1; i <= n; i++ {
			idx := int(math.RoundToEven(float64(i) * step))
			candidates = append(candidates, history[idx].TimeStamp)
		}
	}
	return dedupeSorted(candidates), nil
}

func dedupeSorted(ts []time.Time) []time.Time {
	out := ts[:0]
	for i, t := range ts {
		if i > 0 && !t.After(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}
