package diagnostics

import (
	"fmt"
	"sort"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

// GenerateCutoffs builds the cutoff schedule for a series. With AnchorInitial
// the first cutoff is min(ds)+initial and cutoffs advance by period while they
// leave a full horizon of data. With AnchorLatest the schedule is built
// backwards from max(ds)-horizon. Cutoffs are returned in ascending order.
func GenerateCutoffs(series []common.Observation, horizon, period, initial time.Duration, anchor Anchor) ([]time.Time, error) {
	if horizon <= 0 || period <= 0 || initial < 0 {
		return nil, fmt.Errorf("%w: horizon %s, period %s and initial %s must be positive", ErrInvalidCutoffs, horizon, period, initial)
	}
	history := common.SortedCopy(common.Present(series))
	if common.DistinctTimeStamps(history) < 2 {
		return nil, fmt.Errorf("%w: fewer than 2 distinct timestamps", ErrInsufficientHistory)
	}
	first, last := common.Span(history)

	var cutoffs []time.Time
	switch anchor {
	case AnchorLatest:
		cutoffs = latestCutoffs(history, first, last, horizon, period, initial)
	default:
		end := last.Add(-horizon)
		for c := first.Add(initial); !c.After(end); c = c.Add(period) {
			cutoffs = append(cutoffs, c)
		}
	}
	if len(cutoffs) == 0 {
		return nil, fmt.Errorf("%w: less data than horizon %s after initial window %s", ErrInsufficientHistory, horizon, initial)
	}
	if err := checkFirstWindow(history, cutoffs[0]); err != nil {
		return nil, err
	}
	return cutoffs, nil
}

func latestCutoffs(history []common.Observation, first, last time.Time, horizon, period, initial time.Duration) []time.Time {
	cutoff := last.Add(-horizon)
	if cutoff.Before(first) {
		return nil
	}
	result := []time.Time{cutoff}
	for !result[len(result)-1].Before(first.Add(initial)) {
		cutoff = cutoff.Add(-period)
		if !hasObservationIn(history, cutoff, cutoff.Add(horizon)) && cutoff.After(first) {
			// jump back to the last observation at or before the cutoff
			i := sort.Search(len(history), func(i int) bool { return history[i].TimeStamp.After(cutoff) })
			cutoff = history[i-1].TimeStamp.Add(-horizon)
		}
		result = append(result, cutoff)
	}
	result = result[:len(result)-1]

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// hasObservationIn reports whether a sorted history has a row in (from, to].
func hasObservationIn(history []common.Observation, from, to time.Time) bool {
	i := sort.Search(len(history), func(i int) bool { return history[i].TimeStamp.After(from) })
	return i < len(history) && !history[i].TimeStamp.After(to)
}

// validateCutoffs checks an explicit schedule against the series.
func validateCutoffs(history []common.Observation, cutoffs []time.Time, horizon time.Duration, cfg config) error {
	if len(cutoffs) == 0 {
		return fmt.Errorf("%w: empty cutoff list", ErrInvalidCutoffs)
	}
	if horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive", ErrInvalidCutoffs)
	}
	first, last := common.Span(history)
	end := last.Add(-horizon)

	seen := make(map[int64]struct{}, len(cutoffs))
	earliest := cutoffs[0]
	for _, c := range cutoffs {
		if !c.After(first) {
			return fmt.Errorf("%w: cutoff %s is not after the first observation %s", ErrInvalidCutoffs, c.Format(time.RFC3339), first.Format(time.RFC3339))
		}
		if c.After(end) {
			return fmt.Errorf("%w: cutoff %s leaves less than %s of data", ErrInvalidCutoffs, c.Format(time.RFC3339), horizon)
		}
		if cfg.initialSet && c.Before(first.Add(cfg.initial)) {
			return fmt.Errorf("%w: cutoff %s falls inside the initial window %s", ErrInvalidCutoffs, c.Format(time.RFC3339), cfg.initial)
		}
		if _, dup := seen[c.UnixNano()]; dup {
			return fmt.Errorf("%w: duplicate cutoff %s", ErrInvalidCutoffs, c.Format(time.RFC3339))
		}
		seen[c.UnixNano()] = struct{}{}
		if c.Before(earliest) {
			earliest = c
		}
	}
	return checkFirstWindow(history, earliest)
}

func checkFirstWindow(history []common.Observation, cutoff time.Time) error {
	i := sort.Search(len(history), func(i int) bool { return history[i].TimeStamp.After(cutoff) })
	if common.DistinctTimeStamps(history[:i]) < 2 {
		return fmt.Errorf("%w: fewer than 2 distinct timestamps before cutoff %s", ErrInsufficientHistory, cutoff.Format(time.RFC3339))
	}
	return nil
}
