package prophet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

// Frequency is the spacing of a generated index: a fixed duration or a
// number of calendar months anchored at the start of a month.
type Frequency struct {
	step   time.Duration
	months int
}

var (
	Hourly       = Frequency{step: time.Hour}
	Daily        = Frequency{step: 24 * time.Hour}
	Weekly       = Frequency{step: 7 * 24 * time.Hour}
	MonthStart   = Frequency{months: 1}
	QuarterStart = Frequency{months: 3}
	YearStart    = Frequency{months: 12}
)

// Every is a fixed step frequency.
func Every(step time.Duration) Frequency {
	return Frequency{step: step}
}

func (f Frequency) IsZero() bool {
	return f.step <= 0 && f.months <= 0
}

func (f Frequency) String() string {
	switch {
	case f == Hourly:
		return "H"
	case f == Daily:
		return "D"
	case f == Weekly:
		return "W"
	case f == MonthStart:
		return "MS"
	case f == QuarterStart:
		return "QS"
	case f == YearStart:
		return "YS"
	case f.months > 0:
		return fmt.Sprintf("%dMS", f.months)
	default:
		return fmt.Sprintf("%dS", int64(f.step/time.Second))
	}
}

// ParseFrequency accepts H, D, W, MS, QS, YS, a count of seconds such as
// 300S, or a Go duration.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(s) {
	case "H":
		return Hourly, nil
	case "D":
		return Daily, nil
	case "W":
		return Weekly, nil
	case "MS":
		return MonthStart, nil
	case "QS":
		return QuarterStart, nil
	case "YS":
		return YearStart, nil
	}
	if strings.HasSuffix(s, "S") {
		if secs, err := strconv.ParseInt(strings.TrimSuffix(s, "S"), 10, 64); err == nil && secs > 0 {
			return Every(time.Duration(secs) * time.Second), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return Every(d), nil
	}
	return Frequency{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// next returns the i-th timestamp after last.
func (f Frequency) next(last time.Time, i int) time.Time {
	if f.months > 0 {
		start := time.Date(last.Year(), last.Month(), 1, last.Hour(), last.Minute(), last.Second(), last.Nanosecond(), last.Location())
		return start.AddDate(0, f.months*i, 0)
	}
	return last.Add(time.Duration(i) * f.step)
}

// MakeFutureIndex continues the training index by periods steps of freq,
// optionally preceded by the training dates.
func (f *Fitted) MakeFutureIndex(periods int, freq Frequency, includeHistory bool) ([]time.Time, error) {
	if freq.IsZero() {
		return nil, fmt.Errorf("%w: empty frequency", ErrInvalidFrequency)
	}
	if periods < 0 {
		return nil, fmt.Errorf("%w: negative periods", ErrInvalidConfig)
	}
	last := f.LastHistoryDate()

	var dates []time.Time
	if includeHistory {
		seen := make(map[int64]struct{}, len(f.historyDates))
		for _, ts := range f.historyDates {
			if _, ok := seen[ts.UnixNano()]; ok {
				continue
			}
			seen[ts.UnixNano()] = struct{}{}
			dates = append(dates, ts)
		}
	}
	for i, added := 1, 0; added < periods; i++ {
		ts := freq.next(last, i)
		if !ts.After(last) {
			continue
		}
		dates = append(dates, ts)
		added++
	}
	return dates, nil
}

// DetectFrequency infers a regular spacing from a series: the most common
// positive gap, mapped to a calendar frequency where it matches one.
func DetectFrequency(series []common.Observation) (Frequency, error) {
	sorted := common.SortedCopy(series)
	if len(sorted) < 10 {
		return Frequency{}, fmt.Errorf("%w: need at least 10 observations to infer a frequency", ErrInvalidFrequency)
	}

	counts := make(map[time.Duration]int)
	for i := 1; i < len(sorted); i++ {
		if gap := sorted[i].TimeStamp.Sub(sorted[i-1].TimeStamp); gap > 0 {
			counts[gap]++
		}
	}
	if len(counts) == 0 {
		return Frequency{}, fmt.Errorf("%w: no positive spacing", ErrInvalidFrequency)
	}
	gaps := make([]time.Duration, 0, len(counts))
	for gap := range counts {
		gaps = append(gaps, gap)
	}
	sort.Slice(gaps, func(i, j int) bool {
		if counts[gaps[i]] != counts[gaps[j]] {
			return counts[gaps[i]] > counts[gaps[j]]
		}
		return gaps[i] < gaps[j]
	})
	gap := gaps[0]

	day := 24 * time.Hour
	switch {
	case gap >= 28*day && gap <= 31*day && monthAligned(sorted):
		return MonthStart, nil
	case gap >= 89*day && gap <= 92*day && monthAligned(sorted):
		return QuarterStart, nil
	case gap >= 365*day && gap <= 366*day && monthAligned(sorted):
		return YearStart, nil
	}
	return Every(gap), nil
}

func monthAligned(sorted []common.Observation) bool {
	for _, o := range sorted {
		if o.TimeStamp.Day() != 1 {
			return false
		}
	}
	return true
}
