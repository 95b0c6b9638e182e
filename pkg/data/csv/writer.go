package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

var forecastColumns = []string{"ds", "yhat", "yhat_lower", "yhat_upper", "trend", "trend_lower", "trend_upper"}

// WriteForecasts writes forecast rows with one column per component. Floats
// are written in their shortest round-tripping form.
func WriteForecasts(w io.Writer, rows []common.Forecast) error {
	hasCap := false
	seen := make(map[string]struct{})
	for _, row := range rows {
		if row.Cap != 0 {
			hasCap = true
		}
		for name := range row.Components {
			seen[name] = struct{}{}
		}
	}
	components := make([]string, 0, len(seen))
	for name := range seen {
		components = append(components, name)
	}
	sort.Strings(components)

	header := append([]string(nil), forecastColumns...)
	if hasCap {
		header = append(header, capColumn)
	}
	header = append(header, components...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		record = record[:0]
		record = append(record,
			row.TimeStamp.Format(time.RFC3339Nano),
			formatFloat(row.Yhat),
			formatFloat(row.YhatLower),
			formatFloat(row.YhatUpper),
			formatFloat(row.Trend),
			formatFloat(row.TrendLower),
			formatFloat(row.TrendUpper),
		)
		if hasCap {
			record = append(record, formatFloat(row.Cap))
		}
		for _, name := range components {
			if v, ok := row.Component(name); ok {
				record = append(record, formatFloat(v))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("unable to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeries writes observations in the layout Read accepts.
func WriteSeries(w io.Writer, series []common.Observation) error {
	seen := make(map[string]struct{})
	for _, o := range series {
		for name := range o.Regressors {
			seen[name] = struct{}{}
		}
	}
	regressors := make([]string, 0, len(seen))
	for name := range seen {
		regressors = append(regressors, name)
	}
	sort.Strings(regressors)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"ds", "y", capColumn, floorColumn}, regressors...)); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}
	for _, o := range series {
		record := []string{
			o.TimeStamp.Format(time.RFC3339Nano),
			formatFloat(o.Value),
			formatFloat(o.Cap),
			formatFloat(o.Floor),
		}
		for _, name := range regressors {
			if v, ok := o.Regressors[name]; ok {
				record = append(record, formatFloat(v))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("unable to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
