package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/decimal"
	"github.com/peter-kozarec/augur/pkg/common"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidRow    = errors.New("invalid row")
)

const (
	capColumn   = "cap"
	floorColumn = "floor"

	// decimal.Decimal holds at most 19 significant digits
	maxDecimalDigits = 19
)

var defaultLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

type Option func(*config)

type config struct {
	timeColumn  string
	valueColumn string
	layouts     []string
	location    *time.Location
	conditions  map[string]struct{}
	comma       rune
}

func WithTimeColumn(name string) Option {
	return func(c *config) {
		c.timeColumn = name
	}
}

func WithValueColumn(name string) Option {
	return func(c *config) {
		c.valueColumn = name
	}
}

// WithTimeLayout replaces the accepted timestamp layouts.
func WithTimeLayout(layouts ...string) Option {
	return func(c *config) {
		c.layouts = layouts
	}
}

// WithLocation sets the zone of timestamps that carry no offset.
func WithLocation(location *time.Location) Option {
	return func(c *config) {
		c.location = location
	}
}

// WithConditionColumns marks boolean columns used by conditional
// seasonalities. Every other extra column is read as a regressor.
func WithConditionColumns(names ...string) Option {
	return func(c *config) {
		for _, name := range names {
			c.conditions[name] = struct{}{}
		}
	}
}

func WithComma(comma rune) Option {
	return func(c *config) {
		c.comma = comma
	}
}

// ReadFile loads a series from a CSV file with a header row.
func ReadFile(path string, options ...Option) ([]common.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Read(f, options...)
}

// Read parses a CSV series. The time and value columns are required; cap and
// floor are recognised by name and any other column becomes a regressor or a
// condition. An empty, NA or NaN value marks a missing observation.
func Read(r io.Reader, options ...Option) ([]common.Observation, error) {
	cfg := config{
		timeColumn:  "ds",
		valueColumn: "y",
		layouts:     defaultLayouts,
		location:    time.UTC,
		conditions:  map[string]struct{}{},
		comma:       ',',
	}
	for _, option := range options {
		option(&cfg)
	}

	cr := csv.NewReader(r)
	cr.Comma = cfg.comma
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	timeIndex, valueIndex := -1, -1
	for i, name := range columns {
		switch name {
		case cfg.timeColumn:
			timeIndex = i
		case cfg.valueColumn:
			valueIndex = i
		}
	}
	if timeIndex < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cfg.timeColumn)
	}
	if valueIndex < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cfg.valueColumn)
	}

	var series []common.Observation
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, line, err)
		}

		var o common.Observation
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			name := columns[i]

			switch {
			case i == timeIndex:
				o.TimeStamp, err = parseTime(cell, cfg.layouts, cfg.location)
			case i == valueIndex:
				o.Value, err = parseValue(cell, true)
			case name == capColumn:
				o.Cap, err = parseValue(cell, false)
			case name == floorColumn:
				o.Floor, err = parseValue(cell, false)
			default:
				if _, ok := cfg.conditions[name]; ok {
					var b bool
					b, err = strconv.ParseBool(cell)
					if o.Conditions == nil {
						o.Conditions = make(map[string]bool)
					}
					o.Conditions[name] = b
					break
				}
				var v float64
				v, err = parseValue(cell, true)
				if o.Regressors == nil {
					o.Regressors = make(map[string]float64)
				}
				o.Regressors[name] = v
			}
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %w", ErrInvalidRow, line, name, err)
			}
		}
		series = append(series, o)
	}
	return series, nil
}

func parseTime(cell string, layouts []string, location *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		ts, err := time.ParseInLocation(layout, cell, location)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", cell)
}

// parseValue reads a number without losing precision. Values that fit a
// decimal are parsed exactly and rounded once to the nearest float64.
func parseValue(cell string, allowMissing bool) (float64, error) {
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null":
		if allowMissing {
			return math.NaN(), nil
		}
		if cell == "" {
			return 0, nil
		}
		return 0, fmt.Errorf("missing value")
	}

	if significantDigits(cell) <= maxDecimalDigits {
		if d, err := decimal.Parse(cell); err == nil {
			if f, ok := d.Float64(); ok {
				return f, nil
			}
		}
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", cell)
	}
	return f, nil
}

func significantDigits(s string) int {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	n := 0
	leading := true
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		if leading && r == '0' {
			continue
		}
		leading = false
		n++
	}
	return n
}
