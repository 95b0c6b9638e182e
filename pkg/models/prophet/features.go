package prophet

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const featureDelimiter = "_delim_"

const (
	componentHolidays            = "holidays"
	componentAdditiveTerms       = "additive_terms"
	componentMultiplicativeTerms = "multiplicative_terms"
	componentRegressorsAdditive  = "extra_regressors_additive"
	componentRegressorsMultiple  = "extra_regressors_multiplicative"
)

type featureKind int

const (
	featureSeasonality featureKind = iota
	featureHoliday
	featureRegressor
)

// feature is one column of the design matrix, tagged with the component it
// belongs to and how that component composes with the trend.
type feature struct {
	Name       string
	Component  string
	Kind       featureKind
	Mode       Mode
	PriorScale float64
}

// RegressorScale holds the standardisation applied to a regressor column.
type RegressorScale struct {
	Mu  float64
	Std float64
}

type designMatrix struct {
	features []feature
	rows     int
	x        *mat.Dense // nil when there are no features
}

func (d *designMatrix) cols() int {
	return len(d.features)
}

// product returns X * (beta o mask) for the columns selected by mode.
func (d *designMatrix) product(beta []float64, mode Mode) []float64 {
	out := make([]float64, d.rows)
	if d.x == nil {
		return out
	}
	masked := make([]float64, len(beta))
	for j, f := range d.features {
		if f.Mode == mode {
			masked[j] = beta[j]
		}
	}
	var v mat.VecDense
	v.MulVec(d.x, mat.NewVecDense(len(masked), masked))
	copy(out, v.RawVector().Data)
	return out
}

// transposeProduct returns X^T * w.
func (d *designMatrix) transposeProduct(w []float64) []float64 {
	if d.x == nil {
		return nil
	}
	var v mat.VecDense
	v.MulVec(d.x.T(), mat.NewVecDense(len(w), w))
	return append([]float64(nil), v.RawVector().Data...)
}

func (d *designMatrix) at(i, j int) float64 {
	return d.x.At(i, j)
}

// featureSpecs lists the design columns implied by the configuration, in
// matrix order: seasonalities, holidays, regressors.
func (m *Model) featureSpecs() []feature {
	var features []feature

	for _, s := range m.seasonalities {
		for i := 1; i <= s.FourierOrder; i++ {
			for _, fn := range []string{"sin", "cos"} {
				features = append(features, feature{
					Name:       fmt.Sprintf("%s%s%s%d", s.Name, featureDelimiter, fn, i),
					Component:  s.Name,
					Kind:       featureSeasonality,
					Mode:       s.Mode,
					PriorScale: s.PriorScale,
				})
			}
		}
	}

	holidayPrior := make(map[string]float64)
	names := make(map[string]struct{})
	for _, h := range m.holidays {
		for offset := h.LowerWindow; offset <= h.UpperWindow; offset++ {
			names[holidayColumn(h.Name, offset)] = struct{}{}
		}
		// the first declared prior scale of a name wins
		if _, ok := holidayPrior[h.Name]; !ok {
			holidayPrior[h.Name] = h.PriorScale
		}
	}
	columns := make([]string, 0, len(names))
	for name := range names {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	for _, column := range columns {
		holiday := holidayName(column)
		features = append(features, feature{
			Name:       column,
			Component:  holiday,
			Kind:       featureHoliday,
			Mode:       m.seasonalityMode,
			PriorScale: holidayPrior[holiday],
		})
	}

	for _, r := range m.regressors {
		features = append(features, feature{
			Name:       r.Name,
			Component:  r.Name,
			Kind:       featureRegressor,
			Mode:       r.Mode,
			PriorScale: r.PriorScale,
		})
	}
	return features
}

func holidayColumn(name string, offset int) string {
	return fmt.Sprintf("%s%s%+d", name, featureDelimiter, offset)
}

func holidayName(column string) string {
	for i := len(column) - len(featureDelimiter); i >= 0; i-- {
		if column[i:i+len(featureDelimiter)] == featureDelimiter {
			return column[:i]
		}
	}
	return column
}

// regressorScales computes the standardisation of every regressor that asks
// for it. Binary regressors are left untouched.
func (m *Model) regressorScales(history []common.Observation) map[string]RegressorScale {
	scales := make(map[string]RegressorScale, len(m.regressors))
	for _, r := range m.regressors {
		scale := RegressorScale{Mu: 0, Std: 1}
		if r.Standardize {
			values := make([]float64, len(history))
			binary := true
			for i, o := range history {
				values[i] = o.Regressors[r.Name]
				if values[i] != 0 && values[i] != 1 {
					binary = false
				}
			}
			if !binary && len(values) > 1 {
				mu, std := stat.MeanStdDev(values, nil)
				if std == 0 || math.IsNaN(std) {
					std = 1
				}
				scale = RegressorScale{Mu: mu, Std: std}
			}
		}
		scales[r.Name] = scale
	}
	return scales
}

// buildDesign evaluates every feature on the series. missing is the error
// reported when a regressor value is absent.
func (m *Model) buildDesign(series []common.Observation, scales map[string]RegressorScale, missing error) (*designMatrix, error) {
	features := m.featureSpecs()
	d := &designMatrix{features: features, rows: len(series)}
	if len(features) == 0 || len(series) == 0 {
		return d, nil
	}

	data := make([]float64, len(series)*len(features))
	stride := len(features)
	col := 0

	for _, s := range m.seasonalities {
		for i, o := range series {
			active := 1.0
			if s.ConditionName != "" {
				on, ok := o.Conditions[s.ConditionName]
				if !ok {
					return nil, fmt.Errorf("%w: %q at %s", ErrMissingCondition, s.ConditionName, o.TimeStamp.Format(time.RFC3339))
				}
				if !on {
					active = 0
				}
			}
			days := epochDays(o.TimeStamp)
			for k := 1; k <= s.FourierOrder; k++ {
				x := 2 * math.Pi * float64(k) * days / s.Period
				data[i*stride+col+2*(k-1)] = active * math.Sin(x)
				data[i*stride+col+2*(k-1)+1] = active * math.Cos(x)
			}
		}
		col += 2 * s.FourierOrder
	}

	columnIndex := make(map[string]int)
	for j := col; j < len(features) && features[j].Kind == featureHoliday; j++ {
		columnIndex[features[j].Name] = j
	}
	if len(columnIndex) > 0 {
		byDay := make(map[int64][]int)
		for _, h := range m.holidays {
			day := calendarDay(h.Date)
			for offset := h.LowerWindow; offset <= h.UpperWindow; offset++ {
				byDay[day+int64(offset)] = append(byDay[day+int64(offset)], columnIndex[holidayColumn(h.Name, offset)])
			}
		}
		for i, o := range series {
			for _, j := range byDay[calendarDay(o.TimeStamp)] {
				data[i*stride+j] = 1
			}
		}
		col += len(columnIndex)
	}

	for _, r := range m.regressors {
		scale := scales[r.Name]
		for i, o := range series {
			v, ok := o.Regressors[r.Name]
			if !ok || math.IsNaN(v) {
				return nil, fmt.Errorf("%w: %q at %s", missing, r.Name, o.TimeStamp.Format(time.RFC3339))
			}
			if math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: regressor %q is not finite at %s", ErrInvalidValue, r.Name, o.TimeStamp.Format(time.RFC3339))
			}
			data[i*stride+col] = (v - scale.Mu) / scale.Std
		}
		col++
	}

	d.x = mat.NewDense(len(series), len(features), data)
	return d, nil
}

// componentColumns maps every reported component to its design columns.
func componentColumns(features []feature) map[string][]int {
	groups := make(map[string][]int)
	for j, f := range features {
		groups[f.Component] = append(groups[f.Component], j)
		switch f.Kind {
		case featureHoliday:
			groups[componentHolidays] = append(groups[componentHolidays], j)
		case featureRegressor:
			if f.Mode == ModeMultiplicative {
				groups[componentRegressorsMultiple] = append(groups[componentRegressorsMultiple], j)
			} else {
				groups[componentRegressorsAdditive] = append(groups[componentRegressorsAdditive], j)
			}
		}
		if f.Mode == ModeMultiplicative {
			groups[componentMultiplicativeTerms] = append(groups[componentMultiplicativeTerms], j)
		} else {
			groups[componentAdditiveTerms] = append(groups[componentAdditiveTerms], j)
		}
	}
	// the aggregate terms are always reported
	for _, name := range []string{componentAdditiveTerms, componentMultiplicativeTerms, componentRegressorsAdditive, componentRegressorsMultiple} {
		if _, ok := groups[name]; !ok {
			groups[name] = nil
		}
	}
	return groups
}

// componentMode is the composition of a component; groups mixing modes only
// occur for the fixed aggregate names.
func componentMode(name string, features []feature, columns []int) Mode {
	switch name {
	case componentAdditiveTerms, componentRegressorsAdditive:
		return ModeAdditive
	case componentMultiplicativeTerms, componentRegressorsMultiple:
		return ModeMultiplicative
	}
	if len(columns) == 0 {
		return ModeAdditive
	}
	return features[columns[0]].Mode
}

func epochDays(ts time.Time) float64 {
	return float64(ts.Unix())/86400 + float64(ts.Nanosecond())/86400e9
}

// calendarDay numbers the calendar date of ts in its own location, so a
// holiday matches every timestamp on the same wall-clock date whatever the
// zones involved.
func calendarDay(ts time.Time) int64 {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
