package prophet

import (
	"time"

	"github.com/peter-kozarec/augur/pkg/utility"
)

// Fitted is the immutable result of Model.Fit. Its accessors return copies.
type Fitted struct {
	id              utility.RunID
	model           *Model
	normalizer      Normalizer
	changepoints    []time.Time
	changepointsT   []float64
	params          Params
	regressorScales map[string]RegressorScale
	historyDates    []time.Time
	seed            int64
	diagnostics     Diagnostics

	features   []feature
	components map[string][]int
}

func newFitted(id utility.RunID, model *Model, normalizer Normalizer, changepoints []time.Time, params Params,
	scales map[string]RegressorScale, historyDates []time.Time, seed int64, diagnostics Diagnostics) *Fitted {

	cpT := make([]float64, len(changepoints))
	for i, cp := range changepoints {
		cpT[i] = normalizer.Time(cp)
	}
	features := model.featureSpecs()
	return &Fitted{
		id:              id,
		model:           model,
		normalizer:      normalizer,
		changepoints:    changepoints,
		changepointsT:   cpT,
		params:          params,
		regressorScales: scales,
		historyDates:    historyDates,
		seed:            seed,
		diagnostics:     diagnostics,
		features:        features,
		components:      componentColumns(features),
	}
}

func (f *Fitted) ID() utility.RunID        { return f.id }
func (f *Fitted) Model() *Model            { return f.model }
func (f *Fitted) Normalizer() Normalizer   { return f.normalizer }
func (f *Fitted) Params() Params           { return f.params.clone() }
func (f *Fitted) Diagnostics() Diagnostics { return f.diagnostics }
func (f *Fitted) Seed() int64              { return f.seed }

func (f *Fitted) Changepoints() []time.Time {
	return append([]time.Time(nil), f.changepoints...)
}

func (f *Fitted) HistoryDates() []time.Time {
	return append([]time.Time(nil), f.historyDates...)
}

func (f *Fitted) RegressorScales() map[string]RegressorScale {
	out := make(map[string]RegressorScale, len(f.regressorScales))
	for k, v := range f.regressorScales {
		out[k] = v
	}
	return out
}

// FeatureNames lists the design columns in coefficient order, matching
// Params().Beta.
func (f *Fitted) FeatureNames() []string {
	names := make([]string, len(f.features))
	for i, feat := range f.features {
		names[i] = feat.Name
	}
	return names
}

// Coefficient returns the fitted coefficient of a design column.
func (f *Fitted) Coefficient(name string) (float64, bool) {
	for i, feat := range f.features {
		if feat.Name == name {
			return f.params.Beta[i], true
		}
	}
	return 0, false
}

func (f *Fitted) LastHistoryDate() time.Time {
	if len(f.historyDates) == 0 {
		return time.Time{}
	}
	return f.historyDates[len(f.historyDates)-1]
}
