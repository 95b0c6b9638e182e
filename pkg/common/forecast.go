package common

import (
	"sort"
	"time"
)

// Forecast is one predicted row. Components holds the decomposition keyed by
// component name; additive components are in the units of the series,
// multiplicative ones are fractions of the trend.
type Forecast struct {
	TimeStamp  time.Time `json:"ds"`
	Yhat       float64   `json:"yhat"`
	YhatLower  float64   `json:"yhat_lower"`
	YhatUpper  float64   `json:"yhat_upper"`
	Trend      float64   `json:"trend"`
	TrendLower float64   `json:"trend_lower"`
	TrendUpper float64   `json:"trend_upper"`
	Cap        float64   `json:"cap,omitempty"`

	Components map[string]float64 `json:"components,omitempty"`
}

func (f Forecast) Component(name string) (float64, bool) {
	v, ok := f.Components[name]
	return v, ok
}

// ComponentNames lists the components in lexical order.
func (f Forecast) ComponentNames() []string {
	names := make([]string, 0, len(f.Components))
	for name := range f.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f Forecast) Contains(value float64) bool {
	return value >= f.YhatLower && value <= f.YhatUpper
}
