package mapper

import (
	"time"

	"github.com/peter-kozarec/augur/pkg/common"
)

// BinaryObservation is the fixed-width on-disk row. The layout has no
// padding so it can be read straight out of a mapped file.
type BinaryObservation struct {
	TimeStamp int64
	Value     float64
	Cap       float64
	Floor     float64
}

func (b BinaryObservation) ToObservation(o *common.Observation) {
	o.TimeStamp = time.Unix(0, b.TimeStamp).UTC()
	o.Value = b.Value
	o.Cap = b.Cap
	o.Floor = b.Floor
}

// FromObservation drops regressors and conditions; only the columns the
// binary layout carries are kept.
func FromObservation(o common.Observation) BinaryObservation {
	return BinaryObservation{
		TimeStamp: o.TimeStamp.UnixNano(),
		Value:     o.Value,
		Cap:       o.Cap,
		Floor:     o.Floor,
	}
}

// LoadSeries maps path and decodes every row.
func LoadSeries(path string) ([]common.Observation, error) {
	r := NewReader[BinaryObservation](path)
	if err := r.Open(); err != nil {
		return nil, err
	}
	defer r.Close()

	count, err := r.EntryCount()
	if err != nil {
		return nil, err
	}

	series := make([]common.Observation, 0, count)
	for row, err := range r.All() {
		if err != nil {
			return nil, err
		}
		var o common.Observation
		row.ToObservation(&o)
		series = append(series, o)
	}
	return series, nil
}

// WriteSeries stores series in the binary layout, replacing path.
func WriteSeries(path string, series []common.Observation) error {
	w, err := NewWriter[BinaryObservation](path)
	if err != nil {
		return err
	}
	for _, o := range series {
		if err := w.Write(FromObservation(o)); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
