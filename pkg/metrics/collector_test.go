package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveFit(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveFit("linear", true, 120, 40*time.Millisecond)
	c.ObserveFit("linear", true, 80, 20*time.Millisecond)
	c.ObserveFit("logistic", false, 10000, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FitsTotal.WithLabelValues("linear", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FitsTotal.WithLabelValues("logistic", "false")))

	count, err := testutil.GatherAndCount(reg, "augur_fit_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollector_ObserveFold(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveFold("ok", time.Millisecond)
	c.ObserveFold("failed", time.Millisecond)
	c.ObserveFold("ok", time.Millisecond)
	c.ObservePrediction(365)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FoldsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FoldsTotal.WithLabelValues("failed")))
	assert.Equal(t, 365.0, testutil.ToFloat64(c.PredictRows))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveFit("flat", true, 1, time.Millisecond)
		c.ObserveFold("ok", time.Millisecond)
		c.ObservePrediction(1)
	})
}
