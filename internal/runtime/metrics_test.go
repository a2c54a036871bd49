package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/geobridge/internal/runtime/codec"
	"github.com/drblury/geobridge/internal/runtime/models"
)

// gathered returns the value of the series name{labels} and how many series
// the family holds.
func gathered(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, int) {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), len(mf.GetMetric())
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), len(mf.GetMetric())
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount()), len(mf.GetMetric())
			}
		}
		return 0, len(mf.GetMetric())
	}
	return 0, 0
}

func TestMetrics_RegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	// A second instance sharing the registry must not fail either.
	require.NoError(t, NewMetrics(reg).Register())
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	hooks := m.Hooks()

	hooks.received(PipelineEvent{})
	hooks.received(PipelineEvent{})
	hooks.dropped(PipelineEvent{Outcome: codec.OutcomeNoMatch}, nil)
	hooks.dispatched(PipelineEvent{Kind: models.KindCountry})
	hooks.answered(PipelineEvent{Kind: models.KindCountry, Duration: 20 * time.Millisecond})
	hooks.failed(PipelineEvent{Kind: models.KindLocality, Duration: time.Second}, StageLookup, errors.New("x"))

	v, _ := gathered(t, reg, "geobridge_pipeline_messages_received_total", nil)
	assert.Equal(t, 2.0, v)
	v, _ = gathered(t, reg, "geobridge_pipeline_messages_dropped_total", map[string]string{"outcome": "no_match"})
	assert.Equal(t, 1.0, v)
	v, _ = gathered(t, reg, "geobridge_pipeline_queries_dispatched_total", map[string]string{"kind": "country"})
	assert.Equal(t, 1.0, v)
	v, _ = gathered(t, reg, "geobridge_pipeline_queries_answered_total", map[string]string{"kind": "country"})
	assert.Equal(t, 1.0, v)
	v, _ = gathered(t, reg, "geobridge_pipeline_queries_failed_total", map[string]string{"kind": "locality", "stage": "lookup"})
	assert.Equal(t, 1.0, v)

	v, series := gathered(t, reg, "geobridge_pipeline_query_duration_seconds", map[string]string{"result": "failed"})
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 2, series)
}

func TestMetrics_InFlight(t *testing.T) {
	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.pipelineStarted()
		nilMetrics.pipelineFinished()
	})

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	m.pipelineStarted()
	m.pipelineStarted()
	m.pipelineFinished()

	v, _ := gathered(t, reg, "geobridge_pipeline_in_flight", nil)
	assert.Equal(t, 1.0, v)
}
