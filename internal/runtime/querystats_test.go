package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/geobridge/internal/runtime/codec"
	"github.com/drblury/geobridge/internal/runtime/gateway"
)

func TestQueryStats_Counts(t *testing.T) {
	stats := NewQueryStats()
	hooks := stats.Hooks()

	hooks.received(PipelineEvent{})
	hooks.received(PipelineEvent{})
	hooks.received(PipelineEvent{})
	hooks.dropped(PipelineEvent{Outcome: codec.OutcomeNoMatch}, nil)
	hooks.answered(PipelineEvent{Duration: 10 * time.Millisecond})
	hooks.failed(PipelineEvent{Duration: 30 * time.Millisecond}, StageLookup, errors.New("refused"))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(3), snap.Received)
	assert.Equal(t, map[string]uint64{"no_match": 1}, snap.Dropped)
	assert.Equal(t, uint64(1), snap.Answered)
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, 2, snap.Latency.SampleSize)
	assert.Equal(t, int64(30*time.Millisecond), snap.Latency.LastNs)
	assert.Equal(t, int64(20*time.Millisecond), snap.Latency.AverageNs)
	assert.Equal(t, 1, snap.Throughput.MessagesInWindow)
}

func TestQueryStats_LookupHealth(t *testing.T) {
	stats := NewQueryStats()
	hooks := stats.Hooks()
	assert.Equal(t, DependencyStatusUnknown, stats.Snapshot().Lookup.Status)

	hooks.failed(PipelineEvent{}, StageLookup, errors.New("connection refused"))
	snap := stats.Snapshot()
	assert.Equal(t, DependencyStatusDegraded, snap.Lookup.Status)
	assert.Equal(t, "connection refused", snap.Lookup.Details)

	hooks.failed(PipelineEvent{}, StagePublish, errors.New("broker down"))
	assert.Equal(t, DependencyStatusDegraded, stats.Snapshot().Lookup.Status, "publish failures say nothing about the lookup")

	hooks.answered(PipelineEvent{})
	assert.Equal(t, DependencyStatusHealthy, stats.Snapshot().Lookup.Status)
}

func TestFailureBreakdown_Record(t *testing.T) {
	var f FailureBreakdown
	f.record(StageLookup, &gateway.StatusError{Code: 502})
	f.record(StageLookup, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	f.record(StageLookup, fmt.Errorf("%w: open", gateway.ErrCircuitOpen))
	f.record(StageLookup, gateway.ErrMalformedPayload)
	f.record(StageLookup, errors.New("dns"))
	f.record(StagePublish, errors.New("broker down"))
	f.record(StagePanic, errors.New("boom"))

	assert.Equal(t, FailureBreakdown{
		Status: 1, Timeout: 1, CircuitOpen: 1, Malformed: 1, Other: 1, Publish: 1, Panic: 1,
		LastError: "boom",
	}, f)
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40, 50}
	assert.Equal(t, int64(10), percentile(samples, 0))
	assert.Equal(t, int64(30), percentile(samples, 0.5))
	assert.Equal(t, int64(50), percentile(samples, 1))
	assert.Equal(t, int64(48), percentile(samples, 0.95))
	assert.Zero(t, percentile(nil, 0.5))
}

func TestLatencyWindowWraps(t *testing.T) {
	lw := newLatencyWindow(3)
	for i := 1; i <= 5; i++ {
		lw.Add(time.Duration(i))
	}
	snap := lw.Snapshot()
	assert.Equal(t, 3, snap.SampleSize)
	assert.Equal(t, int64(4), snap.AverageNs)
	assert.Equal(t, int64(5), snap.LastNs)
}

func TestThroughputWindowExpires(t *testing.T) {
	tw := newThroughputWindow(time.Minute)
	base := time.Unix(1_700_000_000, 0)
	tw.Add(base)
	tw.Add(base.Add(30 * time.Second))

	assert.Equal(t, 2, tw.Snapshot(base.Add(40*time.Second)).MessagesInWindow)
	assert.Equal(t, 1, tw.Snapshot(base.Add(80*time.Second)).MessagesInWindow)
	assert.Equal(t, 0, tw.Snapshot(base.Add(5*time.Minute)).MessagesInWindow)
}
