package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/geobridge/internal/runtime/codec"
	"github.com/drblury/geobridge/internal/runtime/models"
)

func TestPipelineHooks_Merge(t *testing.T) {
	var order []string
	first := PipelineHooks{
		OnReceived: func(PipelineEvent) { order = append(order, "first.received") },
		OnFailed:   func(PipelineEvent, Stage, error) { order = append(order, "first.failed") },
	}
	second := PipelineHooks{
		OnReceived: func(PipelineEvent) { order = append(order, "second.received") },
		OnAnswered: func(PipelineEvent) { order = append(order, "second.answered") },
	}

	merged := first.Merge(second)
	merged.received(PipelineEvent{})
	merged.answered(PipelineEvent{})
	merged.failed(PipelineEvent{}, StageLookup, errors.New("x"))
	merged.dropped(PipelineEvent{}, nil)
	merged.dispatched(PipelineEvent{})

	assert.Equal(t, []string{"first.received", "second.received", "second.answered", "first.failed"}, order)
}

func TestPipelineHooks_ZeroValueIsSafe(t *testing.T) {
	var h PipelineHooks
	assert.NotPanics(t, func() {
		h.received(PipelineEvent{})
		h.dropped(PipelineEvent{}, nil)
		h.dispatched(PipelineEvent{})
		h.answered(PipelineEvent{})
		h.failed(PipelineEvent{}, StagePublish, nil)
	})
}

func TestLoggingHooks_DropLevels(t *testing.T) {
	tests := []struct {
		outcome codec.Outcome
		msg     string
		level   string
	}{
		{codec.OutcomeNoMatch, "Ignoring non-query message", "trace"},
		{codec.OutcomeMissingFields, "Dropping query with missing fields", "debug"},
		{codec.OutcomeUnknownMethod, "Dropping query with unknown method", "debug"},
		{codec.OutcomeInconsistentMethod, "Dropping query with contradictory method", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			logger := newRecordingLogger()
			LoggingHooks(logger).dropped(PipelineEvent{MessageUUID: "m1", Outcome: tt.outcome, Method: "search_x"}, errors.New("why"))

			entry, ok := logger.find(tt.msg)
			require.True(t, ok)
			assert.Equal(t, tt.level, entry.level)
			assert.Equal(t, "m1", entry.fields["message_uuid"])
			assert.Equal(t, "why", entry.fields["reason"])
			assert.Equal(t, "search_x", entry.fields["query_method"])
		})
	}
}

func TestLoggingHooks_Lifecycle(t *testing.T) {
	logger := newRecordingLogger()
	hooks := LoggingHooks(logger)
	ev := PipelineEvent{MessageUUID: "m1", QueryID: "q1", Kind: models.KindLocality}

	hooks.dispatched(ev)
	hooks.answered(ev)
	hooks.failed(ev, StageLookup, errors.New("timeout"))

	dispatched, ok := logger.find("Dispatching query")
	require.True(t, ok)
	assert.Equal(t, "debug", dispatched.level)
	assert.Equal(t, "locality", dispatched.fields["kind"])

	answered, ok := logger.find("Query answered")
	require.True(t, ok)
	assert.Equal(t, "info", answered.level)
	assert.Equal(t, "q1", answered.fields["query_id"])

	failed, ok := logger.find("Query failed")
	require.True(t, ok)
	assert.Equal(t, "error", failed.level)
	assert.Equal(t, "lookup", failed.fields["stage"])
	assert.EqualError(t, failed.err, "timeout")
}
