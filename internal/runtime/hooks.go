package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/geobridge/internal/runtime/codec"
	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	"github.com/drblury/geobridge/internal/runtime/models"
	"github.com/drblury/geobridge/internal/runtime/schema"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageLookup  Stage = "lookup"
	StagePublish Stage = "publish"
	StagePanic   Stage = "panic"
)

// PipelineEvent describes one message as it moves through the pipeline.
// Fields are filled in as the message progresses; Kind and QueryID are only
// set once the payload decoded into a query.
type PipelineEvent struct {
	// MessageUUID is the transport identifier of the inbound message.
	MessageUUID string
	// Topic is the topic the message was received from.
	Topic string
	// Metadata contains the inbound message metadata.
	Metadata message.Metadata
	// Context is the pipeline context.
	Context context.Context
	// StartedAt is when the pipeline picked the message up.
	StartedAt time.Time
	// Duration is set on OnAnswered and OnFailed.
	Duration time.Duration

	Outcome codec.Outcome
	Schema  schema.Name
	Method  string
	Kind    models.Kind
	QueryID string
}

// PipelineHooks observe the per-message pipeline. Nil hooks are skipped.
type PipelineHooks struct {
	// OnReceived is called before decoding.
	OnReceived func(ev PipelineEvent)
	// OnDropped is called when the payload is not a dispatchable query.
	// reason may be nil for method mismatches.
	OnDropped func(ev PipelineEvent, reason error)
	// OnDispatched is called right before the lookup service is queried.
	OnDispatched func(ev PipelineEvent)
	// OnAnswered is called after the response was handed to the publisher.
	OnAnswered func(ev PipelineEvent)
	// OnFailed is called when the lookup or the publish fails, or the
	// pipeline panics. No response is published in that case.
	OnFailed func(ev PipelineEvent, stage Stage, err error)
}

// Merge combines two PipelineHooks. The hooks from other run after h.
func (h PipelineHooks) Merge(other PipelineHooks) PipelineHooks {
	return PipelineHooks{
		OnReceived:   chainEventHooks(h.OnReceived, other.OnReceived),
		OnDropped:    chainDroppedHooks(h.OnDropped, other.OnDropped),
		OnDispatched: chainEventHooks(h.OnDispatched, other.OnDispatched),
		OnAnswered:   chainEventHooks(h.OnAnswered, other.OnAnswered),
		OnFailed:     chainFailedHooks(h.OnFailed, other.OnFailed),
	}
}

func chainEventHooks(a, b func(PipelineEvent)) func(PipelineEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ev PipelineEvent) {
		a(ev)
		b(ev)
	}
}

func chainDroppedHooks(a, b func(PipelineEvent, error)) func(PipelineEvent, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ev PipelineEvent, err error) {
		a(ev, err)
		b(ev, err)
	}
}

func chainFailedHooks(a, b func(PipelineEvent, Stage, error)) func(PipelineEvent, Stage, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ev PipelineEvent, stage Stage, err error) {
		a(ev, stage, err)
		b(ev, stage, err)
	}
}

func (h PipelineHooks) received(ev PipelineEvent) {
	if h.OnReceived != nil {
		h.OnReceived(ev)
	}
}

func (h PipelineHooks) dropped(ev PipelineEvent, reason error) {
	if h.OnDropped != nil {
		h.OnDropped(ev, reason)
	}
}

func (h PipelineHooks) dispatched(ev PipelineEvent) {
	if h.OnDispatched != nil {
		h.OnDispatched(ev)
	}
}

func (h PipelineHooks) answered(ev PipelineEvent) {
	if h.OnAnswered != nil {
		h.OnAnswered(ev)
	}
}

func (h PipelineHooks) failed(ev PipelineEvent, stage Stage, err error) {
	if h.OnFailed != nil {
		h.OnFailed(ev, stage, err)
	}
}

// LoggingHooks returns hooks that log the pipeline. Drops of foreign traffic
// are expected, so they stay at trace level; method mismatches are logged
// louder because they come from misbehaving peers.
func LoggingHooks(logger loggingpkg.ServiceLogger) PipelineHooks {
	return PipelineHooks{
		OnReceived: func(ev PipelineEvent) {
			logger.Trace("Message received", loggingpkg.LogFields{
				"message_uuid": ev.MessageUUID,
				"topic":        ev.Topic,
			})
		},
		OnDropped: func(ev PipelineEvent, reason error) {
			fields := loggingpkg.LogFields{
				"message_uuid": ev.MessageUUID,
				"outcome":      ev.Outcome.String(),
			}
			if ev.Schema != "" {
				fields["schema"] = string(ev.Schema)
			}
			if ev.Method != "" {
				fields["query_method"] = ev.Method
			}
			if reason != nil {
				fields["reason"] = reason.Error()
			}
			switch ev.Outcome {
			case codec.OutcomeInconsistentMethod:
				logger.Info("Dropping query with contradictory method", fields)
			case codec.OutcomeUnknownMethod:
				logger.Debug("Dropping query with unknown method", fields)
			case codec.OutcomeMissingFields:
				logger.Debug("Dropping query with missing fields", fields)
			default:
				logger.Trace("Ignoring non-query message", fields)
			}
		},
		OnDispatched: func(ev PipelineEvent) {
			logger.Debug("Dispatching query", loggingpkg.LogFields{
				"message_uuid": ev.MessageUUID,
				"query_id":     ev.QueryID,
				"kind":         ev.Kind.String(),
			})
		},
		OnAnswered: func(ev PipelineEvent) {
			logger.Info("Query answered", loggingpkg.LogFields{
				"query_id":    ev.QueryID,
				"kind":        ev.Kind.String(),
				"duration_ms": ev.Duration.Milliseconds(),
			})
		},
		OnFailed: func(ev PipelineEvent, stage Stage, err error) {
			logger.Error("Query failed", err, loggingpkg.LogFields{
				"message_uuid": ev.MessageUUID,
				"query_id":     ev.QueryID,
				"kind":         ev.Kind.String(),
				"stage":        string(stage),
				"duration_ms":  ev.Duration.Milliseconds(),
			})
		},
	}
}
