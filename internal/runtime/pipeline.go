package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/geobridge/internal/runtime/codec"
	"github.com/drblury/geobridge/internal/runtime/models"
)

// QueryRouter routes a decoded query to its lookup and returns the response
// to publish.
type QueryRouter interface {
	Route(ctx context.Context, q models.Query) (models.Response, error)
}

// ResponsePublisher publishes the answer to a query.
type ResponsePublisher interface {
	PublishResponse(ctx context.Context, resp models.Response) error
}

// Pipeline runs decode, route, lookup and publish for one message. It keeps no
// state between messages, so Process may be called concurrently.
type Pipeline struct {
	decoder   *codec.Decoder
	router    QueryRouter
	publisher ResponsePublisher
	hooks     PipelineHooks
	topic     string
}

// NewPipeline assembles a Pipeline. topic is only used to label events.
func NewPipeline(decoder *codec.Decoder, router QueryRouter, publisher ResponsePublisher, hooks PipelineHooks, topic string) *Pipeline {
	if decoder == nil {
		decoder = codec.NewDecoder(nil, nil)
	}
	return &Pipeline{
		decoder:   decoder,
		router:    router,
		publisher: publisher,
		hooks:     hooks,
		topic:     topic,
	}
}

// Process handles msg to completion. Every failure, including a panic, is
// reported through the hooks and never returned: a bad message must not
// affect the subscription or other messages.
func (p *Pipeline) Process(ctx context.Context, msg *message.Message) {
	ev := PipelineEvent{
		MessageUUID: msg.UUID,
		Topic:       p.topic,
		Metadata:    msg.Metadata,
		Context:     ctx,
		StartedAt:   time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			ev.Duration = time.Since(ev.StartedAt)
			p.hooks.failed(ev, StagePanic, fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	p.hooks.received(ev)

	res := p.decoder.Decode(msg.Payload)
	ev.Outcome = res.Outcome
	ev.Schema = res.Schema
	ev.Method = res.Method
	if res.Outcome != codec.OutcomeMatched {
		p.hooks.dropped(ev, res.Err)
		return
	}

	ev.Kind = res.Query.Kind()
	ev.QueryID = res.Query.CorrelationID()
	p.hooks.dispatched(ev)

	resp, err := p.router.Route(ctx, res.Query)
	if err != nil {
		ev.Duration = time.Since(ev.StartedAt)
		p.hooks.failed(ev, StageLookup, err)
		return
	}

	if err := p.publisher.PublishResponse(ctx, resp); err != nil {
		ev.Duration = time.Since(ev.StartedAt)
		p.hooks.failed(ev, StagePublish, err)
		return
	}

	ev.Duration = time.Since(ev.StartedAt)
	p.hooks.answered(ev)
}
