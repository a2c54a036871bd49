package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/geobridge/internal/runtime/codec"
	errspkg "github.com/drblury/geobridge/internal/runtime/errors"
	idspkg "github.com/drblury/geobridge/internal/runtime/ids"
	metadatapkg "github.com/drblury/geobridge/internal/runtime/metadata"
	"github.com/drblury/geobridge/internal/runtime/models"
)

// Publisher encodes responses and queries and emits them on the bridge topic.
// Publishing is fire-and-forget: failures are returned once and never retried.
type Publisher struct {
	publisher message.Publisher
	topic     string
	encoder   *codec.Encoder
}

// NewPublisher builds a Publisher for topic. A nil encoder uses the default
// schema registry.
func NewPublisher(publisher message.Publisher, topic string, encoder *codec.Encoder) (*Publisher, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if encoder == nil {
		encoder = codec.NewEncoder(nil)
	}
	return &Publisher{publisher: publisher, topic: topic, encoder: encoder}, nil
}

// Topic returns the topic messages are published to.
func (p *Publisher) Topic() string { return p.topic }

// NewResponseMessage encodes resp into a message stamped with a ULID and the
// query_id, schema and kind headers.
func NewResponseMessage(encoder *codec.Encoder, resp models.Response) (*message.Message, error) {
	payload, err := encoder.EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	name, err := codec.SchemaFor(resp)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata = metadatapkg.ToWatermill(metadatapkg.New(
		metadatapkg.KeyQueryID, resp.CorrelationID(),
		metadatapkg.KeySchema, string(name),
		metadatapkg.KeyKind, resp.Kind().String(),
	))
	return msg, nil
}

// PublishResponse encodes resp and publishes it.
func (p *Publisher) PublishResponse(ctx context.Context, resp models.Response) error {
	msg, err := NewResponseMessage(p.encoder, resp)
	if err != nil {
		return err
	}
	return p.publish(ctx, msg)
}

// PublishQuery encodes q and publishes it. Used by query clients sharing the
// bridge topic.
func (p *Publisher) PublishQuery(ctx context.Context, q models.Query) error {
	payload, err := p.encoder.EncodeQuery(q)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata = metadatapkg.ToWatermill(metadatapkg.New(
		metadatapkg.KeyQueryID, q.CorrelationID(),
		metadatapkg.KeyKind, q.Kind().String(),
	))
	return p.publish(ctx, msg)
}

func (p *Publisher) publish(ctx context.Context, msg *message.Message) error {
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}
