// Package nats provides the NATS core transport. JetStream is disabled: the
// bridge is stateless and nothing it publishes needs to be replayed.
package nats

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/geobridge/transport"
)

const TransportName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register adds the NATS transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build connects a publisher and a subscriber to cfg.GetNATSURL(). Replicas
// sharing a subscriber group join the same queue group, so each query is
// answered once.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	opts := ConnectOptions(cfg)
	marshaler := &nats.NATSMarshaler{}
	jsDisabled := nats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			NatsOptions: opts,
			Marshaler:   marshaler,
			JetStream:   jsDisabled,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("nats publisher: %w", err)
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:              url,
			QueueGroupPrefix: cfg.GetSubscriberGroup(),
			SubscribersCount: 1,
			NatsOptions:      opts,
			Unmarshaler:      marshaler,
			JetStream:        jsDisabled,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, fmt.Errorf("nats subscriber: %w", err)
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// ConnectOptions maps config onto nats.go connection options.
func ConnectOptions(cfg transport.Config) []nc.Option {
	opts := []nc.Option{nc.MaxReconnects(cfg.GetNATSMaxReconnects())}
	if name := cfg.GetNATSClientName(); name != "" {
		opts = append(opts, nc.Name(name))
	}
	return opts
}

func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
