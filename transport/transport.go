// Package transport defines the broker abstraction the bridge runs on.
// Each backend (kafka, rabbitmq, nats, aws, http, in-memory channel) lives in
// its own sub-package and registers a Builder under its pubsub system name.
package transport

import (
	"context"
	"errors"
	"reflect"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport is the publisher/subscriber pair a backend hands to the bridge.
// Both halves may be the same value (gochannel, nats core).
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves, once each.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil && !sameValue(t.Publisher, t.Subscriber) {
		errs = append(errs, t.Subscriber.Close())
	}
	return errors.Join(errs...)
}

// sameValue reports whether both halves are the same pointer.
func sameValue(pub message.Publisher, sub message.Subscriber) bool {
	if pub == nil || sub == nil {
		return false
	}
	pv, sv := reflect.ValueOf(pub), reflect.ValueOf(sub)
	if pv.Kind() != reflect.Pointer || sv.Kind() != reflect.Pointer {
		return false
	}
	return pv.Pointer() == sv.Pointer()
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config is the slice of service configuration transports read. It keeps
// backends free of the config package.
type Config interface {
	GetPubSubSystem() string

	// Subscriber group shared by competing consumers.
	GetSubscriberGroup() string
	GetSubscriberEphemeral() bool

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
	GetNATSClientName() string
	GetNATSMaxReconnects() int

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
