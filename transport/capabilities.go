package transport

// Capabilities describes what a backend guarantees. The bridge publishes
// responses on the topic it consumes, so SelfDelivery matters most: a backend
// that echoes the bridge's own publishes back to it makes the decoder see
// every response once more.
type Capabilities struct {
	// Name is the pubsub system name the transport registers under.
	Name string `json:"name"`

	// SupportsAck indicates the transport supports explicit acknowledgment.
	SupportsAck bool `json:"supports_ack"`

	// SupportsNack indicates a nacked message is redelivered.
	SupportsNack bool `json:"supports_nack"`

	// SupportsOrdering indicates messages within a topic/partition arrive in order.
	SupportsOrdering bool `json:"supports_ordering"`

	// SupportsTracing indicates metadata survives the hop, so trace headers propagate.
	SupportsTracing bool `json:"supports_tracing"`

	// SelfDelivery indicates a subscriber receives what its own publisher sent
	// on the same topic.
	SelfDelivery bool `json:"self_delivery"`

	// Durable indicates messages survive a broker restart.
	Durable bool `json:"durable"`

	// MaxMessageSize is the maximum payload in bytes (0 = unknown).
	MaxMessageSize int64 `json:"max_message_size"`
}

// SupportsReliableDelivery reports at-least-once semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Fits reports whether a payload of n bytes is within MaxMessageSize.
func (c Capabilities) Fits(n int) bool {
	return c.MaxMessageSize <= 0 || int64(n) <= c.MaxMessageSize
}

// Predefined capability sets for the bundled transports.
var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsOrdering: true,
		SelfDelivery:     true,
	}

	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsOrdering: true,
		SupportsTracing:  true,
		SelfDelivery:     true,
		Durable:          true,
		MaxMessageSize:   1 << 20,
	}

	RabbitMQCapabilities = Capabilities{
		Name:            "rabbitmq",
		SupportsAck:     true,
		SupportsNack:    true,
		SupportsTracing: true,
		SelfDelivery:    true,
		Durable:         true,
		MaxMessageSize:  128 << 20,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		SelfDelivery:    true,
		MaxMessageSize:  1 << 20,
	}

	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsAck:     true,
		SupportsNack:    true,
		SupportsTracing: true,
		SelfDelivery:    true,
		Durable:         true,
		MaxMessageSize:  256 << 10,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsAck:     true,
		SupportsTracing: true,
	}
)
