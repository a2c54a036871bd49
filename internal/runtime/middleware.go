package runtime

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	metadatapkg "github.com/drblury/geobridge/internal/runtime/metadata"
)

var (
	ErrRouterNotInitialised = errors.New("router is not initialised")
	ErrEmptyMiddleware      = errors.New("middleware registration requires Middleware or Builder")
)

// MiddlewareBuilder constructs a handler middleware using the provided service instance.
type MiddlewareBuilder func(*Service) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware should be registered on a Service router.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the standard middleware chain used by the Service constructor.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		LogMessagesMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware adds the Watermill router metrics and exposes /metrics
// when metrics are enabled. AddPrometheusRouterMetrics installs the handler
// middleware itself, so the builder returns none.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}

			metricsBuilder := metrics.NewPrometheusMetricsBuilder(
				s.registerer,
				"geobridge",
				s.Conf.PubSubSystem,
			)
			metricsBuilder.AddPrometheusRouterMetrics(s.router)

			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
			}

			return nil, nil
		},
	}
}

// LogMessagesMiddleware logs every inbound message at trace level. The
// payload is binary, so only its size is logged.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errors.New("log messages middleware requires a logger")
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return tracerMiddleware(), nil
		},
	}
}

// RecovererMiddleware converts handler panics into errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches the supplied middleware to the router.
func (s *Service) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if s.router == nil {
		return ErrRouterNotInitialised
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return ErrEmptyMiddleware
	}

	if mw == nil {
		return nil
	}

	s.router.AddMiddleware(mw)
	return nil
}

func logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			md := metadatapkg.FromWatermill(msg.Metadata)
			fields := loggingpkg.LogFields{
				"message_uuid":  msg.UUID,
				"payload_bytes": len(msg.Payload),
			}
			if topic := message.SubscribeTopicFromCtx(msg.Context()); topic != "" {
				fields["topic"] = topic
			}
			if id := md.QueryID(); id != "" {
				fields["query_id"] = id
			}
			if schema := md.Schema(); schema != "" {
				fields["schema"] = schema
			}
			logger.Trace("Handling message", fields)
			return h(msg)
		}
	}
}

// tracerMiddleware opens a consumer span for the receipt of a message. The
// pipeline inherits its span context, so lookups become its children. The
// span ends when the handler returns, which is before the lookup completes.
func tracerMiddleware() message.HandlerMiddleware {
	tracer := otel.Tracer("geobridge/runtime")
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx, span := tracer.Start(
				msg.Context(),
				"ReceiveQuery",
				trace.WithSpanKind(trace.SpanKindConsumer),
			)
			defer span.End()
			msg.SetContext(ctx)

			attrs := []attribute.KeyValue{
				attribute.String("messaging.message.id", msg.UUID),
				attribute.Int("messaging.message.body.size", len(msg.Payload)),
			}
			if topic := message.SubscribeTopicFromCtx(ctx); topic != "" {
				attrs = append(attrs, attribute.String("messaging.destination.name", topic))
			}
			if handler := message.HandlerNameFromCtx(ctx); handler != "" {
				attrs = append(attrs, attribute.String("geobridge.handler", handler))
			}
			if queryID := msg.Metadata.Get(metadatapkg.KeyQueryID); queryID != "" {
				attrs = append(attrs, attribute.String("geobridge.query_id", queryID))
			}
			span.SetAttributes(attrs...)

			produced, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return produced, err
		}
	}
}
