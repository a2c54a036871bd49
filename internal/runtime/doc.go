/*
Package runtime runs the geobridge query pipeline on top of Watermill.

# Architecture Overview

One router handler consumes the bridge topic. Each message is acked at once
and handed to its own goroutine, where the Pipeline decodes it, routes the
query to the lookup service and publishes the answer back on the same topic.
Messages that are not queries (including the bridge's own responses) are
dropped quietly.

# Package Structure

## Core Service (service.go)

The Service wires together:
  - Message router (Watermill)
  - Publisher and subscriber from the transport factory
  - Middleware chain
  - Pipeline hooks for logging, Prometheus and in-memory stats
  - HTTP servers for /metrics, /healthz and /status

## Pipeline (pipeline.go, hooks.go)

Decode, route, lookup, publish. Every step reports through PipelineHooks;
nothing is returned to the router.

## Middleware (middleware.go)

  - LogMessages: trace logging of inbound messages
  - Tracer: OpenTelemetry consumer span
  - Metrics: Watermill router metrics
  - Recoverer: panic recovery

## Monitoring (metrics.go, querystats.go, resources.go, status.go)

Prometheus collectors, latency percentiles, throughput, failure causes,
lookup health and process resource usage.

## Publishing (publisher.go)

Encodes responses and queries and stamps query_id, schema and kind headers.

# Sub-packages

  - codec/: ordered-trial query decoding and response encoding
  - config/: YAML + environment configuration with validation
  - dispatch/: query kind to handler routing
  - errors/: sentinel errors
  - gateway/: HTTP client for the lookup service
  - ids/: ULID generation
  - jsoncodec/: sonic-backed JSON
  - logging/: ServiceLogger and slog handlers
  - metadata/: message header helpers
  - models/: queries, responses and pagination
  - schema/: runtime protobuf schemas
  - transport/: transport factory over the registry

# Usage Example

	cfg, _ := geobridge.LoadConfig("geobridge.yaml")
	lookup, _ := geobridge.NewGatewayClient(cfg, logger)

	svc, err := geobridge.NewService(cfg, logger, ctx, geobridge.ServiceDependencies{
		Resolver: lookup,
	})
	if err != nil {
		return err
	}
	go svc.Start(ctx)
*/
package runtime
