// Package geobridge answers country and locality searches published on a
// message bus. The bridge subscribes to one topic, trial-decodes every
// payload as a CountrySearchQuery and then as a LocalitySearchQuery, asks the
// HTTP lookup service, and publishes the protobuf response back on the same
// topic with the query_id of the request.
//
// The bridge is stateless. Each message runs through its own pipeline:
// decode, route, lookup, publish. Payloads that are not queries, including
// the bridge's own responses, are dropped silently. A failed lookup produces
// no response; callers time out on their side.
//
// # Transports
//
// The topic can live on any registered transport, selected by
// Config.PubSubSystem:
//   - channel: in-process Go channels, the default
//   - nats: NATS core with a queue group
//   - kafka: Kafka consumer group
//   - rabbitmq: durable AMQP queue
//   - aws: SNS topic fanned out to an SQS queue, LocalStack friendly
//   - http: inbound HTTP server plus outbound POST per message
//
// # Usage
//
//	conf, err := geobridge.LoadConfig("geobridge.yaml")
//	if err != nil {
//		return err
//	}
//	logger := geobridge.NewSlogServiceLogger(slog.Default())
//	client, err := geobridge.NewGatewayClient(conf, logger)
//	if err != nil {
//		return err
//	}
//	svc, err := geobridge.NewService(conf, logger, ctx, geobridge.ServiceDependencies{
//		Resolver: client,
//	})
//	if err != nil {
//		return err
//	}
//	go svc.Start(ctx)
//
// ServiceDependencies accepts PipelineHooks to observe every message, extra
// router middleware, and a TransportFactory for sharing a transport with
// other components in the same process. Service.Status reports counters,
// latency and the lookup health; it is also served on /status when
// Config.StatusPort is set.
package geobridge
