package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/geobridge/internal/runtime/codec"
	configpkg "github.com/drblury/geobridge/internal/runtime/config"
	"github.com/drblury/geobridge/internal/runtime/dispatch"
	errspkg "github.com/drblury/geobridge/internal/runtime/errors"
	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	"github.com/drblury/geobridge/internal/runtime/schema"
	transportpkg "github.com/drblury/geobridge/internal/runtime/transport"
)

// QueryHandlerName is the name of the router handler consuming the topic.
const QueryHandlerName = "geobridge_queries"

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the collaborators of the Service. Resolver or
// Router is required; everything else is optional.
type ServiceDependencies struct {
	// Resolver answers queries, usually a *gateway.Client.
	Resolver dispatch.Resolver
	// Router replaces the dispatch built from Resolver.
	Router QueryRouter
	// SchemaRegistry defaults to schema.Default().
	SchemaRegistry *schema.Registry
	// Hooks run after the built-in logging and metrics hooks.
	Hooks               PipelineHooks
	DisableLoggingHooks bool
	Middlewares         []MiddlewareRegistration // Appended after the default middleware chain.
	// DisableDefaultMiddlewares skips the default middleware chain when true.
	DisableDefaultMiddlewares bool
	TransportFactory          transportpkg.Factory
	// MetricsRegistry receives the collectors when metrics are enabled. It
	// defaults to the Prometheus default registry.
	MetricsRegistry *prometheus.Registry
}

// Service subscribes to the bridge topic and runs the query pipeline for
// every message it receives.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	responses *Publisher
	pipeline  *Pipeline
	metrics   *Metrics
	stats     *QueryStats
	schemas   *schema.Registry
	resources *resourceTracker
	startedAt time.Time

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	pipelineCtx     context.Context
	cancelPipelines context.CancelFunc
	inflight        sync.WaitGroup
	inflightCount   atomic.Int64
	admitMu         sync.Mutex
	draining        bool

	httpServers   map[int]*http.ServeMux
	running       []*http.Server
	httpServersMu sync.Mutex

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewService validates conf, builds the transport and wires the pipeline.
// Call Start to begin consuming.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	var queryRouter QueryRouter
	switch {
	case deps.Router != nil:
		queryRouter = deps.Router
	case deps.Resolver != nil:
		queryRouter = dispatch.NewRouter(deps.Resolver)
	default:
		return nil, errspkg.ErrResolverRequired
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating bridge service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"topic":         conf.Topic,
		"config":        conf.String(),
	})

	s := &Service{
		Conf:       conf,
		Logger:     log,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		resources:  newResourceTracker(),
		startedAt:  time.Now(),
	}
	if deps.MetricsRegistry != nil {
		s.registerer = deps.MetricsRegistry
		s.gatherer = deps.MetricsRegistry
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build %s transport: %w", conf.PubSubSystem, err)
	}
	if transport.Subscriber == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber

	registry := deps.SchemaRegistry
	if registry == nil {
		registry = schema.Default()
	}
	s.schemas = registry
	s.responses, err = NewPublisher(s.publisher, conf.Topic, codec.NewEncoder(registry))
	if err != nil {
		return nil, err
	}

	hooks := deps.Hooks
	if !deps.DisableLoggingHooks {
		hooks = LoggingHooks(log).Merge(hooks)
	}
	s.stats = NewQueryStats()
	hooks = hooks.Merge(s.stats.Hooks())
	if conf.MetricsEnabled {
		s.metrics = NewMetrics(s.registerer)
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		hooks = hooks.Merge(s.metrics.Hooks())
	}
	s.pipeline = NewPipeline(codec.NewDecoder(registry, log), queryRouter, s.responses, hooks, conf.Topic)

	if ctx == nil {
		ctx = context.Background()
	}
	s.pipelineCtx, s.cancelPipelines = context.WithCancel(context.WithoutCancel(ctx))

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	s.registerStatusHandlers()
	s.router.AddNoPublisherHandler(QueryHandlerName, conf.Topic, s.subscriber, s.handleMessage)

	return s, nil
}

// Start runs the router until ctx is cancelled or the router is closed.
func (s *Service) Start(ctx context.Context) error {
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// Running is closed once the router consumes the topic.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Responses returns the publisher the pipeline answers with.
func (s *Service) Responses() *Publisher {
	return s.responses
}

// Wait blocks until every in-flight pipeline has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Shutdown stops accepting queries, then waits for in-flight pipelines until
// ctx is done. Pipelines still running at that point are cancelled and their
// responses are never published. The router and transport close last, since
// some transports share one value for publishing and subscribing.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.admitMu.Lock()
		s.draining = true
		s.admitMu.Unlock()

		drained := make(chan struct{})
		go func() {
			s.inflight.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			s.Logger.Info("Abandoning in-flight queries", nil)
		}
		s.cancelPipelines()

		var errs []error
		if err := s.router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close router: %w", err))
		}
		if s.publisher != nil {
			if err := s.publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher: %w", err))
			}
		}
		errs = append(errs, s.stopHTTPServers(ctx)...)

		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// handleMessage acks as soon as it returns: the pipeline runs on its own
// goroutine so a slow lookup never blocks the subscription.
func (s *Service) handleMessage(msg *message.Message) error {
	s.admitMu.Lock()
	if s.draining {
		s.admitMu.Unlock()
		s.Logger.Debug("Dropping message received during shutdown", loggingpkg.LogFields{"message_uuid": msg.UUID})
		return nil
	}
	s.inflight.Add(1)
	s.inflightCount.Add(1)
	s.admitMu.Unlock()

	ctx := trace.ContextWithSpanContext(s.pipelineCtx, trace.SpanContextFromContext(msg.Context()))
	s.metrics.pipelineStarted()
	go func() {
		defer s.inflight.Done()
		defer s.inflightCount.Add(-1)
		defer s.metrics.pipelineFinished()
		s.pipeline.Process(ctx, msg)
	}()
	return nil
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the HTTP server for port. Servers are
// started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.running = append(s.running, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (s *Service) stopHTTPServers(ctx context.Context) []error {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	var errs []error
	for _, srv := range s.running {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("stop HTTP server %s: %w", srv.Addr, err))
		}
	}
	s.running = nil
	return errs
}
