package geobridge

import (
	runtimepkg "github.com/drblury/geobridge/internal/runtime"
	"github.com/drblury/geobridge/internal/runtime/codec"
	configpkg "github.com/drblury/geobridge/internal/runtime/config"
	"github.com/drblury/geobridge/internal/runtime/dispatch"
	errspkg "github.com/drblury/geobridge/internal/runtime/errors"
	"github.com/drblury/geobridge/internal/runtime/gateway"
	idspkg "github.com/drblury/geobridge/internal/runtime/ids"
	jsoncodec "github.com/drblury/geobridge/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	metadatapkg "github.com/drblury/geobridge/internal/runtime/metadata"
	"github.com/drblury/geobridge/internal/runtime/models"
	"github.com/drblury/geobridge/internal/runtime/schema"
	transportpkg "github.com/drblury/geobridge/internal/runtime/transport"
	newtransport "github.com/drblury/geobridge/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Transport           = transportpkg.Transport
	TransportFactory    = transportpkg.Factory
	TransportFunc       = transportpkg.FactoryFunc

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Pipeline observation
	PipelineHooks = runtimepkg.PipelineHooks
	PipelineEvent = runtimepkg.PipelineEvent
	Stage         = runtimepkg.Stage
	QueryRouter   = runtimepkg.QueryRouter
	Publisher     = runtimepkg.Publisher

	StatusSnapshot     = runtimepkg.StatusSnapshot
	QueryStatsSnapshot = runtimepkg.QueryStatsSnapshot

	// Domain model
	Query                  = models.Query
	Response               = models.Response
	CountryQuery           = models.CountryQuery
	LocalityQuery          = models.LocalityQuery
	CountrySearchResponse  = models.CountrySearchResponse
	LocalitySearchResponse = models.LocalitySearchResponse
	Country                = models.Country
	Locality               = models.Locality
	Pagination             = models.Pagination
	QueryMethod            = models.Method
	QueryKind              = models.Kind

	Resolver       = dispatch.Resolver
	GatewayClient  = gateway.Client
	GatewayOptions = gateway.Options
	StatusError    = gateway.StatusError

	SchemaRegistry = schema.Registry
	SchemaName     = schema.Name
	Encoder        = codec.Encoder
	Decoder        = codec.Decoder
	DecodeResult   = codec.Result
	DecodeOutcome  = codec.Outcome

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	NewPublisher   = runtimepkg.NewPublisher
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Default
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares    = runtimepkg.DefaultMiddlewares
	LogMessagesMiddleware = runtimepkg.LogMessagesMiddleware
	TracerMiddleware      = runtimepkg.TracerMiddleware
	MetricsMiddleware     = runtimepkg.MetricsMiddleware
	RecovererMiddleware   = runtimepkg.RecovererMiddleware

	LoggingHooks  = runtimepkg.LoggingHooks
	NewMetrics    = runtimepkg.NewMetrics
	NewQueryStats = runtimepkg.NewQueryStats

	NewCountryQuery  = models.NewCountryQuery
	NewLocalityQuery = models.NewLocalityQuery

	NewEncoder        = codec.NewEncoder
	NewDecoder        = codec.NewDecoder
	DefaultSchemas    = schema.Default
	StaticTransport   = transportpkg.Static
	DefaultTransports = transportpkg.DefaultFactory

	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Decode    = jsoncodec.Decode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrResolverRequired   = errspkg.ErrResolverRequired
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrSubscriberRequired = errspkg.ErrSubscriberRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrLookupStatus       = gateway.ErrStatus
	ErrMalformedPayload   = gateway.ErrMalformedPayload
	ErrCircuitOpen        = gateway.ErrCircuitOpen

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewSlogHandler       = loggingpkg.NewSlogHandler
	NopLogger            = loggingpkg.NopLogger
	NewWatermillLogger   = loggingpkg.NewWatermillAdapter

	NewMetadata   = metadatapkg.New
	CreateULID    = idspkg.CreateULID
	CreateQueryID = idspkg.CreateQueryID
)

const (
	MethodSearchCountry  = models.MethodSearchCountry
	MethodSearchLocality = models.MethodSearchLocality

	KindCountry  = models.KindCountry
	KindLocality = models.KindLocality

	SchemaCountrySearchQuery     = schema.CountrySearchQuery
	SchemaCountrySearchResponse  = schema.CountrySearchResponse
	SchemaLocalitySearchQuery    = schema.LocalitySearchQuery
	SchemaLocalitySearchResponse = schema.LocalitySearchResponse

	MetadataKeyQueryID = metadatapkg.KeyQueryID
	MetadataKeySchema  = metadatapkg.KeySchema
	MetadataKeyKind    = metadatapkg.KeyKind

	DefaultSubscriberGroup = configpkg.DefaultSubscriberGroup
)

// NewGatewayClient builds the lookup client described by conf.
func NewGatewayClient(conf *Config, logger ServiceLogger) (*GatewayClient, error) {
	if conf == nil {
		return nil, ErrConfigRequired
	}
	return gateway.New(gateway.Options{
		BaseURL: conf.LookupBaseURL,
		Timeout: conf.LookupTimeout,
		Logger:  logger,
		Breaker: gateway.BreakerSettings{
			Enabled:          conf.BreakerEnabled,
			FailureThreshold: conf.BreakerFailureThreshold,
			OpenTimeout:      conf.BreakerOpenTimeout,
		},
	})
}
