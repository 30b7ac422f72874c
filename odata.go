// Package odata routes HTTP requests to OData v4 endpoints. Route templates
// are matched by the host router; the OData matching policy then translates
// the route values of every candidate into an OData path against the model of
// its data source and commits the first one that translates.
package odata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/nlstn/go-odata-routing/internal/datasource"
	"github.com/nlstn/go-odata-routing/internal/handlers"
	"github.com/nlstn/go-odata-routing/internal/matcher"
	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/modelcache"
	"github.com/nlstn/go-odata-routing/internal/observability"
	"github.com/nlstn/go-odata-routing/internal/routepattern"
	servrouter "github.com/nlstn/go-odata-routing/internal/service/router"
	"github.com/nlstn/go-odata-routing/internal/template"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
)

// Public aliases for the types handlers and data sources work with.
type (
	// DataSource serves the model and the data of one named data source.
	DataSource = datasource.DataSource
	// EntityObject is one entity loaded from a data source.
	EntityObject = datasource.EntityObject
	// StoreConfig selects the database behind the sample data sources.
	StoreConfig = datasource.StoreConfig
	// Feature carries the OData path committed for a request.
	Feature = matcher.Feature
	// PathTemplate is a sequence of segment templates.
	PathTemplate = template.PathTemplate
	// SegmentTemplate matches one OData path segment.
	SegmentTemplate = template.SegmentTemplate
	// Model is an immutable EDM model.
	Model = metadata.Model
	// ModelBuilder assembles a Model from Go structs.
	ModelBuilder = metadata.Builder
	// ServerTimingMetric times one operation for the Server-Timing header.
	ServerTimingMetric = observability.ServerTimingMetric
)

// ServiceConfig controls optional service behaviours.
type ServiceConfig struct {
	// RoutePrefix is the path every OData route is mounted under.
	// Default: "odata". Set it to "/" to mount at the host root.
	RoutePrefix string

	// DataSourceKey is the route value naming the data source of dynamic routes.
	// Default: "datasource".
	DataSourceKey string

	// Store configures the database behind AddSampleDataSources.
	Store StoreConfig
}

const (
	// DefaultRoutePrefix is used when no route prefix is configured.
	DefaultRoutePrefix = "odata"
	// DefaultDataSourceKey is used when no data source route value is configured.
	DefaultDataSourceKey = matcher.DefaultDataSourceKey
	// DefaultNamespace is used by NewModelBuilder when no namespace is given.
	DefaultNamespace = "ODataService"
)

// Service owns the router, the matching policy and the registered data sources.
// Configure it before serving; ServeHTTP is safe for concurrent use.
type Service struct {
	// router matches route templates and runs the selector policies
	router *servrouter.Router
	// policy commits OData paths
	policy *matcher.Policy
	// cache holds the model of every data source, built once
	cache *modelcache.Cache
	// sources holds the registered data sources keyed by folded name
	sources   map[string]DataSource
	sourcesMu sync.RWMutex
	// controller serves entity sets, entities, navigations and properties
	controller             *handlers.DynamicController
	metadataHandler        *handlers.MetadataHandler
	serviceDocumentHandler *handlers.ServiceDocumentHandler
	// handler is the router, wrapped by the Server-Timing middleware when enabled
	handler       http.Handler
	prefix        string
	dataSourceKey string
	store         StoreConfig
	logger        *slog.Logger
	observability *observability.Config
}

// NewService creates a service with no routes.
func NewService(cfg ServiceConfig) (*Service, error) {
	prefix := cfg.RoutePrefix
	if prefix == "" {
		prefix = DefaultRoutePrefix
	}
	prefix = strings.Trim(prefix, "/")
	if strings.ContainsAny(prefix, "{}") {
		return nil, fmt.Errorf("route prefix %q cannot contain placeholders", cfg.RoutePrefix)
	}
	dataSourceKey := cfg.DataSourceKey
	if dataSourceKey == "" {
		dataSourceKey = DefaultDataSourceKey
	}

	logger := slog.Default()
	s := &Service{
		router:        servrouter.NewRouter(logger),
		cache:         modelcache.New(),
		sources:       make(map[string]DataSource),
		prefix:        prefix,
		dataSourceKey: dataSourceKey,
		store:         cfg.Store,
		logger:        logger,
	}
	s.policy = matcher.NewPolicy(s.cache)
	s.controller = handlers.NewDynamicController(s.lookup, logger)
	s.metadataHandler = handlers.NewMetadataHandler(logger)
	s.serviceDocumentHandler = handlers.NewServiceDocumentHandler(logger)
	s.router.AddPolicy(s.policy)
	s.handler = s.router
	return s, nil
}

// NewModelBuilder starts a model in namespace, or DefaultNamespace when empty.
func NewModelBuilder(namespace string) *ModelBuilder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return metadata.NewBuilder(namespace)
}

// AddDataSource registers a data source. Names are matched case-insensitively.
func (s *Service) AddDataSource(name string, src DataSource) error {
	if src == nil {
		return fmt.Errorf("data source %s is nil", name)
	}
	if err := s.policy.AddSource(name, src); err != nil {
		return err
	}
	s.sourcesMu.Lock()
	s.sources[cases.Fold().String(name)] = src
	s.sourcesMu.Unlock()
	s.logger.Info("Registered data source", "datasource", name)
	return nil
}

// AddSampleDataSources registers mydatasource and anotherdatasource, both
// kept in the store selected by ServiceConfig.Store.
func (s *Service) AddSampleDataSources() error {
	my, err := datasource.MyDataSource(s.store, s.logger)
	if err != nil {
		return err
	}
	if err := s.AddDataSource(datasource.MyDataSourceName, my); err != nil {
		return err
	}
	another, err := datasource.AnotherDataSource(s.store, s.logger)
	if err != nil {
		return err
	}
	return s.AddDataSource(datasource.AnotherDataSourceName, another)
}

func (s *Service) lookup(name string) (datasource.DataSource, bool) {
	s.sourcesMu.RLock()
	defer s.sourcesMu.RUnlock()
	src, ok := s.sources[cases.Fold().String(name)]
	return src, ok
}

// dynamicRoutes are mounted below {prefix}/{datasource}. Routes with the same
// shape are tried in this order.
var dynamicRoutes = []struct {
	name     string
	pattern  string
	template *template.PathTemplate
	metadata bool
	document bool
}{
	{name: "servicedocument", pattern: "", template: template.New(template.ServiceDocumentTemplate{}), document: true},
	{name: "metadata", pattern: "$metadata", template: template.New(template.MetadataTemplate{}), metadata: true},
	{name: "entityset", pattern: "{entityset}", template: template.New(&template.EntitySetRouteValueTemplate{})},
	{name: "count", pattern: "{entityset}/$count", template: template.New(&template.EntitySetRouteValueTemplate{}, &template.CountTemplate{})},
	{name: "entity", pattern: "{entityset}({key})", template: template.New(&template.EntitySetWithKeyTemplate{})},
	{name: "navigation", pattern: "{entityset}({key})/{navigation}", template: template.New(&template.EntitySetWithKeyTemplate{}, &template.NavigationRouteValueTemplate{})},
	{name: "property", pattern: "{entityset}({key})/{property}", template: template.New(&template.EntitySetWithKeyTemplate{}, &template.PropertyRouteValueTemplate{})},
	{name: "navigationcount", pattern: "{entityset}({key})/{navigation}/$count", template: template.New(&template.EntitySetWithKeyTemplate{}, &template.NavigationRouteValueTemplate{}, &template.CountTemplate{})},
	{name: "ref", pattern: "{entityset}({key})/{navigation}/$ref", template: template.New(&template.EntitySetWithKeyTemplate{}, &template.NavigationLinkTemplate{})},
	{name: "rawvalue", pattern: "{entityset}({key})/{property}/$value", template: template.New(&template.EntitySetWithKeyTemplate{}, &template.PropertyRouteValueTemplate{}, &template.ValueTemplate{})},
}

// MapDynamicRoute registers the read routes of every data source under
// {prefix}/{datasource}. The model of each request is the model of the data
// source named by the datasource route value.
func (s *Service) MapDynamicRoute() error {
	for _, rt := range dynamicRoutes {
		var handler http.Handler = s.controller
		switch {
		case rt.metadata:
			handler = s.metadataHandler
		case rt.document:
			handler = s.serviceDocumentHandler
		}
		literal := rt.pattern
		if literal == "" {
			literal = "{" + s.dataSourceKey + "}"
		} else {
			literal = "{" + s.dataSourceKey + "}/" + literal
		}
		if err := s.mapEndpoint(Route{
			Name:     "dynamic-" + rt.name,
			Methods:  []string{http.MethodGet, http.MethodHead},
			Pattern:  literal,
			Template: rt.template,
			Handler:  handler,
		}, rt.pattern); err != nil {
			return err
		}
	}
	s.logger.Info("Mapped dynamic OData routes", "prefix", s.prefix, "datasourceKey", s.dataSourceKey)
	return nil
}

// Route is an OData endpoint registered with MapRoute.
type Route struct {
	Name string
	// Methods lists the accepted HTTP methods. Empty accepts GET and HEAD.
	Methods []string
	// Pattern is the route template below the prefix, e.g.
	// "Products({key:odatakeys(ID)})" or "{datasource}/{entityset}". Empty maps
	// every route template the path template accepts.
	Pattern string
	// Template translates the route values into an OData path.
	Template *PathTemplate
	// Model is a static model. When nil the model comes from DataSource, or
	// from the data source named by the datasource route value.
	Model      *Model
	DataSource string
	// Handler serves the committed path. Nil selects the built-in read controller.
	Handler http.Handler
}

// MapRoute registers an OData endpoint.
func (s *Service) MapRoute(route Route) error {
	if route.Pattern != "" || route.Template == nil {
		return s.mapEndpoint(route, "")
	}
	literals := route.Template.Templates()
	for i, literal := range literals {
		endpoint := route
		endpoint.Pattern = literal
		if len(literals) > 1 {
			endpoint.Name = fmt.Sprintf("%s#%d", route.Name, i)
		}
		if err := s.mapEndpoint(endpoint, literal); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) mapEndpoint(route Route, templateLiteral string) error {
	if route.Template == nil {
		return fmt.Errorf("route %s has no path template", route.Name)
	}
	pattern, err := routepattern.Parse(joinRoute(s.prefix, route.Pattern))
	if err != nil {
		return fmt.Errorf("failed to map route %s: %w", route.Name, err)
	}
	handler := route.Handler
	if handler == nil {
		handler = s.controller
	}
	methods := route.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodHead}
	}
	if templateLiteral == "" {
		templateLiteral = strings.Trim(route.Pattern, "/")
	}

	return s.router.Add(&servrouter.Endpoint{
		Name:    route.Name,
		Methods: methods,
		Pattern: pattern,
		Handler: handler,
		Metadata: &matcher.RoutingMetadata{
			Prefix:          s.prefix,
			Template:        route.Template,
			TemplateLiteral: templateLiteral,
			Model:           route.Model,
			DataSource:      route.DataSource,
			DataSourceKey:   s.dataSourceKey,
		},
	})
}

func joinRoute(prefix, pattern string) string {
	pattern = strings.Trim(pattern, "/")
	switch {
	case prefix == "":
		return pattern
	case pattern == "":
		return prefix
	}
	return prefix + "/" + pattern
}

// SetLogger sets the logger used by the service and its routing components.
// Passing nil restores slog.Default().
func (s *Service) SetLogger(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
	s.router.SetLogger(logger)
	s.policy.SetLogger(logger)
	s.controller.SetLogger(logger)
	s.metadataHandler.SetLogger(logger)
	s.serviceDocumentHandler.SetLogger(logger)
	return nil
}

// ObservabilityConfig configures tracing, metrics and Server-Timing for route
// matching. All providers are optional; nil providers record nothing.
type ObservabilityConfig struct {
	// TracerProvider provides the OpenTelemetry tracer for route matching spans.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the OpenTelemetry meter for matching metrics.
	MeterProvider metric.MeterProvider

	// ServiceName identifies this service in telemetry data.
	// Defaults to "odata-routing" if not specified.
	ServiceName string

	// ServiceVersion is reported in telemetry attributes.
	ServiceVersion string

	// EnableServerTiming adds the Server-Timing HTTP response header, timing
	// route matching and model builds.
	EnableServerTiming bool
}

// SetObservability configures OpenTelemetry-based observability for the service.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(...)
//	service.SetObservability(odata.ObservabilityConfig{
//	    TracerProvider: tp,
//	    ServiceName:    "my-odata-router",
//	})
func (s *Service) SetObservability(cfg ObservabilityConfig) error {
	opts := []observability.Option{}

	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}
	if s.logger != nil {
		opts = append(opts, observability.WithLogger(s.logger))
	}
	if cfg.EnableServerTiming {
		opts = append(opts, observability.WithServerTiming())
	}

	obsCfg := observability.NewConfig(opts...)
	if err := obsCfg.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	s.observability = obsCfg
	s.policy.SetObservability(obsCfg)
	s.handler = obsCfg.Middleware(s.router)
	return nil
}

// FeatureFromRequest returns the OData routing result of a request served by
// the service.
func FeatureFromRequest(r *http.Request) (*Feature, bool) {
	return matcher.FeatureFromRequest(r)
}

// WithDataSource attaches a data source to ctx. The built-in controller
// prefers it over the data source resolved by routing.
func WithDataSource(ctx context.Context, src DataSource) context.Context {
	return handlers.WithDataSource(ctx, src)
}

// StartServerTiming starts a Server-Timing metric for the request context.
// It returns nil when Server-Timing is disabled; Stop is safe on nil.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return observability.StartServerTiming(ctx, name)
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
