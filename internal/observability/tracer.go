package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRouteMatch = "odata.routing.match"
	SpanModelBuild = "odata.routing.model_build"
)

// Attribute keys.
const (
	AttrServiceName  = attribute.Key("service.name")
	AttrHTTPMethod   = attribute.Key("http.request.method")
	AttrURLPath      = attribute.Key("url.path")
	AttrCandidates   = attribute.Key("odata.routing.candidates")
	AttrTemplate     = attribute.Key("odata.routing.template")
	AttrODataPath    = attribute.Key("odata.path")
	AttrDataSource   = attribute.Key("odata.datasource")
	AttrMatched      = attribute.Key("odata.routing.matched")
	AttrSegmentCount = attribute.Key("odata.path.segments")
)

// Tracer starts the spans emitted around route matching.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

func newTracer(t trace.Tracer, serviceName string) *Tracer {
	return &Tracer{tracer: t, serviceName: serviceName}
}

// StartRouteMatch starts the span covering one application of the matching
// policy to a request.
func (t *Tracer) StartRouteMatch(ctx context.Context, method, urlPath string, candidates int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRouteMatch,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrServiceName.String(t.serviceName),
			AttrHTTPMethod.String(method),
			AttrURLPath.String(urlPath),
			AttrCandidates.Int(candidates),
		),
	)
}

// StartModelBuild starts the span covering the first build of a data source model.
func (t *Tracer) StartModelBuild(ctx context.Context, dataSource string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanModelBuild,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrServiceName.String(t.serviceName), AttrDataSource.String(dataSource)),
	)
}

// RecordMatch annotates span with the committed template and path.
func RecordMatch(span trace.Span, template, odataPath string, segments int) {
	span.SetAttributes(
		AttrMatched.Bool(true),
		AttrTemplate.String(template),
		AttrODataPath.String(odataPath),
		AttrSegmentCount.Int(segments),
	)
}

// RecordError marks span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
