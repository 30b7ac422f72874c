package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricCandidates    = "odata.routing.candidates"
	MetricMatches       = "odata.routing.matches"
	MetricMatchDuration = "odata.routing.match.duration"
	MetricModelBuilds   = "odata.routing.model.builds"
)

// Metrics holds the instruments recorded by the matching policy.
type Metrics struct {
	candidates  metric.Int64Counter
	matches     metric.Int64Counter
	duration    metric.Float64Histogram
	modelBuilds metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	candidates, err := meter.Int64Counter(MetricCandidates,
		metric.WithDescription("Candidate endpoints evaluated by the OData matching policy"),
		metric.WithUnit("{candidate}"))
	if err != nil {
		return nil, err
	}
	matches, err := meter.Int64Counter(MetricMatches,
		metric.WithDescription("Requests for which an OData path was committed"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricMatchDuration,
		metric.WithDescription("Time spent matching candidate endpoints"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	modelBuilds, err := meter.Int64Counter(MetricModelBuilds,
		metric.WithDescription("EDM models built by data sources"),
		metric.WithUnit("{model}"))
	if err != nil {
		return nil, err
	}
	return &Metrics{candidates: candidates, matches: matches, duration: duration, modelBuilds: modelBuilds}, nil
}

// RecordCandidates counts evaluated candidates.
func (m *Metrics) RecordCandidates(ctx context.Context, n int) {
	if n > 0 {
		m.candidates.Add(ctx, int64(n))
	}
}

// RecordMatch counts a committed path and records the time spent matching.
func (m *Metrics) RecordMatch(ctx context.Context, dataSource string, matched bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(AttrDataSource.String(dataSource), AttrMatched.Bool(matched))
	if matched {
		m.matches.Add(ctx, 1, attrs)
	}
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// RecordModelBuild counts a model build of dataSource.
func (m *Metrics) RecordModelBuild(ctx context.Context, dataSource string, err error) {
	m.modelBuilds.Add(ctx, 1, metric.WithAttributes(
		AttrDataSource.String(dataSource),
		attribute.Bool("error", err != nil),
	))
}
