package observability

import (
	"context"
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingRoute is the Server-Timing metric written for route matching.
const ServerTimingRoute = "odata-route"

// ServerTimingMetric times one operation for the Server-Timing header. A nil
// metric is valid and does nothing.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

// StartServerTiming starts a metric when ctx carries a Server-Timing header,
// which is the case for requests passed through Middleware.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	return StartServerTimingWithDesc(ctx, name, "")
}

// StartServerTimingWithDesc starts a metric with a description.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	header := servertiming.FromContext(ctx)
	if header == nil {
		return nil
	}
	m := header.NewMetric(name)
	if description != "" {
		m = m.WithDesc(description)
	}
	return &ServerTimingMetric{metric: m.Start()}
}

// Stop ends the metric.
func (m *ServerTimingMetric) Stop() {
	if m == nil || m.metric == nil {
		return
	}
	m.metric.Stop()
}

// Middleware wraps next so that Server-Timing metrics are collected and written.
// It returns next unchanged when Server-Timing is disabled.
func (c *Config) Middleware(next http.Handler) http.Handler {
	if !c.ServerTimingEnabled() {
		return next
	}
	return servertiming.Middleware(next, nil)
}
