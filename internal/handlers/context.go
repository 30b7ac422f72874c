package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nlstn/go-odata-routing/internal/datasource"
	"github.com/nlstn/go-odata-routing/internal/matcher"
	"github.com/nlstn/go-odata-routing/internal/response"
)

// Error messages used in handler responses
const (
	ErrMsgMethodNotAllowed = "Method not allowed"
	ErrMsgEntityNotFound   = "Entity not found"
	ErrMsgNoPath           = "Request was not routed to an OData path"
	ErrMsgUnknownSource    = "Unknown data source"
	ErrMsgNotImplemented   = "Path is not supported"
	ErrMsgDatabaseError    = "Database error"
)

// Context keys for request-scoped values
type contextKey string

const dataSourceKey contextKey = "odata_datasource"

// SourceLookup resolves a data source by name.
type SourceLookup func(name string) (datasource.DataSource, bool)

// WithDataSource attaches the data source serving the request to the context.
func WithDataSource(ctx context.Context, src datasource.DataSource) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, dataSourceKey, src)
}

// DataSourceFromContext retrieves the data source attached by WithDataSource.
func DataSourceFromContext(ctx context.Context) (datasource.DataSource, bool) {
	if ctx == nil {
		return nil, false
	}
	src, ok := ctx.Value(dataSourceKey).(datasource.DataSource)
	if !ok || src == nil {
		return nil, false
	}
	return src, true
}

// committedFeature returns the feature of r when a path has been committed,
// writing a 404 otherwise.
func committedFeature(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*matcher.Feature, bool) {
	feature, ok := matcher.FeatureFromRequest(r)
	if !ok || !feature.Matched() {
		writeError(w, r, logger, http.StatusNotFound, ErrMsgNoPath, r.URL.Path)
		return nil, false
	}
	return feature, true
}

// allowRead rejects everything except GET and HEAD.
func allowRead(w http.ResponseWriter, r *http.Request, logger *slog.Logger) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeError(w, r, logger, http.StatusMethodNotAllowed, ErrMsgMethodNotAllowed,
		"Method "+r.Method+" is not supported for this resource")
	return false
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, message, details string) {
	if err := response.WriteError(w, r, status, message, details); err != nil {
		logger.Error("Error writing error response", "error", err)
	}
}
