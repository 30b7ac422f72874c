package matcher

import (
	"context"
	"net/http"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/path"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
)

// Context keys for request-scoped values
type contextKey string

const featureKey contextKey = "odata_feature"

// Feature is the per-request slot the matching policy commits its result to.
// Handlers read the translated path, model and route values from it.
type Feature struct {
	Path  *path.Path
	Model *metadata.Model
	// Prefix is the route prefix of the committed endpoint, e.g. "odata".
	Prefix string
	// ServiceRoot is the path of the service root below the host: the prefix,
	// followed by the data source segment for dynamic routes.
	ServiceRoot string
	// DataSource names the data source the model came from, empty for static models.
	DataSource string
	// Values are the committed candidate's route values with the typed
	// translation results merged in.
	Values *routevalues.Values
	// Endpoint names the committed candidate.
	Endpoint string
}

// Matched reports whether a path has been committed.
func (f *Feature) Matched() bool {
	return f != nil && f.Path != nil
}

// WithFeature attaches f to the context.
func WithFeature(ctx context.Context, f *Feature) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, featureKey, f)
}

// FeatureFromContext retrieves the feature attached by WithFeature.
func FeatureFromContext(ctx context.Context) (*Feature, bool) {
	if ctx == nil {
		return nil, false
	}
	f, ok := ctx.Value(featureKey).(*Feature)
	if !ok || f == nil {
		return nil, false
	}
	return f, true
}

// FeatureFromRequest retrieves the feature of r.
func FeatureFromRequest(r *http.Request) (*Feature, bool) {
	if r == nil {
		return nil, false
	}
	return FeatureFromContext(r.Context())
}

// RequestWithFeature returns a shallow copy of r whose context carries a fresh feature.
func RequestWithFeature(r *http.Request) (*http.Request, *Feature) {
	f := &Feature{}
	return r.WithContext(WithFeature(r.Context(), f)), f
}
