package template

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/path"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
)

// Route value names read by the dynamic templates.
const (
	EntitySetRouteKey  = "entityset"
	KeyRouteKey        = "key"
	NavigationRouteKey = "navigation"
	PropertyRouteKey   = "property"
	ParameterRouteKey  = "parameter"
)

// URIValuePrefix marks updated route values that hold a path.ParameterValue,
// e.g. $key next to key.
const URIValuePrefix = "$"

var (
	// ErrNilContext is returned when a template is translated without a context.
	ErrNilContext = errors.New("translate context is nil")
	// ErrNilModel is returned when a template that reads the model runs without one.
	ErrNilModel = errors.New("translate context has no model")
)

// TranslateContext is the per-candidate state threaded through translation.
// It is created fresh for every candidate and never shared.
type TranslateContext struct {
	Context     context.Context
	Model       *metadata.Model
	RouteValues *routevalues.Values
	// Segments grows as templates translate, left to right.
	Segments []path.Segment
	// UpdatedValues collects typed route values to merge back after a match.
	UpdatedValues *routevalues.Values
	// Template is the route template literal the candidate was registered with.
	Template string
	Logger   *slog.Logger
}

// NewTranslateContext creates a context over the captured route values. The
// values are read, never written.
func NewTranslateContext(ctx context.Context, model *metadata.Model, values *routevalues.Values, logger *slog.Logger) *TranslateContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if values == nil {
		values = routevalues.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranslateContext{
		Context:       ctx,
		Model:         model,
		RouteValues:   values,
		UpdatedValues: routevalues.New(nil),
		Logger:        logger,
	}
}

// Previous returns the last translated segment, or nil.
func (c *TranslateContext) Previous() path.Segment {
	if len(c.Segments) == 0 {
		return nil
	}
	return c.Segments[len(c.Segments)-1]
}

func (c *TranslateContext) append(segments ...path.Segment) {
	c.Segments = append(c.Segments, segments...)
}

func (c *TranslateContext) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *TranslateContext) context() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

func (c *TranslateContext) debug(msg string, args ...any) {
	c.logger().DebugContext(c.context(), msg, args...)
}

func (c *TranslateContext) updated() *routevalues.Values {
	if c.UpdatedValues == nil {
		c.UpdatedValues = routevalues.New(nil)
	}
	return c.UpdatedValues
}

// checkContext validates the programmer-supplied parts of the context.
func checkContext(ctx *TranslateContext, needModel bool) error {
	if ctx == nil {
		return ErrNilContext
	}
	if needModel && ctx.Model == nil {
		return ErrNilModel
	}
	return nil
}
