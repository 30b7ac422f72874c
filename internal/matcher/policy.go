// Package matcher selects the OData endpoint for a request: it translates the
// route values of every candidate endpoint into an OData path and commits the
// first one that translates.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/modelcache"
	"github.com/nlstn/go-odata-routing/internal/observability"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
	"github.com/nlstn/go-odata-routing/internal/template"
	"golang.org/x/text/cases"
)

// PolicyOrder places the OData policy before the other selector policies of the router.
const PolicyOrder = -1000

var (
	// ErrNilRequest is returned when the policy is applied without a request.
	ErrNilRequest = errors.New("request is nil")
	// ErrNoFeature is returned when the request carries no Feature to commit to.
	ErrNoFeature = errors.New("request has no OData feature")
)

type namedSource struct {
	name   string
	source modelcache.Source
}

// Policy is the endpoint selector policy that commits OData paths. A Policy is
// configured once and then safe for concurrent use.
type Policy struct {
	sources map[string]namedSource
	cache   *modelcache.Cache
	logger  *slog.Logger
	obs     *observability.Config
}

// NewPolicy creates a policy resolving data source models through cache. A nil
// cache gets a private one.
func NewPolicy(cache *modelcache.Cache) *Policy {
	if cache == nil {
		cache = modelcache.New()
	}
	return &Policy{
		sources: make(map[string]namedSource),
		cache:   cache,
		logger:  slog.Default(),
	}
}

// AddSource registers the model source of a data source under name.
func (p *Policy) AddSource(name string, src modelcache.Source) error {
	if name == "" {
		return fmt.Errorf("data source name cannot be empty")
	}
	if src == nil {
		return fmt.Errorf("data source %s is nil", name)
	}
	k := cases.Fold().String(name)
	if existing, ok := p.sources[k]; ok {
		return fmt.Errorf("data source %s is already registered as %s", name, existing.name)
	}
	p.sources[k] = namedSource{name: name, source: src}
	return nil
}

// SetLogger sets the logger. nil selects slog.Default().
func (p *Policy) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
	p.cache.SetLogger(logger)
}

// SetObservability enables tracing, metrics and Server-Timing for Apply.
func (p *Policy) SetObservability(cfg *observability.Config) {
	p.obs = cfg
	p.cache.SetObservability(cfg)
}

// Order returns PolicyOrder.
func (p *Policy) Order() int { return PolicyOrder }

// AppliesToEndpoints reports whether any candidate is an OData endpoint.
func (p *Policy) AppliesToEndpoints(candidates *CandidateSet) bool {
	for i := 0; i < candidates.Len(); i++ {
		if candidates.At(i).Metadata != nil {
			return true
		}
	}
	return false
}

// Apply translates the valid candidates in order. The first candidate whose
// template translates is committed to the request's Feature and every other
// candidate is invalidated. Candidates that do not translate are invalidated;
// candidates without OData metadata, or whose model cannot be resolved, are
// left untouched. Only a broken setup yields an error.
func (p *Policy) Apply(ctx context.Context, r *http.Request, candidates *CandidateSet) error {
	if r == nil {
		return ErrNilRequest
	}
	if ctx == nil {
		ctx = r.Context()
	}
	feature, ok := FeatureFromRequest(r)
	if !ok {
		return ErrNoFeature
	}
	if feature.Matched() {
		return nil
	}

	start := time.Now()
	ctx, span := p.obs.Tracer().StartRouteMatch(ctx, r.Method, r.URL.Path, candidates.Len())
	defer span.End()
	timing := observability.StartServerTimingWithDesc(r.Context(), observability.ServerTimingRoute, "OData route matching")
	defer timing.Stop()

	evaluated := 0
	committed := -1
	for i := 0; i < candidates.Len() && committed < 0; i++ {
		if !candidates.IsValid(i) {
			continue
		}
		c := candidates.At(i)
		md := c.Metadata
		if md == nil || md.Template == nil {
			continue
		}

		model, dataSource, ok := p.resolveModel(ctx, c)
		if !ok {
			p.logger.DebugContext(ctx, "No model for candidate", "endpoint", c.Name, "datasource", dataSource)
			continue
		}
		evaluated++

		tctx := template.NewTranslateContext(ctx, model, c.Values, p.logger)
		tctx.Template = md.TemplateLiteral
		odataPath, err := md.Template.Translate(tctx)
		if err != nil {
			observability.RecordError(span, err)
			return fmt.Errorf("failed to translate candidate %s: %w", c.Name, err)
		}
		if odataPath == nil {
			p.logger.DebugContext(ctx, "Candidate did not translate", "endpoint", c.Name, "template", md.TemplateLiteral)
			candidates.SetValid(i, false)
			continue
		}

		if c.Values == nil {
			c.Values = routevalues.New(nil)
		}
		c.Values.Merge(tctx.UpdatedValues)

		feature.Path = odataPath
		feature.Model = model
		feature.Prefix = md.Prefix
		feature.ServiceRoot = serviceRoot(md, c.Values)
		feature.DataSource = dataSource
		feature.Values = c.Values
		feature.Endpoint = c.Name
		committed = i

		observability.RecordMatch(span, odataPath.Template(), odataPath.String(), odataPath.Len())
		p.logger.DebugContext(ctx, "OData path committed",
			"endpoint", c.Name, "path", odataPath.String(), "template", odataPath.Template(), "datasource", dataSource)
	}

	if committed >= 0 {
		for i := 0; i < candidates.Len(); i++ {
			if i != committed {
				candidates.SetValid(i, false)
			}
		}
	}

	metrics := p.obs.Metrics()
	metrics.RecordCandidates(ctx, evaluated)
	metrics.RecordMatch(ctx, feature.DataSource, committed >= 0, time.Since(start))
	return nil
}

// serviceRoot keeps the data source segment as the client spelled it.
func serviceRoot(md *RoutingMetadata, values *routevalues.Values) string {
	if md.Model != nil || md.DataSource != "" {
		return strings.Trim(md.Prefix, "/")
	}
	name, _ := values.String(md.dataSourceKey())
	return strings.Trim(strings.Trim(md.Prefix, "/")+"/"+name, "/")
}

// resolveModel returns the model of c: its static model, or the model of the
// data source it names. ok is false when no model resolves.
func (p *Policy) resolveModel(ctx context.Context, c *Candidate) (*metadata.Model, string, bool) {
	md := c.Metadata
	if md.Model != nil {
		return md.Model, md.DataSource, true
	}

	name := md.DataSource
	if name == "" {
		var ok bool
		if name, ok = c.Values.String(md.dataSourceKey()); !ok || name == "" {
			return nil, "", false
		}
	}

	src, ok := p.sources[cases.Fold().String(name)]
	if !ok {
		return nil, name, false
	}
	model, err := p.cache.Get(ctx, src.name, src.source)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to resolve data source model", "datasource", src.name, "error", err)
		return nil, src.name, false
	}
	return model, src.name, true
}
