// Package router is the host routing layer: it matches request paths against
// the registered route templates, hands the candidates to the selector
// policies and dispatches to the endpoint that survives.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/nlstn/go-odata-routing/internal/matcher"
	"github.com/nlstn/go-odata-routing/internal/response"
	"github.com/nlstn/go-odata-routing/internal/routepattern"
)

// Error messages written by the router.
const (
	ErrMsgNotFound         = "No endpoint matches the request"
	ErrMsgMethodNotAllowed = "Method not allowed"
	ErrMsgRoutingFailed    = "Routing failed"
)

// SelectorPolicy narrows the candidate set of a request. Policies run in
// ascending Order; Apply marks candidates invalid and may commit request state.
type SelectorPolicy interface {
	Order() int
	AppliesToEndpoints(candidates *matcher.CandidateSet) bool
	Apply(ctx context.Context, r *http.Request, candidates *matcher.CandidateSet) error
}

// Endpoint is one registered route.
type Endpoint struct {
	Name string
	// Methods lists the accepted HTTP methods. Empty accepts every method.
	Methods []string
	Pattern *routepattern.Pattern
	Handler http.Handler
	// Metadata is set for OData endpoints.
	Metadata *matcher.RoutingMetadata
}

func (e *Endpoint) accepts(method string) bool {
	if len(e.Methods) == 0 {
		return true
	}
	for _, m := range e.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Router dispatches requests to endpoints. Registration is not safe
// concurrently with serving.
type Router struct {
	endpoints []*Endpoint
	policies  []SelectorPolicy
	logger    *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// SetLogger sets the logger. nil selects slog.Default().
func (rt *Router) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	rt.logger = logger
}

// Add registers an endpoint. Endpoints are kept ordered by route precedence;
// endpoints of equal precedence keep their registration order.
func (rt *Router) Add(e *Endpoint) error {
	if e == nil || e.Pattern == nil || e.Handler == nil {
		return fmt.Errorf("endpoint requires a pattern and a handler")
	}
	if e.Name == "" {
		e.Name = e.Pattern.String()
	}
	rt.endpoints = append(rt.endpoints, e)
	routepattern.SortStable(rt.endpoints, func(e *Endpoint) *routepattern.Pattern { return e.Pattern })
	return nil
}

// AddPolicy registers a selector policy.
func (rt *Router) AddPolicy(p SelectorPolicy) {
	rt.policies = append(rt.policies, p)
	sort.SliceStable(rt.policies, func(i, j int) bool {
		return rt.policies[i].Order() < rt.policies[j].Order()
	})
}

// Endpoints returns the registered endpoints in match order.
func (rt *Router) Endpoints() []*Endpoint {
	return append([]*Endpoint(nil), rt.endpoints...)
}

// Candidates returns the endpoints whose pattern and method match r, in
// precedence order. pathMatched reports whether any pattern matched the path
// regardless of the method.
func (rt *Router) Candidates(r *http.Request) (set *matcher.CandidateSet, pathMatched bool) {
	var candidates []*matcher.Candidate
	urlPath := r.URL.EscapedPath()
	for _, e := range rt.endpoints {
		values, ok := e.Pattern.Match(urlPath)
		if !ok {
			continue
		}
		pathMatched = true
		if !e.accepts(r.Method) {
			continue
		}
		candidates = append(candidates, &matcher.Candidate{
			Name:     e.Name,
			Handler:  e.Handler,
			Values:   values,
			Metadata: e.Metadata,
		})
	}
	return matcher.NewCandidateSet(candidates...), pathMatched
}

// ServeHTTP selects and runs the endpoint for r.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r, feature := matcher.RequestWithFeature(r)

	candidates, pathMatched := rt.Candidates(r)
	if candidates.Len() == 0 {
		if pathMatched {
			rt.writeError(w, r, http.StatusMethodNotAllowed, ErrMsgMethodNotAllowed,
				fmt.Sprintf("Method %s is not supported for %s", r.Method, r.URL.Path))
			return
		}
		rt.writeError(w, r, http.StatusNotFound, ErrMsgNotFound, r.URL.Path)
		return
	}

	for _, p := range rt.policies {
		if !p.AppliesToEndpoints(candidates) {
			continue
		}
		if err := p.Apply(r.Context(), r, candidates); err != nil {
			rt.logger.ErrorContext(r.Context(), "Selector policy failed", "path", r.URL.Path, "error", err)
			rt.writeError(w, r, http.StatusInternalServerError, ErrMsgRoutingFailed, err.Error())
			return
		}
	}

	for i := 0; i < candidates.Len(); i++ {
		if !candidates.IsValid(i) {
			continue
		}
		c := candidates.At(i)
		if feature.Values == nil {
			feature.Values = c.Values
			feature.Endpoint = c.Name
		}
		rt.logger.DebugContext(r.Context(), "Dispatching request", "endpoint", c.Name, "path", r.URL.Path)
		c.Handler.ServeHTTP(w, r)
		return
	}

	rt.writeError(w, r, http.StatusNotFound, ErrMsgNotFound, r.URL.Path)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	if err := response.WriteError(w, r, status, message, details); err != nil {
		rt.logger.Error("Error writing error response", "error", err)
	}
}
