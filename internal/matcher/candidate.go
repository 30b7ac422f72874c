package matcher

import (
	"net/http"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
	"github.com/nlstn/go-odata-routing/internal/template"
)

// DefaultDataSourceKey is the route value naming the data source of a dynamic route.
const DefaultDataSourceKey = "datasource"

// RoutingMetadata marks an endpoint as an OData endpoint and says how to
// resolve its model and path.
type RoutingMetadata struct {
	// Prefix is the route prefix the endpoint is mounted under.
	Prefix   string
	Template *template.PathTemplate
	// TemplateLiteral is the route template the endpoint was registered with.
	TemplateLiteral string

	// Model is a static model. When nil the model comes from a data source:
	// DataSource when set, otherwise the route value named DataSourceKey.
	Model         *metadata.Model
	DataSource    string
	DataSourceKey string
}

func (m *RoutingMetadata) dataSourceKey() string {
	if m.DataSourceKey == "" {
		return DefaultDataSourceKey
	}
	return m.DataSourceKey
}

// Candidate is one endpoint whose URL pattern matched the request.
type Candidate struct {
	Name    string
	Handler http.Handler
	// Values are the route values captured for this candidate.
	Values *routevalues.Values
	// Metadata is nil for endpoints that are not OData endpoints.
	Metadata *RoutingMetadata
}

// CandidateSet is the ordered list of candidates for one request. Candidates
// are never removed, only marked invalid.
type CandidateSet struct {
	candidates []*Candidate
	valid      []bool
}

// NewCandidateSet creates a set with every candidate valid.
func NewCandidateSet(candidates ...*Candidate) *CandidateSet {
	valid := make([]bool, len(candidates))
	for i := range valid {
		valid[i] = true
	}
	return &CandidateSet{candidates: candidates, valid: valid}
}

// Len returns the number of candidates, valid or not.
func (s *CandidateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candidates)
}

// At returns the i-th candidate.
func (s *CandidateSet) At(i int) *Candidate {
	return s.candidates[i]
}

// IsValid reports whether the i-th candidate is still selectable.
func (s *CandidateSet) IsValid(i int) bool {
	return s.valid[i]
}

// SetValid marks the i-th candidate valid or invalid.
func (s *CandidateSet) SetValid(i int, valid bool) {
	s.valid[i] = valid
}

// ValidCount returns the number of valid candidates.
func (s *CandidateSet) ValidCount() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.valid[i] {
			n++
		}
	}
	return n
}
