package matcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/modelcache"
	"github.com/nlstn/go-odata-routing/internal/path"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
	"github.com/nlstn/go-odata-routing/internal/template"
)

type product struct {
	ID   int32
	Name string
}

type school struct {
	ID   int32
	Name string
}

type student struct {
	ID       int32
	SchoolID int32
	School   *school `gorm:"foreignKey:SchoolID"`
}

func productModel() (*metadata.Model, error) {
	b := metadata.NewBuilder("My")
	if _, err := b.AddEntitySet("Products", product{}); err != nil {
		return nil, err
	}
	return b.Build()
}

func schoolModel() (*metadata.Model, error) {
	b := metadata.NewBuilder("Another")
	if _, err := b.AddEntitySet("Students", student{}); err != nil {
		return nil, err
	}
	if _, err := b.AddEntitySet("Schools", school{}); err != nil {
		return nil, err
	}
	return b.Build()
}

// bothModel declares Products too, so the same URL translates under either source.
func bothModel() (*metadata.Model, error) {
	b := metadata.NewBuilder("Both")
	if _, err := b.AddEntitySet("Products", product{}); err != nil {
		return nil, err
	}
	return b.Build()
}

func newPolicy(t *testing.T) *Policy {
	t.Helper()
	p := NewPolicy(modelcache.New())
	p.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sources := map[string]modelcache.SourceFunc{
		"mydatasource":      productModel,
		"anotherdatasource": schoolModel,
		"bothdatasource":    bothModel,
	}
	for name, src := range sources {
		if err := p.AddSource(name, src); err != nil {
			t.Fatalf("AddSource(%s) error = %v", name, err)
		}
	}
	return p
}

func newRequest() *http.Request {
	r, _ := RequestWithFeature(httptest.NewRequest(http.MethodGet, "/odata/x", nil))
	return r
}

func dynamicCandidate(name, dataSource string, values map[string]string) *Candidate {
	return &Candidate{
		Name:   name,
		Values: routevalues.FromStrings(values),
		Metadata: &RoutingMetadata{
			Prefix:          "odata",
			DataSource:      dataSource,
			Template:        template.New(&template.EntitySetWithKeyTemplate{}, &template.NavigationRouteValueTemplate{}),
			TemplateLiteral: "{entityset}({key})/{navigation}",
		},
	}
}

func TestPolicy_CommitsPathAndMergesValues(t *testing.T) {
	p := newPolicy(t)
	r := newRequest()
	c := dynamicCandidate("students", "", map[string]string{
		"datasource": "AnotherDataSource", "entityset": "Students", "key": "101", "navigation": "School",
	})
	set := NewCandidateSet(c)

	if err := p.Apply(context.Background(), r, set); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	feature, _ := FeatureFromRequest(r)
	if !feature.Matched() {
		t.Fatal("Apply() did not commit a path")
	}
	if got := feature.Path.String(); got != "Students(101)/School" {
		t.Errorf("Path = %q, want Students(101)/School", got)
	}
	if feature.DataSource != "anotherdatasource" || feature.Prefix != "odata" || feature.Endpoint != "students" {
		t.Errorf("feature = %+v", feature)
	}
	if feature.ServiceRoot != "odata/AnotherDataSource" {
		t.Errorf("ServiceRoot = %q, want odata/AnotherDataSource", feature.ServiceRoot)
	}
	if feature.Model.Namespace() != "Another" {
		t.Errorf("Model.Namespace() = %q, want Another", feature.Model.Namespace())
	}
	if v, _ := c.Values.Get("key"); v != int32(101) {
		t.Errorf("merged key = %#v, want int32(101)", v)
	}
	if _, ok := c.Values.Get("$key"); !ok {
		t.Error("merged values lack $key")
	}
	if !set.IsValid(0) {
		t.Error("the committed candidate must stay valid")
	}
}

func TestPolicy_FirstMatchWins(t *testing.T) {
	p := newPolicy(t)
	values := map[string]string{"entityset": "Products", "key": "1"}
	pt := template.New(&template.EntitySetWithKeyTemplate{})
	first := &Candidate{Name: "my", Values: routevalues.FromStrings(values),
		Metadata: &RoutingMetadata{DataSource: "mydatasource", Template: pt}}
	second := &Candidate{Name: "both", Values: routevalues.FromStrings(values),
		Metadata: &RoutingMetadata{DataSource: "bothdatasource", Template: pt}}

	for run := 0; run < 3; run++ {
		r := newRequest()
		set := NewCandidateSet(first, second)
		if err := p.Apply(context.Background(), r, set); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		feature, _ := FeatureFromRequest(r)
		if feature.Endpoint != "my" || feature.Model.Namespace() != "My" {
			t.Errorf("run %d: committed %s (%s), want my", run, feature.Endpoint, feature.Model.Namespace())
		}
		if !set.IsValid(0) || set.IsValid(1) {
			t.Errorf("run %d: validity = %v, %v, want true, false", run, set.IsValid(0), set.IsValid(1))
		}
	}
}

func TestPolicy_InvalidatesCandidatesThatDoNotTranslate(t *testing.T) {
	p := newPolicy(t)
	r := newRequest()
	wrongSource := dynamicCandidate("wrong", "mydatasource", map[string]string{"entityset": "Students", "key": "1", "navigation": "School"})
	badKey := dynamicCandidate("badkey", "anotherdatasource", map[string]string{"entityset": "Students", "key": "'abc'", "navigation": "School"})
	set := NewCandidateSet(wrongSource, badKey)

	if err := p.Apply(context.Background(), r, set); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if feature, _ := FeatureFromRequest(r); feature.Matched() {
		t.Errorf("Apply() committed %v, want no match", feature.Path)
	}
	if set.ValidCount() != 0 {
		t.Errorf("ValidCount() = %d, want 0", set.ValidCount())
	}
}

func TestPolicy_LeavesUnresolvedCandidatesValid(t *testing.T) {
	p := newPolicy(t)
	r := newRequest()
	plain := &Candidate{Name: "health"}
	unknownSource := dynamicCandidate("unknown", "", map[string]string{"datasource": "nosuchsource", "entityset": "Students"})
	noSourceValue := dynamicCandidate("novalue", "", map[string]string{"entityset": "Students"})
	set := NewCandidateSet(plain, unknownSource, noSourceValue)

	if err := p.Apply(context.Background(), r, set); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if set.ValidCount() != 3 {
		t.Errorf("ValidCount() = %d, want 3", set.ValidCount())
	}
}

func TestPolicy_StaticModel(t *testing.T) {
	p := newPolicy(t)
	model, err := productModel()
	if err != nil {
		t.Fatalf("productModel() error = %v", err)
	}
	r := newRequest()
	c := &Candidate{Name: "static", Metadata: &RoutingMetadata{
		Model:    model,
		Template: template.New(&template.EntitySetTemplate{Name: "Products"}, &template.CountTemplate{}),
	}}
	if err := p.Apply(context.Background(), r, NewCandidateSet(c)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	feature, _ := FeatureFromRequest(r)
	if !feature.Matched() || feature.Path.Last().Kind() != path.KindCount {
		t.Fatalf("feature = %+v", feature)
	}
	if feature.Path.Template() != "Products/$count" {
		t.Errorf("Template() = %q, want Products/$count", feature.Path.Template())
	}
}

func TestPolicy_SkipsWhenAlreadyMatched(t *testing.T) {
	p := newPolicy(t)
	r := newRequest()
	feature, _ := FeatureFromRequest(r)
	feature.Path = path.New("$metadata", []path.Segment{path.MetadataSegment{}})

	set := NewCandidateSet(dynamicCandidate("students", "anotherdatasource",
		map[string]string{"entityset": "Students", "key": "1", "navigation": "School"}))
	if err := p.Apply(context.Background(), r, set); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if feature.Path.Template() != "$metadata" || !set.IsValid(0) {
		t.Error("Apply() must not touch a request that already has a path")
	}
}

type brokenTemplate struct{}

func (brokenTemplate) Kind() path.Kind     { return path.KindEntitySet }
func (brokenTemplate) Templates() []string { return []string{"broken"} }
func (brokenTemplate) TryTranslate(*template.TranslateContext) (bool, error) {
	return false, errBroken
}

var errBroken = errors.New("broken integration")

func TestPolicy_PropagatesErrors(t *testing.T) {
	p := newPolicy(t)
	model, _ := productModel()
	c := &Candidate{Name: "broken", Metadata: &RoutingMetadata{Model: model, Template: template.New(brokenTemplate{})}}

	err := p.Apply(context.Background(), newRequest(), NewCandidateSet(c))
	if !errors.Is(err, errBroken) {
		t.Errorf("Apply() error = %v, want errBroken", err)
	}

	if err := p.Apply(context.Background(), nil, NewCandidateSet()); !errors.Is(err, ErrNilRequest) {
		t.Errorf("Apply(nil request) error = %v, want ErrNilRequest", err)
	}
	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := p.Apply(context.Background(), bare, NewCandidateSet()); !errors.Is(err, ErrNoFeature) {
		t.Errorf("Apply(no feature) error = %v, want ErrNoFeature", err)
	}
}

func TestPolicy_AddSource(t *testing.T) {
	p := NewPolicy(nil)
	if err := p.AddSource("ds", modelcache.SourceFunc(productModel)); err != nil {
		t.Fatalf("AddSource() error = %v", err)
	}
	if err := p.AddSource("DS", modelcache.SourceFunc(productModel)); err == nil {
		t.Error("AddSource() should reject a name differing only in case")
	}
	if err := p.AddSource("", modelcache.SourceFunc(productModel)); err == nil {
		t.Error("AddSource() should reject an empty name")
	}
	if p.Order() != PolicyOrder {
		t.Errorf("Order() = %d, want %d", p.Order(), PolicyOrder)
	}
	if p.AppliesToEndpoints(NewCandidateSet(&Candidate{Name: "plain"})) {
		t.Error("AppliesToEndpoints() = true for a set without OData endpoints")
	}
}
