package path

import (
	"reflect"
	"testing"
	"time"

	"github.com/nlstn/go-odata-routing/internal/metadata"
)

type school struct {
	ID   int32
	Name string
}

type student struct {
	ID       int32
	SchoolID int32
	School   *school `gorm:"foreignKey:SchoolID"`
}

type person struct {
	FirstName string `odata:"key"`
	LastName  string `odata:"key"`
}

func testModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewBuilder("NS")
	for name, entity := range map[string]interface{}{"Students": student{}, "Schools": school{}, "People": person{}} {
		if _, err := b.AddEntitySet(name, entity); err != nil {
			t.Fatalf("AddEntitySet(%s) error = %v", name, err)
		}
	}
	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return model
}

func TestPath_StringAndKinds(t *testing.T) {
	model := testModel(t)
	students, _ := model.FindEntitySet("Students")
	schools, _ := model.FindEntitySet("Schools")
	nav := students.EntityType.FindNavigationProperty("School")

	p := New("{entityset}({key})/{navigation}", []Segment{
		&EntitySetSegment{EntitySet: students},
		&KeySegment{Keys: map[string]any{"ID": int32(101)}, EntityType: students.EntityType, EntitySet: students},
		&NavigationSegment{Property: nav, Source: students.EntityType, Target: schools, TargetType: schools.EntityType},
	})

	if got := p.String(); got != "Students(101)/School" {
		t.Errorf("String() = %q, want Students(101)/School", got)
	}
	want := []Kind{KindEntitySet, KindKey, KindNavigation}
	if got := p.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
	if p.Template() != "{entityset}({key})/{navigation}" {
		t.Errorf("Template() = %q", p.Template())
	}
	if p.Last().EdmType() != "NS.school" {
		t.Errorf("Last().EdmType() = %q, want NS.school", p.Last().EdmType())
	}
	if p.At(0).EdmType() != "Collection(NS.student)" {
		t.Errorf("At(0).EdmType() = %q, want Collection(NS.student)", p.At(0).EdmType())
	}

	entityType, collection, ok := EntityTypeOf(p.At(1))
	if !ok || collection || entityType != students.EntityType {
		t.Errorf("EntityTypeOf(key) = %v, %v, %v", entityType, collection, ok)
	}
	if NavigationSourceOf(p.Last()) != schools {
		t.Error("NavigationSourceOf(navigation) should be the target set")
	}
}

func TestPath_SegmentsIsACopy(t *testing.T) {
	p := New("", []Segment{MetadataSegment{}})
	segs := p.Segments()
	segs[0] = CountSegment{}
	if p.At(0).Kind() != KindMetadata {
		t.Error("mutating Segments() must not change the path")
	}
}

func TestFormatKeys(t *testing.T) {
	model := testModel(t)
	people, _ := model.FindEntitySet("People")

	got := FormatKeys(people.EntityType, map[string]any{"LastName": "O'Neil", "FirstName": "Ann"})
	if got != "FirstName='Ann',LastName='O''Neil'" {
		t.Errorf("FormatKeys() = %q", got)
	}
}

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{int32(42), "42"},
		{"abc", "'abc'"},
		{true, "true"},
		{1.5, "1.5"},
		{90 * time.Second, "duration'PT90S'"},
		{nil, "null"},
	}
	for _, tt := range tests {
		if got := FormatLiteral(tt.in); got != tt.want {
			t.Errorf("FormatLiteral(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindNavigationLink.String() != "NavigationLink" {
		t.Errorf("KindNavigationLink.String() = %q", KindNavigationLink.String())
	}
	if Kind(99).String() != "Unknown" {
		t.Errorf("Kind(99).String() = %q, want Unknown", Kind(99).String())
	}
}
