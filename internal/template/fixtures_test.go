package template

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
)

type school struct {
	ID       int32
	Name     string
	Students []student `gorm:"foreignKey:SchoolID"`
}

type address struct {
	Street string
	City   string
}

type student struct {
	ID       int32
	Name     string
	SchoolID int32
	School   *school `gorm:"foreignKey:SchoolID"`
	Home     address `gorm:"embedded"`
}

type person struct {
	FirstName string `odata:"key"`
	LastName  string `odata:"key"`
	Age       int32
}

type vip struct {
	FirstName string
	LastName  string
	Age       int32
	Level     int32
}

type item struct {
	Code  string `odata:"key"`
	Price float64
}

func buildModel(t *testing.T) *metadata.Model {
	t.Helper()

	b := metadata.NewBuilder("NS")
	sets := []struct {
		name   string
		entity interface{}
	}{
		{"Students", student{}},
		{"Schools", school{}},
		{"People", person{}},
		{"Items", item{}},
	}
	for _, s := range sets {
		if _, err := b.AddEntitySet(s.name, s.entity); err != nil {
			t.Fatalf("AddEntitySet(%s) error = %v", s.name, err)
		}
	}
	if _, err := b.AddDerivedType(vip{}, person{}); err != nil {
		t.Fatalf("AddDerivedType() error = %v", err)
	}
	if _, err := b.AddSingleton("Principal", person{}); err != nil {
		t.Fatalf("AddSingleton() error = %v", err)
	}

	functions := []metadata.Operation{
		{
			Name: "GetGrade", IsBound: true, BindingType: "NS.student",
			Parameters: []metadata.Parameter{{Name: "term", Type: "Edm.String"}, {Name: "year", Type: "Edm.Int32", Optional: true}},
			ReturnType: "Edm.Double",
		},
		{
			Name: "GetGrade", IsBound: true, BindingType: "NS.student",
			Parameters: []metadata.Parameter{{Name: "term", Type: "Edm.String"}},
			ReturnType: "Edm.Double",
		},
		{
			Name: "TopStudents", IsBound: true, BindingType: "NS.student", BindingCollection: true,
			ReturnType: "NS.student", ReturnsCollection: true, EntitySet: "Students",
		},
		{
			Name:       "GetSchools",
			Parameters: []metadata.Parameter{{Name: "city", Type: "Edm.String", Optional: true}},
			ReturnType: "NS.school", ReturnsCollection: true, EntitySet: "Schools",
		},
	}
	for _, op := range functions {
		if err := b.AddFunction(op); err != nil {
			t.Fatalf("AddFunction(%s) error = %v", op.Name, err)
		}
	}
	if err := b.AddAction(metadata.Operation{Name: "Promote", IsBound: true, BindingType: "student"}); err != nil {
		t.Fatalf("AddAction(Promote) error = %v", err)
	}
	if err := b.AddAction(metadata.Operation{Name: "ResetData"}); err != nil {
		t.Fatalf("AddAction(ResetData) error = %v", err)
	}

	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return model
}

func newContext(model *metadata.Model, values map[string]string) *TranslateContext {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTranslateContext(context.Background(), model, routevalues.FromStrings(values), logger)
}
