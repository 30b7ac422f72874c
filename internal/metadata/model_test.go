package metadata

import (
	"bytes"
	"strings"
	"testing"
)

type testPerson struct {
	ID   int32
	Name string
}

type testVip struct {
	ID    int32
	Name  string
	Level int32
}

func buildSchoolModel(t *testing.T) *Model {
	t.Helper()

	b := NewBuilder("NS")
	if _, err := b.AddEntitySet("Students", testStudent{}); err != nil {
		t.Fatalf("AddEntitySet(Students) error = %v", err)
	}
	if _, err := b.AddEntitySet("Schools", testSchool{}); err != nil {
		t.Fatalf("AddEntitySet(Schools) error = %v", err)
	}
	if _, err := b.AddSingleton("Principal", testPerson{}); err != nil {
		t.Fatalf("AddSingleton() error = %v", err)
	}
	if _, err := b.AddDerivedType(testVip{}, testPerson{}); err != nil {
		t.Fatalf("AddDerivedType() error = %v", err)
	}
	if err := b.AddFunction(Operation{
		Name:        "GetGrade",
		IsBound:     true,
		BindingType: "NS.testStudent",
		Parameters:  []Parameter{{Name: "term", Type: "Edm.String"}, {Name: "year", Type: "Edm.Int32", Optional: true}},
		ReturnType:  "Edm.Double",
	}); err != nil {
		t.Fatalf("AddFunction() error = %v", err)
	}
	if err := b.AddAction(Operation{Name: "ResetData"}); err != nil {
		t.Fatalf("AddAction() error = %v", err)
	}

	model, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return model
}

func TestModel_FindEntitySetIgnoresCase(t *testing.T) {
	model := buildSchoolModel(t)

	for _, name := range []string{"STUDENTS", "students", "Students"} {
		set, ok := model.FindEntitySet(name)
		if !ok {
			t.Fatalf("FindEntitySet(%q) not found", name)
		}
		if set.Name != "Students" {
			t.Errorf("FindEntitySet(%q).Name = %q, want Students", name, set.Name)
		}
	}
	if _, ok := model.FindEntitySet("Teachers"); ok {
		t.Error("FindEntitySet(Teachers) should not be found")
	}
	if _, ok := model.FindSingleton("principal"); !ok {
		t.Error("FindSingleton(principal) should ignore case")
	}
}

func TestModel_NavigationTarget(t *testing.T) {
	model := buildSchoolModel(t)
	students, _ := model.FindEntitySet("Students")

	nav := students.EntityType.FindNavigationProperty("School")
	target, ok := model.NavigationTarget(students, nav)
	if !ok {
		t.Fatal("NavigationTarget(School) not resolved")
	}
	if target.Name != "Schools" {
		t.Errorf("NavigationTarget(School) = %q, want Schools", target.Name)
	}
	if _, ok := model.NavigationTarget(students, students.EntityType.FindProperty("Name")); ok {
		t.Error("NavigationTarget of a structural property should fail")
	}
}

func TestModel_DerivedTypesAndOperations(t *testing.T) {
	model := buildSchoolModel(t)

	person, ok := model.FindEntityType("NS.testPerson")
	if !ok {
		t.Fatal("FindEntityType(NS.testPerson) not found")
	}
	vip, ok := model.FindEntityType("testVip")
	if !ok {
		t.Fatal("FindEntityType(testVip) not found")
	}
	if !model.IsDerivedFrom(vip, person) {
		t.Error("testVip should derive from testPerson")
	}
	if model.IsDerivedFrom(person, vip) {
		t.Error("testPerson must not derive from testVip")
	}
	if names := vip.KeyNames(); len(names) != 1 || names[0] != "ID" {
		t.Errorf("derived KeyNames() = %v, want inherited [ID]", names)
	}

	student, _ := model.FindEntityType("testStudent")
	ops := model.FindBoundOperations("NS.GetGrade", student, false, false)
	if len(ops) != 1 {
		t.Fatalf("FindBoundOperations() = %d operations, want 1", len(ops))
	}
	if got := ops[0].RequiredParameterNames(); len(got) != 1 || got[0] != "term" {
		t.Errorf("RequiredParameterNames() = %v, want [term]", got)
	}
	if len(model.FindBoundOperations("GetGrade", student, true, false)) != 0 {
		t.Error("collection-bound lookup should not find an entity-bound function")
	}
	if len(model.FindOperationImports("ResetData", true)) != 1 {
		t.Error("FindOperationImports(ResetData) should find the action import")
	}
}

func TestModel_CSDLAndFingerprint(t *testing.T) {
	first := buildSchoolModel(t)
	second := buildSchoolModel(t)

	if first.Fingerprint() != second.Fingerprint() {
		t.Error("equal registrations should produce equal fingerprints")
	}
	if !bytes.Equal(first.CSDL(), second.CSDL()) {
		t.Error("CSDL rendering should be deterministic")
	}
	if !strings.HasPrefix(first.ETag(), `W/"`) {
		t.Errorf("ETag() = %q, want a weak tag", first.ETag())
	}

	doc := string(first.CSDL())
	for _, want := range []string{
		`<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">`,
		`<Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="NS">`,
		`<EntitySet Name="Students" EntityType="NS.testStudent">`,
		`<NavigationPropertyBinding Path="School" Target="Schools">`,
		`<NavigationProperty Name="School" Type="NS.testSchool">`,
		`<EntityType Name="testVip" BaseType="NS.testPerson">`,
		`<Singleton Name="Principal" Type="NS.testPerson">`,
		`<ActionImport Name="ResetData" Action="NS.ResetData">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("CSDL missing %s", want)
		}
	}
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("duplicate entity set", func(t *testing.T) {
		b := NewBuilder("NS")
		if _, err := b.AddEntitySet("Schools", testSchool{}); err != nil {
			t.Fatalf("AddEntitySet() error = %v", err)
		}
		if _, err := b.AddEntitySet("SCHOOLS", testSchool{}); err == nil {
			t.Error("AddEntitySet() should reject a name differing only in case")
		}
	})

	t.Run("unregistered navigation target", func(t *testing.T) {
		b := NewBuilder("NS")
		if _, err := b.AddEntitySet("Students", testStudent{}); err != nil {
			t.Fatalf("AddEntitySet() error = %v", err)
		}
		if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "unregistered entity type") {
			t.Errorf("Build() error = %v, want unregistered entity type", err)
		}
	})

	t.Run("unknown binding type", func(t *testing.T) {
		b := NewBuilder("NS")
		if _, err := b.AddEntitySet("Schools", testSchool{}); err != nil {
			t.Fatalf("AddEntitySet() error = %v", err)
		}
		if err := b.AddFunction(Operation{Name: "F", IsBound: true, BindingType: "NS.Nope"}); err != nil {
			t.Fatalf("AddFunction() error = %v", err)
		}
		if _, err := b.Build(); err == nil {
			t.Error("Build() should reject an operation bound to an unknown type")
		}
	})

	t.Run("duplicate parameter", func(t *testing.T) {
		b := NewBuilder("NS")
		err := b.AddFunction(Operation{Name: "F", Parameters: []Parameter{{Name: "a"}, {Name: "A"}}})
		if err == nil {
			t.Error("AddFunction() should reject duplicate parameter names")
		}
	})

	t.Run("empty model", func(t *testing.T) {
		if _, err := NewBuilder("").Build(); err == nil {
			t.Error("Build() of an empty model should fail")
		}
	})
}
