package constraints

import (
	"testing"

	"github.com/nlstn/go-odata-routing/internal/routevalues"
)

func TestParameterConstraint_OrderIndependent(t *testing.T) {
	tests := []struct {
		name    string
		literal string
		want    bool
	}{
		{"declared order", "orgId='abc',depId=123", true},
		{"reversed order", "depId=123,orgId='abc'", true},
		{"different case", "DEPID=123,OrgId='abc'", true},
		{"extra name", "depId=123,orgId='abc',extra=1", false},
		{"missing name", "depId=123", false},
		{"unnamed value", "123", false},
		{"duplicate name hides a missing one", "depId=1,DEPID=2", false},
		{"malformed", "depId=123,", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := routevalues.FromStrings(map[string]string{"parameter": tt.literal})
			got := MatchParameters(values, "parameter", []string{"orgId", "depId"})
			if got != tt.want {
				t.Fatalf("MatchParameters(%q) = %v, want %v", tt.literal, got, tt.want)
			}
			if !got {
				if values.Has("orgId") || values.Has("depId") {
					t.Error("a failed match must not write values")
				}
				return
			}
			if org, _ := values.String("orgId"); org != "'abc'" {
				t.Errorf("orgId = %q, want 'abc'", org)
			}
			if dep, _ := values.String("depId"); dep != "123" {
				t.Errorf("depId = %q, want 123", dep)
			}
		})
	}
}

func TestKeyConstraint_UnnamedBindsToSingleDeclaredName(t *testing.T) {
	values := routevalues.FromStrings(map[string]string{"key": "'abc'"})

	if !MatchKeys(values, "key", []string{"ID"}) {
		t.Fatal("MatchKeys('abc', [ID]) = false, want true")
	}
	got, ok := values.String("ID")
	if !ok || got != "'abc'" {
		t.Errorf("ID = %q, want the raw literal 'abc'", got)
	}
}

func TestKeyConstraint(t *testing.T) {
	tests := []struct {
		name     string
		literal  string
		declared []string
		want     bool
	}{
		{"named single key", "ID=5", []string{"ID"}, true},
		{"composite key", "LastName='b',FirstName='a'", []string{"FirstName", "LastName"}, true},
		{"composite key missing part", "FirstName='a'", []string{"FirstName", "LastName"}, false},
		{"unnamed against composite", "'a'", []string{"FirstName", "LastName"}, false},
		{"unnamed with empty declared set", "42", nil, true},
		{"named with empty declared set", "ID=42", nil, false},
		{"wrong name", "Code=5", []string{"ID"}, false},
		{"unterminated quote", "'abc", []string{"ID"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := routevalues.FromStrings(map[string]string{"key": tt.literal})
			if got := MatchKeys(values, "key", tt.declared); got != tt.want {
				t.Errorf("MatchKeys(%q, %v) = %v, want %v", tt.literal, tt.declared, got, tt.want)
			}
		})
	}
}

func TestKeyConstraint_MissingRouteValue(t *testing.T) {
	if MatchKeys(routevalues.New(nil), "key", []string{"ID"}) {
		t.Error("MatchKeys without a captured value = true, want false")
	}
	if MatchKeys(nil, "key", []string{"ID"}) {
		t.Error("MatchKeys(nil) = true, want false")
	}
}

func TestFragments(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{KeyFragment("key", "p1", "p2"), "{key:odatakeys(p1;p2)}"},
		{KeyFragment("key"), "{key:odatakeys()}"},
		{ParameterFragment("parameter", "orgId", "depId"), "{parameter:odataparams(orgId;depId)}"},
		{ParameterFragment("parameter"), "{parameter:odataparams()}"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("fragment = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	c, err := Resolve("odatakeys", []string{"FirstName", " LastName "})
	if err != nil {
		t.Fatalf("Resolve(odatakeys) error = %v", err)
	}
	key, ok := c.(KeyConstraint)
	if !ok {
		t.Fatalf("Resolve(odatakeys) = %T, want KeyConstraint", c)
	}
	if len(key.Declared) != 2 || key.Declared[1] != "LastName" {
		t.Errorf("Declared = %v, want [FirstName LastName]", key.Declared)
	}

	c, err = Resolve("odataparams", []string{""})
	if err != nil {
		t.Fatalf("Resolve(odataparams) error = %v", err)
	}
	if c.Name() != ParametersName {
		t.Errorf("Name() = %q, want %q", c.Name(), ParametersName)
	}
	if len(c.(ParameterConstraint).Declared) != 0 {
		t.Error("empty argument should resolve to an empty declared set")
	}

	if _, err := Resolve("regex", nil); err == nil {
		t.Error("Resolve(regex) should fail")
	}
}
