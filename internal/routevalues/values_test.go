package routevalues

import (
	"reflect"
	"testing"
)

func TestValues_CaseInsensitiveGet(t *testing.T) {
	v := FromStrings(map[string]string{"EntitySet": "Students"})

	for _, name := range []string{"entityset", "ENTITYSET", "EntitySet", "entitySet"} {
		got, ok := v.String(name)
		if !ok {
			t.Fatalf("String(%q) not found", name)
		}
		if got != "Students" {
			t.Errorf("String(%q) = %v, want Students", name, got)
		}
	}
}

func TestValues_SetPreservesFirstSpelling(t *testing.T) {
	v := &Values{}
	v.Set("Key", "1")
	v.Set("KEY", 42)

	if v.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", v.Len())
	}
	if keys := v.Keys(); !reflect.DeepEqual(keys, []string{"Key"}) {
		t.Errorf("Keys() = %v, want [Key]", keys)
	}
	got, _ := v.Get("key")
	if got != 42 {
		t.Errorf("Get(key) = %v, want 42", got)
	}
}

func TestValues_StringRejectsNonStrings(t *testing.T) {
	v := New(map[string]any{"key": 42, "empty": ""})

	if _, ok := v.String("key"); ok {
		t.Error("String(key) should fail for a typed value")
	}
	if _, ok := v.String("empty"); ok {
		t.Error("String(empty) should fail for an empty string")
	}
	if _, ok := v.String("missing"); ok {
		t.Error("String(missing) should fail")
	}
}

func TestValues_CloneIsIndependent(t *testing.T) {
	original := FromStrings(map[string]string{"key": "1"})
	clone := original.Clone()
	clone.Set("key", "2")
	clone.Set("navigation", "School")

	got, _ := original.String("key")
	if got != "1" {
		t.Errorf("original key = %v, want 1", got)
	}
	if original.Has("navigation") {
		t.Error("original should not see values added to the clone")
	}
}

func TestValues_MergeLaterWins(t *testing.T) {
	v := FromStrings(map[string]string{"key": "101", "entityset": "Students"})
	updates := New(map[string]any{"Key": 101, "$key": "typed"})

	v.Merge(updates)

	got, _ := v.Get("key")
	if got != 101 {
		t.Errorf("Get(key) = %v (%T), want int 101", got, got)
	}
	if !v.Has("$key") {
		t.Error("merged value $key missing")
	}
	if v.Len() != 3 {
		t.Errorf("Len() = %d, want 3", v.Len())
	}
}

func TestValues_NilReceiver(t *testing.T) {
	var v *Values
	if v.Has("x") {
		t.Error("nil Values should not report keys")
	}
	if v.Len() != 0 {
		t.Errorf("Len() = %d, want 0", v.Len())
	}
	if v.Clone().Len() != 0 {
		t.Error("Clone of nil should be empty")
	}
	v.Delete("x")
}

func TestValues_Delete(t *testing.T) {
	v := FromStrings(map[string]string{"Navigation": "School"})
	v.Delete("NAVIGATION")
	if v.Has("navigation") {
		t.Error("Delete should remove case-insensitively")
	}
}

func TestValues_KeysSorted(t *testing.T) {
	v := &Values{}
	v.Set("navigation", "School")
	v.Set("Key", "1")
	v.Set("entityset", "Students")

	want := []string{"Key", "entityset", "navigation"}
	if keys := v.Keys(); !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}
