package routevalues

import (
	"sort"

	"golang.org/x/text/cases"
)

// Values maps route placeholder names to matched values.
// Keys compare case-insensitively (Unicode simple case folding); the spelling of
// the first write is preserved and reported by Keys. Captured values are strings,
// values written after translation may carry any typed value.
type Values struct {
	entries map[string]entry
}

type entry struct {
	name  string
	value any
}

// New creates a Values populated with the given pairs.
func New(pairs map[string]any) *Values {
	v := &Values{entries: make(map[string]entry, len(pairs))}
	for name, value := range pairs {
		v.Set(name, value)
	}
	return v
}

// FromStrings creates a Values populated with raw string captures.
func FromStrings(pairs map[string]string) *Values {
	v := &Values{entries: make(map[string]entry, len(pairs))}
	for name, value := range pairs {
		v.Set(name, value)
	}
	return v
}

func fold(name string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Fold().String(name)
}

// Get returns the value stored under name.
func (v *Values) Get(name string) (any, bool) {
	if v == nil || v.entries == nil {
		return nil, false
	}
	e, ok := v.entries[fold(name)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// String returns the value stored under name when it is a non-empty string.
func (v *Values) String(name string) (string, bool) {
	raw, ok := v.Get(name)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Set stores value under name, replacing any value stored under an equal key.
func (v *Values) Set(name string, value any) {
	if v.entries == nil {
		v.entries = make(map[string]entry)
	}
	key := fold(name)
	if existing, ok := v.entries[key]; ok {
		existing.value = value
		v.entries[key] = existing
		return
	}
	v.entries[key] = entry{name: name, value: value}
}

// Delete removes name.
func (v *Values) Delete(name string) {
	if v == nil || v.entries == nil {
		return
	}
	delete(v.entries, fold(name))
}

// Has reports whether name is present.
func (v *Values) Has(name string) bool {
	_, ok := v.Get(name)
	return ok
}

// Len returns the number of stored values.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.entries)
}

// Keys returns the stored names in sorted order.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	keys := make([]string, 0, len(v.entries))
	for _, e := range v.entries {
		keys = append(keys, e.name)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (v *Values) Clone() *Values {
	clone := &Values{entries: make(map[string]entry, v.Len())}
	if v == nil {
		return clone
	}
	for key, e := range v.entries {
		clone.entries[key] = e
	}
	return clone
}

// Merge copies every value of other into v. Values of other win.
func (v *Values) Merge(other *Values) {
	if other == nil {
		return
	}
	for _, name := range other.Keys() {
		value, _ := other.Get(name)
		v.Set(name, value)
	}
}

// Map returns a plain copy keyed by the preserved names.
func (v *Values) Map() map[string]any {
	out := make(map[string]any, v.Len())
	if v == nil {
		return out
	}
	for _, e := range v.entries {
		out[e.name] = e.value
	}
	return out
}
