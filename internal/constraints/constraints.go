package constraints

import (
	"fmt"
	"strings"

	"github.com/nlstn/go-odata-routing/internal/literal"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
	"golang.org/x/text/cases"
)

// Constraint names as they appear in route templates.
const (
	KeysName       = "odatakeys"
	ParametersName = "odataparams"
)

// Default route keys used by the fragment builders.
const (
	DefaultKeyRouteKey       = "key"
	DefaultParameterRouteKey = "parameter"
)

// Constraint gates whether the value captured for routeKey satisfies a route
// template placeholder. On success it may write resolved pairs into values.
type Constraint interface {
	Name() string
	Match(values *routevalues.Values, routeKey string) bool
}

// KeyConstraint matches key literals such as (1) or (FirstName='a',LastName='b')
// against the declared key property names.
type KeyConstraint struct {
	Declared []string
}

// Name returns odatakeys.
func (KeyConstraint) Name() string { return KeysName }

// Match parses the literal captured under routeKey. A single unnamed value binds
// to the only declared name; with no declared names it stays under routeKey.
// Otherwise the literal names must equal the declared names as a set.
func (c KeyConstraint) Match(values *routevalues.Values, routeKey string) bool {
	pairs, ok := parseCaptured(values, routeKey)
	if !ok {
		return false
	}

	if pairs.IsUnnamed() {
		raw, _ := pairs.Get(literal.UnnamedKey)
		switch len(c.Declared) {
		case 0:
			values.Set(routeKey, raw)
			return true
		case 1:
			values.Set(c.Declared[0], raw)
			return true
		}
		return false
	}

	return bindNamed(values, pairs, c.Declared)
}

// ParameterConstraint matches function parameter literals such as
// (orgId='abc',depId=123). Unlike KeyConstraint it never accepts an unnamed value.
type ParameterConstraint struct {
	Declared []string
}

// Name returns odataparams.
func (ParameterConstraint) Name() string { return ParametersName }

// Match requires the literal names to equal the declared names as a set.
func (c ParameterConstraint) Match(values *routevalues.Values, routeKey string) bool {
	pairs, ok := parseCaptured(values, routeKey)
	if !ok || pairs.IsUnnamed() {
		return false
	}
	return bindNamed(values, pairs, c.Declared)
}

// MatchKeys runs a KeyConstraint over the declared names.
func MatchKeys(values *routevalues.Values, routeKey string, declared []string) bool {
	return KeyConstraint{Declared: declared}.Match(values, routeKey)
}

// MatchParameters runs a ParameterConstraint over the declared names.
func MatchParameters(values *routevalues.Values, routeKey string, declared []string) bool {
	return ParameterConstraint{Declared: declared}.Match(values, routeKey)
}

func parseCaptured(values *routevalues.Values, routeKey string) (*literal.Pairs, bool) {
	if values == nil {
		return nil, false
	}
	raw, ok := values.String(routeKey)
	if !ok {
		return nil, false
	}
	return literal.TryParse(raw)
}

// bindNamed copies pairs into values when the names equal declared as a set.
// Nothing is written on a mismatch.
func bindNamed(values *routevalues.Values, pairs *literal.Pairs, declared []string) bool {
	if !sameNames(pairs.Names(), declared) {
		return false
	}
	for _, name := range pairs.Names() {
		raw, _ := pairs.Get(name)
		values.Set(name, raw)
	}
	return true
}

func sameNames(got, declared []string) bool {
	caser := cases.Fold()
	want := make(map[string]struct{}, len(declared))
	for _, name := range declared {
		want[caser.String(name)] = struct{}{}
	}
	if len(got) != len(want) {
		return false
	}

	seen := make(map[string]struct{}, len(got))
	for _, name := range got {
		folded := caser.String(name)
		if _, ok := want[folded]; !ok {
			return false
		}
		if _, dup := seen[folded]; dup {
			return false
		}
		seen[folded] = struct{}{}
	}
	return true
}

// KeyFragment builds the key placeholder {routeKey:odatakeys(p1;p2)}.
func KeyFragment(routeKey string, names ...string) string {
	return fragment(routeKey, KeysName, names)
}

// ParameterFragment builds the parameter placeholder {routeKey:odataparams(p1;p2)}.
func ParameterFragment(routeKey string, names ...string) string {
	return fragment(routeKey, ParametersName, names)
}

func fragment(routeKey, constraint string, names []string) string {
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(routeKey)
	b.WriteByte(':')
	b.WriteString(constraint)
	b.WriteByte('(')
	b.WriteString(strings.Join(names, ";"))
	b.WriteString(")}")
	return b.String()
}

// Resolve returns the constraint registered under name. args holds the
// semicolon-separated names found between the parentheses.
func Resolve(name string, args []string) (Constraint, error) {
	declared := make([]string, 0, len(args))
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			declared = append(declared, arg)
		}
	}

	switch strings.ToLower(name) {
	case KeysName:
		return KeyConstraint{Declared: declared}, nil
	case ParametersName:
		return ParameterConstraint{Declared: declared}, nil
	}
	return nil, fmt.Errorf("unknown route constraint %q", name)
}
