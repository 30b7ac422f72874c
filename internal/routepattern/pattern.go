package routepattern

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/nlstn/go-odata-routing/internal/constraints"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
)

// Part is one literal run or placeholder inside a path segment.
type Part struct {
	Literal    string
	Name       string
	Constraint constraints.Constraint
}

// IsParameter reports whether the part captures a route value.
func (p Part) IsParameter() bool {
	return p.Name != ""
}

// Segment is the text between two slashes of a route template.
type Segment struct {
	Parts []Part
}

// Pattern is a compiled route template such as
// odata/{datasource}/{entityset}({key:odatakeys(ID)})/DetailInfo.
type Pattern struct {
	text     string
	segments []Segment
}

// Parse compiles a route template.
//
// The syntax of the template string is as follows:
//
//	Template   = [ Segment { "/" Segment } ]
//	Segment    = Part { Part }
//	Part       = LITERAL | "{" NAME [ ":" Constraint ] "}"
//	Constraint = IDENT [ "(" [ NAME { ";" NAME } ] ")" ]
//
// Two placeholders must be separated by a literal, and a name may be used once.
func Parse(template string) (*Pattern, error) {
	trimmed := strings.Trim(template, "/")
	p := &Pattern{text: trimmed}
	if trimmed == "" {
		return p, nil
	}

	names := make(map[string]struct{})
	for _, raw := range strings.Split(trimmed, "/") {
		if raw == "" {
			return nil, fmt.Errorf("route template has an empty segment - %q", template)
		}
		segment, err := parseSegment(raw, names)
		if err != nil {
			return nil, fmt.Errorf("route template %q: %w", template, err)
		}
		p.segments = append(p.segments, segment)
	}
	return p, nil
}

// MustParse is like Parse but panics if the template cannot be parsed.
func MustParse(template string) *Pattern {
	p, err := Parse(template)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(raw string, names map[string]struct{}) (Segment, error) {
	var segment Segment
	for i := 0; i < len(raw); {
		if raw[i] == '}' {
			return Segment{}, fmt.Errorf("unexpected '}' in segment %q", raw)
		}
		if raw[i] != '{' {
			end := strings.IndexAny(raw[i:], "{}")
			if end < 0 {
				end = len(raw) - i
			}
			segment.Parts = append(segment.Parts, Part{Literal: raw[i : i+end]})
			i += end
			continue
		}

		end := strings.IndexByte(raw[i:], '}')
		if end < 0 {
			return Segment{}, fmt.Errorf("segment lacks '}' - %q", raw)
		}
		part, err := parsePlaceholder(raw[i+1 : i+end])
		if err != nil {
			return Segment{}, err
		}
		if n := len(segment.Parts); n > 0 && segment.Parts[n-1].IsParameter() {
			return Segment{}, fmt.Errorf("placeholders {%s} and {%s} need a literal between them",
				segment.Parts[n-1].Name, part.Name)
		}
		folded := strings.ToLower(part.Name)
		if _, dup := names[folded]; dup {
			return Segment{}, fmt.Errorf("placeholder {%s} is used more than once", part.Name)
		}
		names[folded] = struct{}{}
		segment.Parts = append(segment.Parts, part)
		i += end + 1
	}
	return segment, nil
}

func parsePlaceholder(body string) (Part, error) {
	name, constraintText, hasConstraint := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "{(") {
		return Part{}, fmt.Errorf("invalid placeholder name in {%s}", body)
	}
	part := Part{Name: name}
	if !hasConstraint {
		return part, nil
	}

	constraintName, args := constraintText, ""
	if open := strings.IndexByte(constraintText, '('); open >= 0 {
		if !strings.HasSuffix(constraintText, ")") {
			return Part{}, fmt.Errorf("constraint lacks ')' in {%s}", body)
		}
		constraintName = constraintText[:open]
		args = constraintText[open+1 : len(constraintText)-1]
	}

	var declared []string
	if args != "" {
		declared = strings.Split(args, ";")
	}
	c, err := constraints.Resolve(strings.TrimSpace(constraintName), declared)
	if err != nil {
		return Part{}, err
	}
	part.Constraint = c
	return part, nil
}

// String returns the template text without leading or trailing slashes.
func (p *Pattern) String() string {
	return p.text
}

// Segments returns the compiled segments.
func (p *Pattern) Segments() []Segment {
	return p.segments
}

// Parameters returns the placeholder names in template order.
func (p *Pattern) Parameters() []string {
	var names []string
	for _, segment := range p.segments {
		for _, part := range segment.Parts {
			if part.IsParameter() {
				names = append(names, part.Name)
			}
		}
	}
	return names
}

// Match matches an escaped URL path against the pattern and returns the captured
// route values. Literal parts compare case-insensitively and captures are
// path-unescaped. Constraints run after every placeholder has been captured and
// may add resolved values.
func (p *Pattern) Match(urlPath string) (*routevalues.Values, bool) {
	trimmed := strings.Trim(urlPath, "/")
	var rawSegments []string
	if trimmed != "" {
		rawSegments = strings.Split(trimmed, "/")
	}
	if len(rawSegments) != len(p.segments) {
		return nil, false
	}

	values := routevalues.New(nil)
	for i, segment := range p.segments {
		if !matchSegment(segment, rawSegments[i], values) {
			return nil, false
		}
	}

	for _, segment := range p.segments {
		for _, part := range segment.Parts {
			if part.Constraint != nil && !part.Constraint.Match(values, part.Name) {
				return nil, false
			}
		}
	}
	return values, true
}

func matchSegment(segment Segment, text string, values *routevalues.Values) bool {
	pos := 0
	last := len(segment.Parts) - 1
	for i := 0; i <= last; i++ {
		part := segment.Parts[i]
		if !part.IsParameter() {
			if i == last {
				if !strings.EqualFold(text[pos:], part.Literal) {
					return false
				}
				pos = len(text)
				continue
			}
			if !hasPrefixFold(text[pos:], part.Literal) {
				return false
			}
			pos += len(part.Literal)
			continue
		}

		// The parser guarantees a literal follows any non-final placeholder.
		var end int
		switch {
		case i == last:
			end = len(text)
		case i+1 == last:
			next := segment.Parts[i+1].Literal
			if len(text)-pos <= len(next) || !hasSuffixFold(text, next) {
				return false
			}
			end = len(text) - len(next)
		default:
			idx := indexFold(text, segment.Parts[i+1].Literal, pos+1)
			if idx < 0 {
				return false
			}
			end = idx
		}
		if end <= pos {
			return false
		}

		captured, err := url.PathUnescape(text[pos:end])
		if err != nil {
			return false
		}
		values.Set(part.Name, captured)
		pos = end
	}
	return pos == len(text)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// indexFold returns the first index at or after from where sub occurs in s,
// ignoring case, or -1.
func indexFold(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}
