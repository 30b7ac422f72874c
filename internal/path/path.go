package path

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/shopspring/decimal"
)

// Path is an ordered, immutable list of resolved segments together with the
// route template that produced it.
type Path struct {
	segments []Segment
	template string
}

// New creates a Path from segments. The slice is copied.
func New(template string, segments []Segment) *Path {
	return &Path{
		segments: append([]Segment(nil), segments...),
		template: template,
	}
}

// Segments returns a copy of the segments.
func (p *Path) Segments() []Segment {
	if p == nil {
		return nil
	}
	return append([]Segment(nil), p.segments...)
}

// Len returns the number of segments.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.segments)
}

// At returns the i-th segment.
func (p *Path) At(i int) Segment {
	return p.segments[i]
}

// Last returns the final segment, or nil for an empty path.
func (p *Path) Last() Segment {
	if p.Len() == 0 {
		return nil
	}
	return p.segments[len(p.segments)-1]
}

// Template returns the route template literal the path was matched with.
func (p *Path) Template() string {
	if p == nil {
		return ""
	}
	return p.template
}

// Kinds returns the kind of every segment.
func (p *Path) Kinds() []Kind {
	kinds := make([]Kind, p.Len())
	for i, seg := range p.Segments() {
		kinds[i] = seg.Kind()
	}
	return kinds
}

// String renders the path in URL form, e.g. Students(101)/School.
func (p *Path) String() string {
	var b strings.Builder
	for i, seg := range p.Segments() {
		id := seg.Identifier()
		if i > 0 && seg.Kind() != KindKey && id != "" {
			b.WriteByte('/')
		}
		b.WriteString(id)
	}
	return b.String()
}

// FormatKeys renders typed key values as a key literal. A single key renders
// bare (42), composite keys render as name=value pairs in declaration order.
func FormatKeys(entityType *metadata.EntityMetadata, keys map[string]any) string {
	if len(keys) == 1 && len(entityType.KeyProperties) <= 1 {
		for _, v := range keys {
			return FormatLiteral(v)
		}
	}

	parts := make([]string, 0, len(keys))
	for _, key := range entityType.KeyProperties {
		if v, ok := keys[key.Name]; ok {
			parts = append(parts, key.Name+"="+FormatLiteral(v))
		}
	}
	return strings.Join(parts, ",")
}

// FormatLiteral renders a typed value in OData URL literal form.
func FormatLiteral(v any) string {
	switch value := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(value)
	case int8, int16, int32, int64, int, uint8, uint16, uint32, uint64:
		return fmt.Sprint(value)
	case float32:
		return strconv.FormatFloat(float64(value), 'G', -1, 32)
	case float64:
		return strconv.FormatFloat(value, 'G', -1, 64)
	case decimal.Decimal:
		return value.String()
	case uuid.UUID:
		return value.String()
	case time.Time:
		return value.Format(time.RFC3339Nano)
	case time.Duration:
		return "duration'" + formatDuration(value) + "'"
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

func formatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteString("PT")
	b.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
	b.WriteByte('S')
	return b.String()
}
