package template

import (
	"fmt"

	"github.com/nlstn/go-odata-routing/internal/path"
)

// PathTemplate is an ordered sequence of segment templates describing one
// route, e.g. {entityset}({key})/{navigation}.
type PathTemplate struct {
	Segments []SegmentTemplate
}

// New creates a path template over the given segment templates.
func New(segments ...SegmentTemplate) *PathTemplate {
	return &PathTemplate{Segments: segments}
}

// Templates returns every route template literal the path accepts: the
// cartesian product of the fragments of its segments.
func (t *PathTemplate) Templates() []string {
	results := []string{""}
	for _, seg := range t.Segments {
		fragments := seg.Templates()
		next := make([]string, 0, len(results)*len(fragments))
		for _, prefix := range results {
			for _, fragment := range fragments {
				next = append(next, joinFragment(prefix, fragment))
			}
		}
		results = next
	}
	return results
}

// Kinds returns the segment kinds in order.
func (t *PathTemplate) Kinds() []path.Kind {
	kinds := make([]path.Kind, len(t.Segments))
	for i, seg := range t.Segments {
		kinds[i] = seg.Kind()
	}
	return kinds
}

// Translate runs every segment template left to right. It returns nil, nil as
// soon as one segment does not fit. Segments and updated values left over from
// an earlier run on the same context are discarded first, so translating twice
// gives the same path.
func (t *PathTemplate) Translate(ctx *TranslateContext) (*path.Path, error) {
	if err := checkContext(ctx, false); err != nil {
		return nil, err
	}
	ctx.Segments = nil
	ctx.UpdatedValues = nil

	for i, seg := range t.Segments {
		ok, err := seg.TryTranslate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to translate segment %d (%s): %w", i, seg.Kind(), err)
		}
		if !ok {
			ctx.debug("Segment did not match", "index", i, "kind", seg.Kind().String(), "template", ctx.Template)
			return nil, nil
		}
	}

	literal := ctx.Template
	if literal == "" {
		if all := t.Templates(); len(all) > 0 {
			literal = all[0]
		}
	}
	ctx.updated()
	return path.New(literal, ctx.Segments), nil
}
