package template

import (
	"github.com/nlstn/go-odata-routing/internal/path"
)

// CastTemplate narrows the entities of the previous segment to a derived type,
// e.g. People/NS.VipCustomer.
type CastTemplate struct {
	// TypeName is the namespace-qualified name of the derived type.
	TypeName string
}

func (t *CastTemplate) Kind() path.Kind     { return path.KindCast }
func (t *CastTemplate) Templates() []string { return []string{t.TypeName} }

func (t *CastTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}

	prev := ctx.Previous()
	if prev == nil {
		return false, nil
	}
	source, collection, ok := path.EntityTypeOf(prev)
	if !ok {
		return false, nil
	}

	target, ok := ctx.Model.FindEntityType(t.TypeName)
	if !ok {
		ctx.debug("Cast type not found", "type", t.TypeName)
		return false, nil
	}
	if target == source || !ctx.Model.IsDerivedFrom(target, source) {
		ctx.debug("Cast type does not derive from the source type",
			"type", target.QualifiedName(), "source", source.QualifiedName())
		return false, nil
	}

	ctx.append(&path.CastSegment{Type: target, Collection: collection, EntitySet: navigationSource(ctx)})
	return true, nil
}
