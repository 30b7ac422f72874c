package template

import (
	"github.com/nlstn/go-odata-routing/internal/constraints"
	"github.com/nlstn/go-odata-routing/internal/path"
)

// KeyTemplate selects one entity of the collection produced by the previous
// segment. The key literal is read from RouteKey (default "key").
type KeyTemplate struct {
	// KeyNames are the declared key property names used in the odatakeys
	// constraint of the route fragment.
	KeyNames []string
	RouteKey string
}

// NewKeyTemplate creates a key template for the given key property names.
func NewKeyTemplate(keyNames ...string) *KeyTemplate {
	return &KeyTemplate{KeyNames: keyNames, RouteKey: KeyRouteKey}
}

func (t *KeyTemplate) routeKey() string {
	if t.RouteKey == "" {
		return KeyRouteKey
	}
	return t.RouteKey
}

func (t *KeyTemplate) Kind() path.Kind { return path.KindKey }

// Templates returns both key notations: Products({key:odatakeys(ID)}) and
// Products/{key:odatakeys(ID)}.
func (t *KeyTemplate) Templates() []string {
	placeholder := constraints.KeyFragment(t.routeKey(), t.KeyNames...)
	return []string{"(" + placeholder + ")", placeholder}
}

func (t *KeyTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}

	prev := ctx.Previous()
	if prev == nil {
		return false, nil
	}
	entityType, collection, ok := path.EntityTypeOf(prev)
	if !ok || !collection {
		return false, nil
	}

	rawKey, ok := ctx.RouteValues.String(t.routeKey())
	if !ok {
		return false, nil
	}
	keys, ok := resolveKeys(ctx, entityType, rawKey)
	if !ok {
		return false, nil
	}
	writeKeyValues(ctx, t.routeKey(), entityType, keys)

	ctx.append(&path.KeySegment{Keys: keys, EntityType: entityType, EntitySet: navigationSource(ctx)})
	return true, nil
}
