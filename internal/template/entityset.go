package template

import (
	"github.com/nlstn/go-odata-routing/internal/path"
)

// EntitySetTemplate matches a fixed entity set name, e.g. Products.
type EntitySetTemplate struct {
	Name string
}

func (t *EntitySetTemplate) Kind() path.Kind     { return path.KindEntitySet }
func (t *EntitySetTemplate) Templates() []string { return []string{t.Name} }

func (t *EntitySetTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	set, ok := ctx.Model.FindEntitySet(t.Name)
	if !ok {
		return false, nil
	}
	ctx.append(&path.EntitySetSegment{EntitySet: set})
	return true, nil
}

// EntitySetRouteValueTemplate reads the entity set name from the entityset
// route value, so one route serves every entity set of a dynamic model.
type EntitySetRouteValueTemplate struct{}

func (t *EntitySetRouteValueTemplate) Kind() path.Kind { return path.KindEntitySet }
func (t *EntitySetRouteValueTemplate) Templates() []string {
	return []string{"{" + EntitySetRouteKey + "}"}
}

func (t *EntitySetRouteValueTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	name, ok := ctx.RouteValues.String(EntitySetRouteKey)
	if !ok {
		return false, nil
	}
	set, ok := ctx.Model.FindEntitySet(name)
	if !ok {
		ctx.debug("Entity set not found", "entitySet", name)
		return false, nil
	}
	ctx.append(&path.EntitySetSegment{EntitySet: set})
	return true, nil
}

// EntitySetWithKeyTemplate reads both the entity set name and the key literal
// from route values ({entityset}({key})) and produces an entity set segment
// followed by a key segment with the converted key values.
type EntitySetWithKeyTemplate struct{}

func (t *EntitySetWithKeyTemplate) Kind() path.Kind { return path.KindKey }
func (t *EntitySetWithKeyTemplate) Templates() []string {
	return []string{"{" + EntitySetRouteKey + "}({" + KeyRouteKey + "})"}
}

func (t *EntitySetWithKeyTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}

	name, ok := ctx.RouteValues.String(EntitySetRouteKey)
	if !ok {
		return false, nil
	}
	rawKey, ok := ctx.RouteValues.String(KeyRouteKey)
	if !ok {
		return false, nil
	}

	set, ok := ctx.Model.FindEntitySet(name)
	if !ok {
		ctx.debug("Entity set not found", "entitySet", name)
		return false, nil
	}

	keys, ok := resolveKeys(ctx, set.EntityType, rawKey)
	if !ok {
		return false, nil
	}
	writeKeyValues(ctx, KeyRouteKey, set.EntityType, keys)

	ctx.append(
		&path.EntitySetSegment{EntitySet: set},
		&path.KeySegment{Keys: keys, EntityType: set.EntityType, EntitySet: set},
	)
	return true, nil
}

// SingletonTemplate matches a fixed singleton name.
type SingletonTemplate struct {
	Name string
}

func (t *SingletonTemplate) Kind() path.Kind     { return path.KindSingleton }
func (t *SingletonTemplate) Templates() []string { return []string{t.Name} }

func (t *SingletonTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	s, ok := ctx.Model.FindSingleton(t.Name)
	if !ok {
		return false, nil
	}
	ctx.append(&path.SingletonSegment{Singleton: s})
	return true, nil
}
