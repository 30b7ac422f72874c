package template

import (
	"github.com/nlstn/go-odata-routing/internal/constraints"
	"github.com/nlstn/go-odata-routing/internal/literal"
	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/path"
	"github.com/nlstn/go-odata-routing/internal/routevalues"
)

// SegmentTemplate is one segment of a route template. TryTranslate appends the
// resolved segment(s) to ctx.Segments and reports false when the request does
// not fit. A non-nil error signals a broken integration, never a mismatch.
type SegmentTemplate interface {
	Kind() path.Kind
	// Templates returns the route template fragments the segment contributes.
	// Fragments starting with "(" attach to the previous fragment, all others
	// are separated by "/".
	Templates() []string
	TryTranslate(ctx *TranslateContext) (bool, error)
}

// resolveKeys maps a raw key literal onto the key properties of entityType and
// converts every value to its EDM type. rawKey is either a bare value for a
// single key or name=value pairs.
func resolveKeys(ctx *TranslateContext, entityType *metadata.EntityMetadata, rawKey string) (map[string]any, bool) {
	names := entityType.KeyNames()

	scratch := routevalues.New(map[string]any{KeyRouteKey: rawKey})
	if !constraints.MatchKeys(scratch, KeyRouteKey, names) {
		ctx.debug("Key literal does not match the entity key",
			"entityType", entityType.EntityName, "key", rawKey, "keyProperties", names)
		return nil, false
	}

	keys := make(map[string]any, len(names))
	for _, prop := range entityType.KeyProperties {
		raw, ok := scratch.String(prop.Name)
		if !ok {
			return nil, false
		}
		value, err := literal.Convert(raw, prop.EdmType)
		if err != nil {
			ctx.debug("Key conversion failed",
				"entityType", entityType.EntityName, "property", prop.Name, "key", raw, "error", err)
			return nil, false
		}
		keys[prop.Name] = value
	}
	return keys, true
}

// writeKeyValues publishes converted keys as updated route values. A single key
// is written under routeKey and $routeKey; composite keys under routeKey+Name
// and $routeKey+Name.
func writeKeyValues(ctx *TranslateContext, routeKey string, entityType *metadata.EntityMetadata, keys map[string]any) {
	updated := ctx.updated()
	if len(entityType.KeyProperties) == 1 {
		prop := entityType.KeyProperties[0]
		updated.Set(routeKey, keys[prop.Name])
		updated.Set(URIValuePrefix+routeKey, path.ParameterValue{EdmType: prop.EdmType, Value: keys[prop.Name]})
		return
	}
	for _, prop := range entityType.KeyProperties {
		updated.Set(routeKey+prop.Name, keys[prop.Name])
		updated.Set(URIValuePrefix+routeKey+prop.Name, path.ParameterValue{EdmType: prop.EdmType, Value: keys[prop.Name]})
	}
}

// singleEntity reports the entity type of the previous segment when it yields
// exactly one entity.
func singleEntity(ctx *TranslateContext) (*metadata.EntityMetadata, path.Segment, bool) {
	prev := ctx.Previous()
	if prev == nil {
		return nil, nil, false
	}
	entityType, collection, ok := path.EntityTypeOf(prev)
	if !ok || collection {
		return nil, nil, false
	}
	return entityType, prev, true
}

// navigationSource walks back to the closest segment that knows its entity set.
func navigationSource(ctx *TranslateContext) *metadata.EntitySet {
	for i := len(ctx.Segments) - 1; i >= 0; i-- {
		if set := path.NavigationSourceOf(ctx.Segments[i]); set != nil {
			return set
		}
	}
	return nil
}

func joinFragment(prefix, fragment string) string {
	switch {
	case fragment == "":
		return prefix
	case prefix == "" || fragment[0] == '(':
		return prefix + fragment
	default:
		return prefix + "/" + fragment
	}
}
