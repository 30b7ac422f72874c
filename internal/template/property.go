package template

import (
	"github.com/nlstn/go-odata-routing/internal/path"
)

// PropertyTemplate addresses a structural property of a single entity, or a
// field of the complex property addressed by the previous segment.
type PropertyTemplate struct {
	Name string
}

func (t *PropertyTemplate) Kind() path.Kind     { return path.KindProperty }
func (t *PropertyTemplate) Templates() []string { return []string{t.Name} }

func (t *PropertyTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}

	if complexSeg, ok := ctx.Previous().(*path.PropertySegment); ok {
		if !complexSeg.Property.IsComplexType {
			return false, nil
		}
		field := complexSeg.Property.FindComplexField(t.Name)
		if field == nil {
			return false, nil
		}
		ctx.append(&path.PropertySegment{
			Property:      field,
			DeclaringType: complexSeg.DeclaringType,
			Namespace:     ctx.Model.Namespace(),
		})
		return true, nil
	}

	entityType, _, ok := singleEntity(ctx)
	if !ok {
		return false, nil
	}
	prop := entityType.FindStructuralProperty(t.Name)
	if prop == nil {
		ctx.debug("Property not found", "entityType", entityType.EntityName, "property", t.Name)
		return false, nil
	}
	ctx.append(&path.PropertySegment{
		Property:      prop,
		DeclaringType: entityType,
		Namespace:     ctx.Model.Namespace(),
	})
	return true, nil
}

// PropertyRouteValueTemplate reads the property name from the property route
// value. It never matches a navigation property.
type PropertyRouteValueTemplate struct{}

func (t *PropertyRouteValueTemplate) Kind() path.Kind { return path.KindProperty }
func (t *PropertyRouteValueTemplate) Templates() []string {
	return []string{"{" + PropertyRouteKey + "}"}
}

func (t *PropertyRouteValueTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	name, ok := ctx.RouteValues.String(PropertyRouteKey)
	if !ok {
		return false, nil
	}
	return (&PropertyTemplate{Name: name}).TryTranslate(ctx)
}

// CountTemplate addresses the number of items of the preceding collection.
type CountTemplate struct{}

func (t *CountTemplate) Kind() path.Kind     { return path.KindCount }
func (t *CountTemplate) Templates() []string { return []string{"$count"} }

func (t *CountTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, false); err != nil {
		return false, err
	}
	prev := ctx.Previous()
	if prev == nil {
		return false, nil
	}
	if op, ok := prev.(*path.OperationSegment); ok {
		if !op.Operation.ReturnsCollection {
			return false, nil
		}
	} else if _, collection, ok := path.EntityTypeOf(prev); !ok || !collection {
		return false, nil
	}
	ctx.append(path.CountSegment{})
	return true, nil
}

// ValueTemplate addresses the raw value of the preceding primitive property.
type ValueTemplate struct{}

func (t *ValueTemplate) Kind() path.Kind     { return path.KindValue }
func (t *ValueTemplate) Templates() []string { return []string{"$value"} }

func (t *ValueTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, false); err != nil {
		return false, err
	}
	prop, ok := ctx.Previous().(*path.PropertySegment)
	if !ok || prop.Property.IsComplexType {
		return false, nil
	}
	ctx.append(path.ValueSegment{ValueType: prop.Property.EdmType})
	return true, nil
}
