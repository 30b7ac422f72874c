package template

import "github.com/nlstn/go-odata-routing/internal/path"

// NavigationTemplate follows a fixed navigation property of a single entity,
// e.g. the School of Students(101).
type NavigationTemplate struct {
	Name string
}

func (t *NavigationTemplate) Kind() path.Kind     { return path.KindNavigation }
func (t *NavigationTemplate) Templates() []string { return []string{t.Name} }

func (t *NavigationTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	seg, ok := resolveNavigation(ctx, t.Name)
	if !ok {
		return false, nil
	}
	ctx.append(seg)
	return true, nil
}

// NavigationRouteValueTemplate reads the navigation property name from the
// navigation route value.
type NavigationRouteValueTemplate struct{}

func (t *NavigationRouteValueTemplate) Kind() path.Kind { return path.KindNavigation }
func (t *NavigationRouteValueTemplate) Templates() []string {
	return []string{"{" + NavigationRouteKey + "}"}
}

func (t *NavigationRouteValueTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	name, ok := ctx.RouteValues.String(NavigationRouteKey)
	if !ok {
		return false, nil
	}
	seg, ok := resolveNavigation(ctx, name)
	if !ok {
		return false, nil
	}
	ctx.append(seg)
	return true, nil
}

// NavigationLinkTemplate addresses the reference of a navigation property,
// e.g. Students(101)/School/$ref. An empty Name reads the navigation route value.
type NavigationLinkTemplate struct {
	Name string
}

func (t *NavigationLinkTemplate) Kind() path.Kind { return path.KindNavigationLink }

func (t *NavigationLinkTemplate) Templates() []string {
	name := t.Name
	if name == "" {
		name = "{" + NavigationRouteKey + "}"
	}
	return []string{name + "/$ref"}
}

func (t *NavigationLinkTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	name := t.Name
	if name == "" {
		var ok bool
		if name, ok = ctx.RouteValues.String(NavigationRouteKey); !ok {
			return false, nil
		}
	}
	nav, ok := resolveNavigation(ctx, name)
	if !ok {
		return false, nil
	}
	ctx.append(&path.NavigationLinkSegment{Navigation: nav})
	return true, nil
}

// resolveNavigation resolves name against the single entity produced by the
// previous segment. The target entity set must be known to the model.
func resolveNavigation(ctx *TranslateContext, name string) (*path.NavigationSegment, bool) {
	entityType, _, ok := singleEntity(ctx)
	if !ok {
		return nil, false
	}

	nav := entityType.FindNavigationProperty(name)
	if nav == nil {
		ctx.debug("Navigation property not found", "entityType", entityType.EntityName, "navigation", name)
		return nil, false
	}

	targetType, ok := ctx.Model.FindEntityType(nav.NavigationTarget)
	if !ok {
		return nil, false
	}
	target, ok := ctx.Model.NavigationTarget(navigationSource(ctx), nav)
	if !ok {
		ctx.debug("Navigation target has no entity set", "navigation", nav.Name, "targetType", nav.NavigationTarget)
		return nil, false
	}

	return &path.NavigationSegment{
		Property:   nav,
		Source:     entityType,
		Target:     target,
		TargetType: targetType,
	}, true
}
