package template

import (
	"github.com/nlstn/go-odata-routing/internal/constraints"
	"github.com/nlstn/go-odata-routing/internal/literal"
	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/path"
	"golang.org/x/text/cases"
)

// FunctionTemplate calls a function bound to the entity or collection produced
// by the previous segment, e.g. Students(1)/NS.GetGrade(term='fall').
type FunctionTemplate struct {
	Namespace string
	Name      string
	// Parameters declares the non-binding parameters the route accepts. Every
	// subset of the optional ones gets its own route fragment.
	Parameters []metadata.Parameter
}

func (t *FunctionTemplate) Kind() path.Kind { return path.KindFunction }

func (t *FunctionTemplate) Templates() []string {
	return parameterFragments(qualify(t.Namespace, t.Name), t.Parameters)
}

func (t *FunctionTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}

	prev := ctx.Previous()
	if prev == nil {
		return false, nil
	}
	bindingType, collection, ok := path.EntityTypeOf(prev)
	if !ok {
		return false, nil
	}

	supplied, ok := suppliedParameters(ctx)
	if !ok || !declaresAll(t.Parameters, supplied.Names()) {
		return false, nil
	}

	candidates := ctx.Model.FindBoundOperations(qualify(t.Namespace, t.Name), bindingType, collection, false)
	op := selectOverload(candidates, supplied.Names())
	if op == nil {
		ctx.debug("No function overload accepts the parameters",
			"function", t.Name, "bindingType", bindingType.EntityName, "parameters", supplied.Names())
		return false, nil
	}

	values, ok := convertParameters(ctx, op, supplied)
	if !ok {
		return false, nil
	}
	ctx.append(&path.OperationSegment{
		Operation:  op,
		Namespace:  ctx.Model.Namespace(),
		Parameters: values,
		EntitySet:  operationEntitySet(ctx, op),
	})
	return true, nil
}

// ActionTemplate invokes an action bound to the previous segment. Action
// parameters travel in the request body, so the fragment has none.
type ActionTemplate struct {
	Namespace string
	Name      string
}

func (t *ActionTemplate) Kind() path.Kind     { return path.KindAction }
func (t *ActionTemplate) Templates() []string { return []string{qualify(t.Namespace, t.Name)} }

func (t *ActionTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}

	prev := ctx.Previous()
	if prev == nil {
		return false, nil
	}
	bindingType, collection, ok := path.EntityTypeOf(prev)
	if !ok {
		return false, nil
	}

	candidates := ctx.Model.FindBoundOperations(qualify(t.Namespace, t.Name), bindingType, collection, true)
	if len(candidates) == 0 {
		return false, nil
	}
	op := candidates[0]
	ctx.append(&path.OperationSegment{
		Operation: op,
		Namespace: ctx.Model.Namespace(),
		EntitySet: operationEntitySet(ctx, op),
	})
	return true, nil
}

// FunctionImportTemplate calls an unbound function exposed by the entity
// container. It must be the first segment of the path.
type FunctionImportTemplate struct {
	Name       string
	Parameters []metadata.Parameter
}

func (t *FunctionImportTemplate) Kind() path.Kind { return path.KindFunctionImport }

func (t *FunctionImportTemplate) Templates() []string {
	return parameterFragments(t.Name, t.Parameters)
}

func (t *FunctionImportTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	if ctx.Previous() != nil {
		return false, nil
	}

	supplied, ok := suppliedParameters(ctx)
	if !ok || !declaresAll(t.Parameters, supplied.Names()) {
		return false, nil
	}
	op := selectOverload(ctx.Model.FindOperationImports(t.Name, false), supplied.Names())
	if op == nil {
		return false, nil
	}

	values, ok := convertParameters(ctx, op, supplied)
	if !ok {
		return false, nil
	}
	ctx.append(&path.OperationSegment{
		Operation:  op,
		Parameters: values,
		EntitySet:  operationEntitySet(ctx, op),
	})
	return true, nil
}

// ActionImportTemplate invokes an unbound action. It must be the first segment.
type ActionImportTemplate struct {
	Name string
}

func (t *ActionImportTemplate) Kind() path.Kind     { return path.KindActionImport }
func (t *ActionImportTemplate) Templates() []string { return []string{t.Name} }

func (t *ActionImportTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, true); err != nil {
		return false, err
	}
	if ctx.Previous() != nil {
		return false, nil
	}
	ops := ctx.Model.FindOperationImports(t.Name, true)
	if len(ops) == 0 {
		return false, nil
	}
	ctx.append(&path.OperationSegment{Operation: ops[0], EntitySet: operationEntitySet(ctx, ops[0])})
	return true, nil
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// parameterFragments returns name() when there are no parameters, otherwise
// one name({parameter:odataparams(...)}) fragment per accepted parameter set,
// starting with the required parameters alone.
func parameterFragments(name string, params []metadata.Parameter) []string {
	var required []string
	var optional []string
	for _, p := range params {
		if p.Optional {
			optional = append(optional, p.Name)
		} else {
			required = append(required, p.Name)
		}
	}

	fragments := make([]string, 0, 1<<len(optional))
	for mask := 0; mask < 1<<len(optional); mask++ {
		names := append([]string(nil), required...)
		for i, opt := range optional {
			if mask&(1<<i) != 0 {
				names = append(names, opt)
			}
		}
		if len(names) == 0 {
			fragments = append(fragments, name+"()")
			continue
		}
		fragments = append(fragments, name+"("+constraints.ParameterFragment(ParameterRouteKey, names...)+")")
	}
	return fragments
}

// suppliedParameters parses the parameter route value. A missing value means
// the call had empty parentheses.
func suppliedParameters(ctx *TranslateContext) (*literal.Pairs, bool) {
	raw, ok := ctx.RouteValues.String(ParameterRouteKey)
	if !ok || raw == "" {
		return &literal.Pairs{}, true
	}
	pairs, ok := literal.TryParse(raw)
	if !ok || pairs.IsUnnamed() {
		ctx.debug("Parameter literal is malformed", "parameter", raw)
		return nil, false
	}
	return pairs, true
}

// declaresAll reports whether every supplied name is one of the declared
// parameters. Templates declaring nothing accept only empty parentheses.
func declaresAll(declared []metadata.Parameter, supplied []string) bool {
	known := make(map[string]struct{}, len(declared))
	caser := cases.Fold()
	for _, p := range declared {
		known[caser.String(p.Name)] = struct{}{}
	}
	for _, name := range supplied {
		if _, ok := known[caser.String(name)]; !ok {
			return false
		}
	}
	return true
}

// selectOverload picks the operation accepting the supplied parameter names:
// every required parameter present and no unknown name. An overload whose full
// parameter list is supplied wins, otherwise the first acceptable one in
// registration order.
func selectOverload(candidates []*metadata.Operation, supplied []string) *metadata.Operation {
	caser := cases.Fold()
	given := make(map[string]struct{}, len(supplied))
	for _, name := range supplied {
		given[caser.String(name)] = struct{}{}
	}

	var fallback *metadata.Operation
	for _, op := range candidates {
		if !accepts(op, given, caser) {
			continue
		}
		if len(op.Parameters) == len(given) {
			return op
		}
		if fallback == nil {
			fallback = op
		}
	}
	return fallback
}

func accepts(op *metadata.Operation, given map[string]struct{}, caser cases.Caser) bool {
	declared := make(map[string]struct{}, len(op.Parameters))
	for _, p := range op.Parameters {
		folded := caser.String(p.Name)
		declared[folded] = struct{}{}
		if _, ok := given[folded]; !ok && !p.Optional {
			return false
		}
	}
	for name := range given {
		if _, ok := declared[name]; !ok {
			return false
		}
	}
	return true
}

// convertParameters converts the supplied literals to the parameter types of
// op and publishes them as updated route values under the declared names.
func convertParameters(ctx *TranslateContext, op *metadata.Operation, supplied *literal.Pairs) (map[string]any, bool) {
	values := make(map[string]any, supplied.Len())
	for _, name := range supplied.Names() {
		param, ok := op.FindParameter(name)
		if !ok {
			return nil, false
		}
		raw, _ := supplied.Get(name)
		value, err := literal.Convert(raw, param.Type)
		if err != nil {
			ctx.debug("Parameter conversion failed",
				"operation", op.Name, "parameter", param.Name, "value", raw, "error", err)
			return nil, false
		}
		values[param.Name] = value
	}

	updated := ctx.updated()
	for _, param := range op.Parameters {
		value, ok := values[param.Name]
		if !ok {
			continue
		}
		updated.Set(param.Name, value)
		updated.Set(URIValuePrefix+param.Name, path.ParameterValue{EdmType: param.Type, Value: value})
	}
	return values, true
}

func operationEntitySet(ctx *TranslateContext, op *metadata.Operation) *metadata.EntitySet {
	if op.EntitySet == "" {
		return nil
	}
	set, _ := ctx.Model.FindEntitySet(op.EntitySet)
	return set
}
