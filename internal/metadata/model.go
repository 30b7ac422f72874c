package metadata

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
)

// DefaultNamespace is used when a builder is created without a namespace.
const DefaultNamespace = "Default"

// EntitySet is a named collection of entities of one entity type.
type EntitySet struct {
	Name       string
	EntityType *EntityMetadata
	bindings   map[string]string // navigation property -> target entity set
}

// Singleton is a single named entity of one entity type.
type Singleton struct {
	Name       string
	EntityType *EntityMetadata
}

// Parameter describes a non-binding operation parameter.
type Parameter struct {
	Name     string
	Type     string // EDM primitive type name or qualified entity type name
	Optional bool
}

// Operation describes a function or action, bound or unbound.
type Operation struct {
	Name              string
	IsAction          bool
	IsBound           bool
	BindingType       string // entity type name the operation is bound to
	BindingCollection bool   // bound to a collection of BindingType
	Parameters        []Parameter
	ReturnType        string
	ReturnsCollection bool
	EntitySet         string // entity set returned by an unbound operation import
}

// ParameterNames returns every non-binding parameter name in declaration order.
func (op *Operation) ParameterNames() []string {
	names := make([]string, len(op.Parameters))
	for i, p := range op.Parameters {
		names[i] = p.Name
	}
	return names
}

// RequiredParameterNames returns the names of the non-optional parameters.
func (op *Operation) RequiredParameterNames() []string {
	var names []string
	for _, p := range op.Parameters {
		if !p.Optional {
			names = append(names, p.Name)
		}
	}
	return names
}

// FindParameter looks a parameter up ignoring case.
func (op *Operation) FindParameter(name string) (*Parameter, bool) {
	for i := range op.Parameters {
		if strings.EqualFold(op.Parameters[i].Name, name) {
			return &op.Parameters[i], true
		}
	}
	return nil, false
}

// Model is an immutable EDM model built by a Builder. It is safe for concurrent use.
type Model struct {
	namespace      string
	container      string
	entitySets     []*EntitySet
	entitySetIndex map[string]*EntitySet
	singletons     []*Singleton
	singletonIndex map[string]*Singleton
	entityTypes    []*EntityMetadata
	typeIndex      map[string]*EntityMetadata
	operations     []*Operation
	csdl           []byte
	fingerprint    uint64
}

// Namespace returns the schema namespace.
func (m *Model) Namespace() string { return m.namespace }

// ContainerName returns the entity container name.
func (m *Model) ContainerName() string { return m.container }

// EntitySets returns the entity sets in registration order.
func (m *Model) EntitySets() []*EntitySet { return m.entitySets }

// Singletons returns the singletons in registration order.
func (m *Model) Singletons() []*Singleton { return m.singletons }

// EntityTypes returns the entity types in registration order.
func (m *Model) EntityTypes() []*EntityMetadata { return m.entityTypes }

// Operations returns every function and action.
func (m *Model) Operations() []*Operation { return m.operations }

// CSDL returns the rendered CSDL XML document.
func (m *Model) CSDL() []byte { return m.csdl }

// Fingerprint returns the xxhash of the CSDL document.
func (m *Model) Fingerprint() uint64 { return m.fingerprint }

// ETag returns a weak entity tag derived from the fingerprint.
func (m *Model) ETag() string {
	return fmt.Sprintf(`W/"%016x"`, m.fingerprint)
}

// FindEntitySet looks an entity set up by name, ignoring case.
func (m *Model) FindEntitySet(name string) (*EntitySet, bool) {
	if m == nil {
		return nil, false
	}
	set, ok := m.entitySetIndex[cases.Fold().String(name)]
	return set, ok
}

// FindSingleton looks a singleton up by name, ignoring case.
func (m *Model) FindSingleton(name string) (*Singleton, bool) {
	if m == nil {
		return nil, false
	}
	s, ok := m.singletonIndex[cases.Fold().String(name)]
	return s, ok
}

// FindEntityType looks an entity type up by its plain or namespace-qualified name.
func (m *Model) FindEntityType(name string) (*EntityMetadata, bool) {
	if m == nil {
		return nil, false
	}
	if t, ok := m.typeIndex[name]; ok {
		return t, true
	}
	if trimmed, ok := strings.CutPrefix(name, m.namespace+"."); ok {
		t, found := m.typeIndex[trimmed]
		return t, found
	}
	return nil, false
}

// IsDerivedFrom reports whether t is base or inherits from it.
func (m *Model) IsDerivedFrom(t, base *EntityMetadata) bool {
	for seen := 0; t != nil && seen <= len(m.entityTypes); seen++ {
		if t == base {
			return true
		}
		if t.BaseTypeName == "" {
			return false
		}
		t = m.typeIndex[t.BaseTypeName]
	}
	return false
}

// NavigationTarget resolves the entity set a navigation property of source points
// to. Explicit bindings win; otherwise the first entity set of the target type is used.
func (m *Model) NavigationTarget(source *EntitySet, nav *PropertyMetadata) (*EntitySet, bool) {
	if nav == nil || !nav.IsNavigationProp {
		return nil, false
	}
	if source != nil {
		if target, ok := source.bindings[nav.Name]; ok {
			return m.FindEntitySet(target)
		}
	}
	for _, set := range m.entitySets {
		if set.EntityType.EntityName == nav.NavigationTarget {
			return set, true
		}
	}
	return nil, false
}

// FindBoundOperations returns the operations called name that can be bound to
// bindingType (directly or through a base type) with the given cardinality.
// name may be namespace-qualified.
func (m *Model) FindBoundOperations(name string, bindingType *EntityMetadata, collection, isAction bool) []*Operation {
	name = m.trimNamespace(name)
	var found []*Operation
	for _, op := range m.operations {
		if !op.IsBound || op.IsAction != isAction || op.Name != name || op.BindingCollection != collection {
			continue
		}
		binding, ok := m.typeIndex[op.BindingType]
		if ok && m.IsDerivedFrom(bindingType, binding) {
			found = append(found, op)
		}
	}
	return found
}

// FindOperationImports returns the unbound operations called name.
func (m *Model) FindOperationImports(name string, isAction bool) []*Operation {
	var found []*Operation
	for _, op := range m.operations {
		if !op.IsBound && op.IsAction == isAction && op.Name == name {
			found = append(found, op)
		}
	}
	return found
}

func (m *Model) trimNamespace(name string) string {
	if trimmed, ok := strings.CutPrefix(name, m.namespace+"."); ok {
		return trimmed
	}
	return name
}

// Builder assembles a Model. It is not safe for concurrent use and cannot be
// reused once Build has returned a model.
type Builder struct {
	model *Model
}

// NewBuilder creates a builder for the given schema namespace.
func NewBuilder(namespace string) *Builder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Builder{model: &Model{
		namespace:      namespace,
		container:      "Container",
		entitySetIndex: make(map[string]*EntitySet),
		singletonIndex: make(map[string]*Singleton),
		typeIndex:      make(map[string]*EntityMetadata),
	}}
}

// SetContainerName overrides the entity container name.
func (b *Builder) SetContainerName(name string) *Builder {
	if name != "" {
		b.model.container = name
	}
	return b
}

// AddEntitySet registers entity's type and an entity set for it. An empty name
// uses the type's default entity set name.
func (b *Builder) AddEntitySet(name string, entity interface{}) (*EntitySet, error) {
	entityType, err := b.addEntityType(entity)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = entityType.EntitySetName
	}

	folded := cases.Fold().String(name)
	if _, exists := b.model.entitySetIndex[folded]; exists {
		return nil, fmt.Errorf("entity set %s is already registered", name)
	}
	set := &EntitySet{Name: name, EntityType: entityType, bindings: make(map[string]string)}
	b.model.entitySets = append(b.model.entitySets, set)
	b.model.entitySetIndex[folded] = set
	return set, nil
}

// AddDerivedType registers entity as an entity type deriving from base. The
// derived type inherits the key of its base.
func (b *Builder) AddDerivedType(entity, base interface{}) (*EntityMetadata, error) {
	baseType, err := b.addEntityType(base)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		return nil, fmt.Errorf("entity must be a struct, got nil")
	}
	derivedType := dereferenceType(reflect.TypeOf(entity))
	if existing, ok := b.model.typeIndex[derivedType.Name()]; ok {
		return existing, nil
	}
	derived, err := analyzeDerived(entity, baseType)
	if err != nil {
		return nil, err
	}
	b.registerType(derived)
	return derived, nil
}

// AddSingleton registers entity's type and a singleton for it.
func (b *Builder) AddSingleton(name string, entity interface{}) (*Singleton, error) {
	if name == "" {
		return nil, fmt.Errorf("singleton name cannot be empty")
	}
	entityType, err := b.addEntityType(entity)
	if err != nil {
		return nil, err
	}
	folded := cases.Fold().String(name)
	if _, exists := b.model.singletonIndex[folded]; exists {
		return nil, fmt.Errorf("singleton %s is already registered", name)
	}
	s := &Singleton{Name: name, EntityType: entityType}
	b.model.singletons = append(b.model.singletons, s)
	b.model.singletonIndex[folded] = s
	return s, nil
}

// BindNavigation pins the target entity set of a navigation property.
func (b *Builder) BindNavigation(entitySet, navigation, target string) error {
	set, ok := b.model.FindEntitySet(entitySet)
	if !ok {
		return fmt.Errorf("entity set %s is not registered", entitySet)
	}
	if set.EntityType.FindNavigationProperty(navigation) == nil {
		return fmt.Errorf("entity type %s has no navigation property %s", set.EntityType.EntityName, navigation)
	}
	set.bindings[navigation] = target
	return nil
}

// AddFunction registers a function.
func (b *Builder) AddFunction(op Operation) error {
	op.IsAction = false
	return b.addOperation(op)
}

// AddAction registers an action.
func (b *Builder) AddAction(op Operation) error {
	op.IsAction = true
	return b.addOperation(op)
}

func (b *Builder) addOperation(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}
	if op.IsBound && op.BindingType == "" {
		return fmt.Errorf("bound operation %s requires a binding type", op.Name)
	}
	seen := make(map[string]struct{}, len(op.Parameters))
	for _, p := range op.Parameters {
		folded := strings.ToLower(p.Name)
		if _, dup := seen[folded]; dup || p.Name == "" {
			return fmt.Errorf("operation %s has an empty or duplicate parameter %q", op.Name, p.Name)
		}
		seen[folded] = struct{}{}
	}
	copied := op
	copied.Parameters = append([]Parameter(nil), op.Parameters...)
	b.model.operations = append(b.model.operations, &copied)
	return nil
}

func (b *Builder) addEntityType(entity interface{}) (*EntityMetadata, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity must be a struct, got nil")
	}
	t := dereferenceType(reflect.TypeOf(entity))
	if existing, ok := b.model.typeIndex[t.Name()]; ok {
		if existing.EntityType != t {
			return nil, fmt.Errorf("entity type name %s is used by two Go types", t.Name())
		}
		return existing, nil
	}

	entityType, err := AnalyzeEntity(entity)
	if err != nil {
		return nil, err
	}
	b.registerType(entityType)
	return entityType, nil
}

func (b *Builder) registerType(entityType *EntityMetadata) {
	entityType.Namespace = b.model.namespace
	b.model.entityTypes = append(b.model.entityTypes, entityType)
	b.model.typeIndex[entityType.EntityName] = entityType
}

// analyzeDerived analyzes a derived entity type. The key of the base type is
// inherited and any key of the derived struct is ignored.
func analyzeDerived(entity interface{}, base *EntityMetadata) (*EntityMetadata, error) {
	derived, err := analyzeWithoutKey(entity)
	if err != nil {
		return nil, err
	}
	derived.BaseTypeName = base.EntityName
	derived.KeyProperties = append([]PropertyMetadata(nil), base.KeyProperties...)
	return derived, nil
}

func analyzeWithoutKey(entity interface{}) (*EntityMetadata, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity must be a struct, got nil")
	}
	entityType := dereferenceType(reflect.TypeOf(entity))
	if entityType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct, got %s", entityType.Kind())
	}
	metadata := &EntityMetadata{
		EntityType:    entityType,
		EntityName:    entityType.Name(),
		EntitySetName: getEntitySetName(entityType),
	}
	for i := 0; i < entityType.NumField(); i++ {
		field := entityType.Field(i)
		if !field.IsExported() || field.Tag.Get("json") == "-" {
			continue
		}
		property, err := analyzeField(field, metadata)
		if err != nil {
			return nil, fmt.Errorf("error analyzing field %s: %w", field.Name, err)
		}
		metadata.Properties = append(metadata.Properties, property)
	}
	return metadata, nil
}

// Build validates the registrations and returns the immutable model.
func (b *Builder) Build() (*Model, error) {
	m := b.model
	if len(m.entitySets) == 0 && len(m.singletons) == 0 && len(m.operations) == 0 {
		return nil, fmt.Errorf("model %s declares no entity sets, singletons or operations", m.namespace)
	}

	for _, t := range m.entityTypes {
		for _, nav := range t.NavigationProperties() {
			if _, ok := m.typeIndex[nav.NavigationTarget]; !ok {
				return nil, fmt.Errorf("navigation property %s.%s targets unregistered entity type %s",
					t.EntityName, nav.Name, nav.NavigationTarget)
			}
		}
	}
	for _, set := range m.entitySets {
		for nav, target := range set.bindings {
			if _, ok := m.FindEntitySet(target); !ok {
				return nil, fmt.Errorf("navigation binding %s/%s targets unknown entity set %s", set.Name, nav, target)
			}
		}
	}
	for _, op := range m.operations {
		if op.IsBound {
			if _, ok := m.typeIndex[m.trimNamespace(op.BindingType)]; !ok {
				return nil, fmt.Errorf("operation %s is bound to unknown entity type %s", op.Name, op.BindingType)
			}
			op.BindingType = m.trimNamespace(op.BindingType)
		}
		if op.EntitySet != "" {
			if _, ok := m.FindEntitySet(op.EntitySet); !ok {
				return nil, fmt.Errorf("operation %s returns unknown entity set %s", op.Name, op.EntitySet)
			}
		}
	}

	csdl, err := renderCSDL(m)
	if err != nil {
		return nil, fmt.Errorf("failed to render metadata document: %w", err)
	}
	m.csdl = csdl
	m.fingerprint = xxhash.Sum64(csdl)

	// Further registrations must not leak into the built model.
	b.model = nil
	return m, nil
}
