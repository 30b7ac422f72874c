package path

import (
	"github.com/nlstn/go-odata-routing/internal/metadata"
)

// Kind identifies the kind of a resolved path segment.
type Kind int

const (
	KindServiceDocument Kind = iota
	KindMetadata
	KindEntitySet
	KindSingleton
	KindKey
	KindNavigation
	KindNavigationLink
	KindProperty
	KindCast
	KindFunction
	KindAction
	KindFunctionImport
	KindActionImport
	KindCount
	KindValue
)

var kindNames = [...]string{
	KindServiceDocument: "ServiceDocument",
	KindMetadata:        "Metadata",
	KindEntitySet:       "EntitySet",
	KindSingleton:       "Singleton",
	KindKey:             "Key",
	KindNavigation:      "Navigation",
	KindNavigationLink:  "NavigationLink",
	KindProperty:        "Property",
	KindCast:            "Cast",
	KindFunction:        "Function",
	KindAction:          "Action",
	KindFunctionImport:  "FunctionImport",
	KindActionImport:    "ActionImport",
	KindCount:           "Count",
	KindValue:           "Value",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Segment is one resolved component of an OData path.
type Segment interface {
	Kind() Kind
	// EdmType is the qualified EDM type the segment yields, e.g.
	// Collection(NS.Student), NS.Student or Edm.Int32.
	EdmType() string
	// Identifier is the text the segment stands for in the URL.
	Identifier() string
}

// ParameterValue is a typed value with its EDM type, written under the $key
// route value for handlers that bind keys from the URI.
type ParameterValue struct {
	EdmType string
	Value   any
}

func collectionOf(edmType string) string {
	return "Collection(" + edmType + ")"
}

// EntitySetSegment addresses an entity set.
type EntitySetSegment struct {
	EntitySet *metadata.EntitySet
}

func (s *EntitySetSegment) Kind() Kind { return KindEntitySet }
func (s *EntitySetSegment) EdmType() string {
	return collectionOf(s.EntitySet.EntityType.QualifiedName())
}
func (s *EntitySetSegment) Identifier() string { return s.EntitySet.Name }

// SingletonSegment addresses a singleton.
type SingletonSegment struct {
	Singleton *metadata.Singleton
}

func (s *SingletonSegment) Kind() Kind         { return KindSingleton }
func (s *SingletonSegment) EdmType() string    { return s.Singleton.EntityType.QualifiedName() }
func (s *SingletonSegment) Identifier() string { return s.Singleton.Name }

// KeySegment selects one entity of a collection. Keys holds the converted key
// values by key property name.
type KeySegment struct {
	Keys       map[string]any
	EntityType *metadata.EntityMetadata
	// EntitySet is the navigation source the key applies to. It is nil when the
	// collection came from a navigation without a resolvable target.
	EntitySet *metadata.EntitySet
}

func (s *KeySegment) Kind() Kind      { return KindKey }
func (s *KeySegment) EdmType() string { return s.EntityType.QualifiedName() }
func (s *KeySegment) Identifier() string {
	return "(" + FormatKeys(s.EntityType, s.Keys) + ")"
}

// NavigationSegment follows a navigation property.
type NavigationSegment struct {
	Property *metadata.PropertyMetadata
	Source   *metadata.EntityMetadata
	// Target is the entity set the navigation points to, used for link generation.
	Target     *metadata.EntitySet
	TargetType *metadata.EntityMetadata
}

func (s *NavigationSegment) Kind() Kind { return KindNavigation }
func (s *NavigationSegment) EdmType() string {
	if s.Property.NavigationIsArray {
		return collectionOf(s.TargetType.QualifiedName())
	}
	return s.TargetType.QualifiedName()
}
func (s *NavigationSegment) Identifier() string { return s.Property.Name }

// NavigationLinkSegment addresses the reference of a navigation ($ref).
type NavigationLinkSegment struct {
	Navigation *NavigationSegment
}

func (s *NavigationLinkSegment) Kind() Kind         { return KindNavigationLink }
func (s *NavigationLinkSegment) EdmType() string    { return s.Navigation.EdmType() }
func (s *NavigationLinkSegment) Identifier() string { return s.Navigation.Property.Name + "/$ref" }

// PropertySegment addresses a structural or complex property.
type PropertySegment struct {
	Property      *metadata.PropertyMetadata
	DeclaringType *metadata.EntityMetadata
	Namespace     string
}

func (s *PropertySegment) Kind() Kind { return KindProperty }
func (s *PropertySegment) EdmType() string {
	if s.Property.IsComplexType {
		return s.Namespace + "." + s.Property.ComplexTypeName
	}
	return s.Property.EdmType
}
func (s *PropertySegment) Identifier() string { return s.Property.Name }

// CastSegment narrows the previous segment to a derived entity type.
type CastSegment struct {
	Type       *metadata.EntityMetadata
	Collection bool
	EntitySet  *metadata.EntitySet
}

func (s *CastSegment) Kind() Kind { return KindCast }
func (s *CastSegment) EdmType() string {
	if s.Collection {
		return collectionOf(s.Type.QualifiedName())
	}
	return s.Type.QualifiedName()
}
func (s *CastSegment) Identifier() string { return s.Type.QualifiedName() }

// OperationSegment invokes a bound function or action, or an operation import.
// Parameters holds the converted function parameter values by name.
type OperationSegment struct {
	Operation  *metadata.Operation
	Namespace  string
	Parameters map[string]any
	// EntitySet is the entity set returned by an operation import, if any.
	EntitySet *metadata.EntitySet
}

func (s *OperationSegment) Kind() Kind {
	switch {
	case s.Operation.IsAction && s.Operation.IsBound:
		return KindAction
	case s.Operation.IsAction:
		return KindActionImport
	case s.Operation.IsBound:
		return KindFunction
	default:
		return KindFunctionImport
	}
}
func (s *OperationSegment) EdmType() string {
	if s.Operation.ReturnsCollection {
		return collectionOf(s.Operation.ReturnType)
	}
	return s.Operation.ReturnType
}
func (s *OperationSegment) Identifier() string {
	if s.Operation.IsBound {
		return s.Namespace + "." + s.Operation.Name
	}
	return s.Operation.Name
}

// CountSegment addresses the count of a collection ($count).
type CountSegment struct{}

func (CountSegment) Kind() Kind         { return KindCount }
func (CountSegment) EdmType() string    { return "Edm.Int32" }
func (CountSegment) Identifier() string { return "$count" }

// ValueSegment addresses the raw value of a property ($value).
type ValueSegment struct {
	ValueType string
}

func (s ValueSegment) Kind() Kind         { return KindValue }
func (s ValueSegment) EdmType() string    { return s.ValueType }
func (s ValueSegment) Identifier() string { return "$value" }

// MetadataSegment addresses the metadata document.
type MetadataSegment struct{}

func (MetadataSegment) Kind() Kind         { return KindMetadata }
func (MetadataSegment) EdmType() string    { return "" }
func (MetadataSegment) Identifier() string { return "$metadata" }

// ServiceDocumentSegment addresses the service document.
type ServiceDocumentSegment struct{}

func (ServiceDocumentSegment) Kind() Kind         { return KindServiceDocument }
func (ServiceDocumentSegment) EdmType() string    { return "" }
func (ServiceDocumentSegment) Identifier() string { return "" }

// EntityTypeOf reports the entity type a segment yields and whether it is a
// collection. ok is false for segments that do not yield entities.
func EntityTypeOf(seg Segment) (entityType *metadata.EntityMetadata, collection bool, ok bool) {
	switch s := seg.(type) {
	case *EntitySetSegment:
		return s.EntitySet.EntityType, true, true
	case *SingletonSegment:
		return s.Singleton.EntityType, false, true
	case *KeySegment:
		return s.EntityType, false, true
	case *NavigationSegment:
		return s.TargetType, s.Property.NavigationIsArray, true
	case *CastSegment:
		return s.Type, s.Collection, true
	case *OperationSegment:
		// Operations only yield entities when they name the entity set they return.
		if s.EntitySet != nil && s.Operation.ReturnType == s.EntitySet.EntityType.QualifiedName() {
			return s.EntitySet.EntityType, s.Operation.ReturnsCollection, true
		}
	}
	return nil, false, false
}

// NavigationSourceOf reports the entity set a segment's entities belong to.
func NavigationSourceOf(seg Segment) *metadata.EntitySet {
	switch s := seg.(type) {
	case *EntitySetSegment:
		return s.EntitySet
	case *KeySegment:
		return s.EntitySet
	case *NavigationSegment:
		return s.Target
	case *CastSegment:
		return s.EntitySet
	case *OperationSegment:
		return s.EntitySet
	}
	return nil
}
