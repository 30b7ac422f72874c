// Package datasource supplies EDM models and sample data per named data source.
// The model of a data source is resolved per request by the routing policy, so
// two data sources can serve different entity sets under the same route.
package datasource

import (
	"context"
	"fmt"
	"reflect"

	"github.com/nlstn/go-odata-routing/internal/literal"
	"github.com/nlstn/go-odata-routing/internal/metadata"
)

// DataSource provides the model and the data of one data source.
type DataSource interface {
	// GetEdmModel returns the model. It is built on the first call and the same
	// model is returned afterwards.
	GetEdmModel() (*metadata.Model, error)
	// Get loads the entity of target.Type whose key literal is key, e.g. 42 or
	// FirstName='a',LastName='b'.
	Get(ctx context.Context, key string, target *EntityObject) error
	// GetCollection loads every entity of entityType.
	GetCollection(ctx context.Context, entityType *metadata.EntityMetadata, collection *[]EntityObject) error
	// GetNavigation loads the entities source points to through navigation.
	GetNavigation(ctx context.Context, source *EntityObject, navigation string) ([]EntityObject, error)
	// GetProperty returns the value of a structural property of entity.
	GetProperty(name string, entity *EntityObject) (any, bool)
}

// EntityObject is an untyped entity: the values of its structural properties
// keyed by property name.
type EntityObject struct {
	Type   *metadata.EntityMetadata
	Values map[string]any
}

// NewEntityObject creates an empty entity of the given type.
func NewEntityObject(entityType *metadata.EntityMetadata) *EntityObject {
	return &EntityObject{Type: entityType, Values: make(map[string]any)}
}

// Fields returns the JSON names of the populated properties in declaration order.
func (e *EntityObject) Fields() []string {
	if e == nil || e.Type == nil {
		return nil
	}
	var fields []string
	for _, prop := range e.Type.Properties {
		if _, ok := e.Values[prop.JsonName]; ok {
			fields = append(fields, prop.JsonName)
		}
	}
	return fields
}

// Keys returns the key values of e by key property name.
func (e *EntityObject) Keys() map[string]any {
	keys := make(map[string]any, len(e.Type.KeyProperties))
	for _, key := range e.Type.KeyProperties {
		keys[key.Name] = e.Values[key.JsonName]
	}
	return keys
}

// GetProperty returns the value of a structural property by name or JSON name.
func GetProperty(name string, entity *EntityObject) (any, bool) {
	if entity == nil || entity.Type == nil {
		return nil, false
	}
	prop := entity.Type.FindStructuralProperty(name)
	if prop == nil {
		return nil, false
	}
	v, ok := entity.Values[prop.JsonName]
	return v, ok
}

// entityFromStruct copies the structural properties of a loaded Go value.
func entityFromStruct(entityType *metadata.EntityMetadata, value reflect.Value) EntityObject {
	for value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	obj := EntityObject{Type: entityType, Values: make(map[string]any, len(entityType.Properties))}
	for _, prop := range entityType.Properties {
		if prop.IsNavigationProp {
			continue
		}
		field := value.FieldByName(prop.FieldName)
		if !field.IsValid() {
			continue
		}
		if prop.IsComplexType {
			obj.Values[prop.JsonName] = complexValue(prop, field)
			continue
		}
		obj.Values[prop.JsonName] = field.Interface()
	}
	return obj
}

func complexValue(prop metadata.PropertyMetadata, field reflect.Value) map[string]any {
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil
		}
		field = field.Elem()
	}
	out := make(map[string]any, len(prop.ComplexTypeFields))
	for _, nested := range prop.ComplexTypeFields {
		if f := field.FieldByName(nested.FieldName); f.IsValid() {
			out[nested.JsonName] = f.Interface()
		}
	}
	return out
}

// parseKey converts a key literal against the key properties of entityType.
// The result maps database column names to typed values.
func parseKey(entityType *metadata.EntityMetadata, key string) (map[string]any, error) {
	pairs, ok := literal.TryParse(key)
	if !ok {
		return nil, fmt.Errorf("malformed key %q", key)
	}

	columns := make(map[string]any, len(entityType.KeyProperties))
	for _, prop := range entityType.KeyProperties {
		raw, ok := pairs.Get(prop.Name)
		if !ok && pairs.IsUnnamed() && len(entityType.KeyProperties) == 1 {
			raw, ok = pairs.Get(literal.UnnamedKey)
		}
		if !ok {
			return nil, fmt.Errorf("key %q has no value for %s", key, prop.Name)
		}
		value, err := literal.Convert(raw, prop.EdmType)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", key, err)
		}
		columns[prop.ColumnName] = value
	}
	if pairs.Len() != len(columns) {
		return nil, fmt.Errorf("key %q does not match the key of %s", key, entityType.EntityName)
	}
	return columns, nil
}
