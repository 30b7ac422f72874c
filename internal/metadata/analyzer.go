package metadata

import (
	"fmt"
	"reflect"
	"strings"
)

// EntityMetadata holds metadata information about an OData entity type
type EntityMetadata struct {
	EntityType    reflect.Type
	EntityName    string
	EntitySetName string             // Default entity set name (EntitySetName() method or pluralized type name)
	Namespace     string             // Schema namespace, set when the type is added to a model
	BaseTypeName  string             // Name of the base entity type for derived types (empty for root types)
	Properties    []PropertyMetadata // Structural, complex and navigation properties in declaration order
	KeyProperties []PropertyMetadata // Key properties in declaration order (composite keys have several)
}

// PropertyMetadata holds metadata information about an entity property
type PropertyMetadata struct {
	Name              string
	Type              reflect.Type
	FieldName         string
	ColumnName        string // Database column name (respects GORM column: and odata:"column:..." tags)
	JsonName          string
	EdmType           string // EDM primitive type name for structural properties (e.g. Edm.Int32)
	IsKey             bool
	IsRequired        bool
	Nullable          *bool  // Explicit nullable override (nil means use default behavior)
	GormTag           string // GORM struct tag, read for navigation and column hints
	ODataTag          string // OData struct tag (odata:"...")
	IsNavigationProp  bool
	NavigationTarget  string // Entity type name for navigation properties
	NavigationIsArray bool   // True for collection navigation properties
	// Referential constraints for navigation properties
	ReferentialConstraints map[string]string // Maps dependent property to principal property
	IsComplexType          bool              // True if this property is a complex type (embedded struct)
	ComplexTypeName        string
	ComplexTypeFields      []PropertyMetadata
}

// AnalyzeEntity extracts metadata from a Go struct for OData usage
func AnalyzeEntity(entity interface{}) (*EntityMetadata, error) {
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
		Properties:    make([]PropertyMetadata, 0, entityType.NumField()),
	}

	// Analyze struct fields
	for i := 0; i < entityType.NumField(); i++ {
		field := entityType.Field(i)

		// Skip unexported fields
		if !field.IsExported() || field.Tag.Get("json") == "-" {
			continue
		}

		property, err := analyzeField(field, metadata)
		if err != nil {
			return nil, fmt.Errorf("error analyzing field %s: %w", field.Name, err)
		}
		metadata.Properties = append(metadata.Properties, property)
	}

	// Validate that we have at least one key property
	if len(metadata.KeyProperties) == 0 {
		return nil, fmt.Errorf("entity %s must have at least one key property (use `odata:\"key\"` tag or name field 'ID')", metadata.EntityName)
	}

	return metadata, nil
}

// analyzeField analyzes a single struct field and creates a PropertyMetadata
func analyzeField(field reflect.StructField, metadata *EntityMetadata) (PropertyMetadata, error) {
	property := PropertyMetadata{
		Name:      field.Name,
		Type:      field.Type,
		FieldName: field.Name,
		JsonName:  getJsonName(field),
		GormTag:   field.Tag.Get("gorm"),
		ODataTag:  field.Tag.Get("odata"),
	}

	// Check if this is a navigation property or complex type
	analyzeNavigationProperty(&property, field)

	property.ColumnName = getColumnNameFromProperty(&property)

	analyzeODataTags(&property, field, metadata)

	if !property.IsNavigationProp && !property.IsComplexType {
		edmType, ok := EdmTypeOf(field.Type)
		if !ok {
			return PropertyMetadata{}, fmt.Errorf("unsupported property type %s", field.Type)
		}
		property.EdmType = edmType
	}

	if property.IsKey {
		if property.IsNavigationProp || property.IsComplexType {
			return PropertyMetadata{}, fmt.Errorf("key property %s must be a primitive type", property.Name)
		}
		if isTypeNullable(property.Type) {
			return PropertyMetadata{}, fmt.Errorf("key property %s cannot be nullable", property.Name)
		}
		upsertKeyProperty(metadata, property)
	}

	return property, nil
}

// analyzeNavigationProperty determines if a field is a navigation property or complex type
func analyzeNavigationProperty(property *PropertyMetadata, field reflect.StructField) {
	fieldType := field.Type
	isSlice := fieldType.Kind() == reflect.Slice
	if isSlice {
		fieldType = fieldType.Elem()
	}
	fieldType = dereferenceType(fieldType)

	if fieldType.Kind() != reflect.Struct || isPrimitiveStruct(fieldType) {
		return
	}

	gormTag := field.Tag.Get("gorm")
	odataTag := field.Tag.Get("odata")

	// Check if it's a navigation property (has foreign key, references, or many2many in either tag)
	hasNavInGorm := strings.Contains(gormTag, "foreignKey") || strings.Contains(gormTag, "references") || strings.Contains(gormTag, "many2many")
	hasNavInOData := strings.Contains(odataTag, "foreignKey:") || strings.Contains(odataTag, "references:") || strings.Contains(odataTag, "many2many:")

	switch {
	case hasNavInGorm || hasNavInOData:
		property.IsNavigationProp = true
		property.NavigationTarget = fieldType.Name()
		property.NavigationIsArray = isSlice

		// Prefer odata tag constraints, fallback to gorm
		if hasNavInOData {
			property.ReferentialConstraints = extractReferentialConstraints(odataTag, ",")
		} else {
			property.ReferentialConstraints = extractReferentialConstraints(gormTag, ";")
		}
	case !isSlice && (strings.Contains(gormTag, "embedded") || strings.Contains(odataTag, "embedded")):
		property.IsComplexType = true
		property.ComplexTypeName = fieldType.Name()
		analyzeComplexTypeFields(property, fieldType)
	}
}

// analyzeComplexTypeFields inspects the fields of an embedded complex type and captures their metadata.
func analyzeComplexTypeFields(property *PropertyMetadata, structType reflect.Type) {
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}

		nested := PropertyMetadata{
			Name:      field.Name,
			Type:      field.Type,
			FieldName: field.Name,
			JsonName:  getJsonName(field),
			GormTag:   field.Tag.Get("gorm"),
			ODataTag:  field.Tag.Get("odata"),
		}
		if edmType, ok := EdmTypeOf(field.Type); ok {
			nested.EdmType = edmType
		}
		nested.ColumnName = getColumnNameFromProperty(&nested)
		property.ComplexTypeFields = append(property.ComplexTypeFields, nested)
	}
}

// extractReferentialConstraints extracts referential constraints from a tag whose
// parts are separated by sep. Format: "foreignKey:UserID;references:ID" or just
// "foreignKey:UserID" (references defaults to "ID").
func extractReferentialConstraints(tag, sep string) map[string]string {
	constraints := make(map[string]string)

	var foreignKey, references string
	for _, part := range strings.Split(tag, sep) {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "foreignKey:") {
			foreignKey = strings.TrimPrefix(part, "foreignKey:")
		} else if strings.HasPrefix(part, "references:") {
			references = strings.TrimPrefix(part, "references:")
		}
	}

	if foreignKey != "" {
		if references == "" {
			references = "ID"
		}
		constraints[foreignKey] = references
	}

	return constraints
}

// analyzeODataTags processes OData-specific tags on a field
func analyzeODataTags(property *PropertyMetadata, field reflect.StructField, metadata *EntityMetadata) {
	if strings.Contains(property.GormTag, "primaryKey") {
		property.IsKey = true
	}
	for _, part := range strings.Split(property.ODataTag, ",") {
		switch part = strings.TrimSpace(part); {
		case part == "key":
			property.IsKey = true
		case part == "required":
			property.IsRequired = true
		case part == "nullable":
			nullable := true
			property.Nullable = &nullable
		case part == "nullable=false":
			nullable := false
			property.Nullable = &nullable
		}
	}

	// Auto-detect key if no explicit key is set and field name is "ID"
	if len(metadata.KeyProperties) == 0 && field.Name == "ID" && !hasExplicitKey(metadata.EntityType) {
		property.IsKey = true
	}
}

// hasExplicitKey reports whether any field of the struct carries odata:"key"
// or gorm:"primaryKey".
func hasExplicitKey(entityType reflect.Type) bool {
	for i := 0; i < entityType.NumField(); i++ {
		field := entityType.Field(i)
		if strings.Contains(field.Tag.Get("gorm"), "primaryKey") {
			return true
		}
		for _, part := range strings.Split(field.Tag.Get("odata"), ",") {
			if strings.TrimSpace(part) == "key" {
				return true
			}
		}
	}
	return false
}

func upsertKeyProperty(metadata *EntityMetadata, property PropertyMetadata) {
	for i := range metadata.KeyProperties {
		if metadata.KeyProperties[i].Name == property.Name {
			metadata.KeyProperties[i] = property
			return
		}
	}
	metadata.KeyProperties = append(metadata.KeyProperties, property)
}

// getJsonName extracts the JSON field name from struct tags
func getJsonName(field reflect.StructField) string {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "" {
		return field.Name
	}

	// Handle json:",omitempty" or json:"fieldname,omitempty"
	if name, _, _ := strings.Cut(jsonTag, ","); name != "" {
		return name
	}
	return field.Name
}

// pluralize creates a simple pluralized form of the entity name
func pluralize(word string) string {
	if word == "" {
		return word
	}

	switch {
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(rune(word[len(word)-2])):
		// "Category" -> "Categories", but "Key" -> "Keys"
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") || strings.HasSuffix(word, "z") ||
		strings.HasSuffix(word, "ch") || strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}

// getEntitySetName determines the entity set name for an entity type.
// It first checks if the entity implements an EntitySetName() method,
// similar to how GORM's TableName() works. If not, it falls back to
// pluralizing the entity name.
func getEntitySetName(entityType reflect.Type) string {
	instance := reflect.New(entityType).Interface()
	if named, ok := instance.(interface{ EntitySetName() string }); ok {
		if name := named.EntitySetName(); name != "" {
			return name
		}
	}
	return pluralize(entityType.Name())
}

// isTypeNullable checks if a Go type can represent null values
func isTypeNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map:
		return true
	case reflect.Slice:
		// []byte is Edm.Binary and follows the pointer rule like other primitives
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// IsNullable reports whether the property accepts null, honouring an explicit
// odata:"nullable" override.
func (property *PropertyMetadata) IsNullable() bool {
	if property.Nullable != nil {
		return *property.Nullable
	}
	if property.IsKey || property.IsRequired {
		return false
	}
	return isTypeNullable(property.Type) && !strings.Contains(property.GormTag, "not null")
}

// FindProperty returns the property metadata matching the provided name or JSON name.
// Returns nil if no property matches.
func (metadata *EntityMetadata) FindProperty(name string) *PropertyMetadata {
	if metadata == nil {
		return nil
	}

	for i := range metadata.Properties {
		prop := &metadata.Properties[i]
		if prop.Name == name || prop.JsonName == name {
			return prop
		}
	}

	return nil
}

// FindNavigationProperty returns the metadata for the requested navigation property.
// Returns nil if the property does not exist or is not a navigation property.
func (metadata *EntityMetadata) FindNavigationProperty(name string) *PropertyMetadata {
	prop := metadata.FindProperty(name)
	if prop != nil && prop.IsNavigationProp {
		return prop
	}
	return nil
}

// FindStructuralProperty returns metadata for structural properties, complex
// types included. Returns nil for navigation properties or unknown names.
func (metadata *EntityMetadata) FindStructuralProperty(name string) *PropertyMetadata {
	prop := metadata.FindProperty(name)
	if prop != nil && !prop.IsNavigationProp {
		return prop
	}
	return nil
}

// FindComplexField returns a nested property within a complex type by struct field or JSON name.
func (property *PropertyMetadata) FindComplexField(name string) *PropertyMetadata {
	if property == nil || !property.IsComplexType {
		return nil
	}
	for i := range property.ComplexTypeFields {
		field := &property.ComplexTypeFields[i]
		if field.Name == name || field.JsonName == name {
			return field
		}
	}
	return nil
}

// QualifiedName returns the namespace-qualified type name, e.g. NS.Product.
func (metadata *EntityMetadata) QualifiedName() string {
	if metadata.Namespace == "" {
		return metadata.EntityName
	}
	return metadata.Namespace + "." + metadata.EntityName
}

// KeyNames returns the key property names in declaration order.
func (metadata *EntityMetadata) KeyNames() []string {
	names := make([]string, len(metadata.KeyProperties))
	for i, key := range metadata.KeyProperties {
		names[i] = key.Name
	}
	return names
}

// NavigationProperties returns the navigation properties in declaration order.
func (metadata *EntityMetadata) NavigationProperties() []*PropertyMetadata {
	var navs []*PropertyMetadata
	for i := range metadata.Properties {
		if metadata.Properties[i].IsNavigationProp {
			navs = append(navs, &metadata.Properties[i])
		}
	}
	return navs
}

// dereferenceType unwraps pointer types to obtain the underlying type.
func dereferenceType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// getColumnNameFromProperty computes the database column name for a property
// This respects OData column: tags (preferred) and GORM column: tags, then falls back to snake_case conversion
func getColumnNameFromProperty(prop *PropertyMetadata) string {
	if column := tagValue(prop.ODataTag, ",", "column:"); column != "" {
		return column
	}
	if column := tagValue(prop.GormTag, ";", "column:"); column != "" {
		return column
	}
	return toSnakeCase(prop.Name)
}

func tagValue(tag, sep, prefix string) string {
	if tag == "" {
		return ""
	}
	for _, part := range strings.Split(tag, sep) {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, prefix) {
			return strings.TrimPrefix(part, prefix)
		}
	}
	return ""
}

// toSnakeCase converts a camelCase or PascalCase string to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// For "ProductID", we want "product_id" not "product_i_d"
			prevRune := rune(s[i-1])
			if prevRune >= 'a' && prevRune <= 'z' {
				result.WriteRune('_')
			} else if i < len(s)-1 {
				// "XMLParser" -> "xml_parser"
				nextRune := rune(s[i+1])
				if nextRune >= 'a' && nextRune <= 'z' {
					result.WriteRune('_')
				}
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
