package metadata

import (
	"encoding/xml"
	"sort"
	"strconv"
)

type csdlEdmx struct {
	XMLName      xml.Name         `xml:"edmx:Edmx"`
	Xmlns        string           `xml:"xmlns:edmx,attr"`
	Version      string           `xml:"Version,attr"`
	DataServices csdlDataServices `xml:"edmx:DataServices"`
}

type csdlDataServices struct {
	Schema csdlSchema `xml:"Schema"`
}

type csdlSchema struct {
	Xmlns           string              `xml:"xmlns,attr"`
	Namespace       string              `xml:"Namespace,attr"`
	EntityType      []csdlEntityType    `xml:"EntityType"`
	ComplexType     []csdlComplexType   `xml:"ComplexType"`
	Function        []csdlOperation     `xml:"Function"`
	Action          []csdlOperation     `xml:"Action"`
	EntityContainer csdlEntityContainer `xml:"EntityContainer"`
}

type csdlEntityType struct {
	Name               string                   `xml:"Name,attr"`
	BaseType           string                   `xml:"BaseType,attr,omitempty"`
	Key                *csdlKey                 `xml:"Key,omitempty"`
	Property           []csdlProperty           `xml:"Property"`
	NavigationProperty []csdlNavigationProperty `xml:"NavigationProperty"`
}

type csdlKey struct {
	PropertyRef []csdlPropertyRef `xml:"PropertyRef"`
}

type csdlPropertyRef struct {
	Name string `xml:"Name,attr"`
}

type csdlComplexType struct {
	Name     string         `xml:"Name,attr"`
	Property []csdlProperty `xml:"Property"`
}

type csdlProperty struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
}

type csdlNavigationProperty struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
}

type csdlOperation struct {
	Name       string          `xml:"Name,attr"`
	IsBound    bool            `xml:"IsBound,attr,omitempty"`
	Parameter  []csdlParameter `xml:"Parameter"`
	ReturnType *csdlReturnType `xml:"ReturnType,omitempty"`
}

type csdlParameter struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr,omitempty"`
}

type csdlReturnType struct {
	Type string `xml:"Type,attr"`
}

type csdlEntityContainer struct {
	Name           string                `xml:"Name,attr"`
	EntitySet      []csdlEntitySet       `xml:"EntitySet"`
	Singleton      []csdlSingleton       `xml:"Singleton"`
	FunctionImport []csdlOperationImport `xml:"FunctionImport"`
	ActionImport   []csdlOperationImport `xml:"ActionImport"`
}

type csdlEntitySet struct {
	Name                      string                          `xml:"Name,attr"`
	EntityType                string                          `xml:"EntityType,attr"`
	NavigationPropertyBinding []csdlNavigationPropertyBinding `xml:"NavigationPropertyBinding"`
}

type csdlSingleton struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type csdlNavigationPropertyBinding struct {
	Path   string `xml:"Path,attr"`
	Target string `xml:"Target,attr"`
}

type csdlOperationImport struct {
	Name      string `xml:"Name,attr"`
	Function  string `xml:"Function,attr,omitempty"`
	Action    string `xml:"Action,attr,omitempty"`
	EntitySet string `xml:"EntitySet,attr,omitempty"`
}

// renderCSDL renders the model as an OData v4 CSDL XML document.
// The output is deterministic for a given set of registrations.
func renderCSDL(m *Model) ([]byte, error) {
	schema := csdlSchema{
		Xmlns:     "http://docs.oasis-open.org/odata/ns/edm",
		Namespace: m.namespace,
		EntityContainer: csdlEntityContainer{
			Name: m.container,
		},
	}

	complexSeen := make(map[string]struct{})
	for _, t := range m.entityTypes {
		et := csdlEntityType{Name: t.EntityName}
		if t.BaseTypeName != "" {
			et.BaseType = m.namespace + "." + t.BaseTypeName
		} else {
			et.Key = &csdlKey{}
			for _, key := range t.KeyProperties {
				et.Key.PropertyRef = append(et.Key.PropertyRef, csdlPropertyRef{Name: key.Name})
			}
		}

		for i := range t.Properties {
			prop := &t.Properties[i]
			switch {
			case prop.IsNavigationProp:
				navType := m.namespace + "." + prop.NavigationTarget
				if prop.NavigationIsArray {
					navType = "Collection(" + navType + ")"
				}
				et.NavigationProperty = append(et.NavigationProperty, csdlNavigationProperty{
					Name: prop.Name,
					Type: navType,
				})
			case prop.IsComplexType:
				et.Property = append(et.Property, csdlProperty{
					Name:     prop.Name,
					Type:     m.namespace + "." + prop.ComplexTypeName,
					Nullable: nullableAttr(prop),
				})
				if _, ok := complexSeen[prop.ComplexTypeName]; !ok {
					complexSeen[prop.ComplexTypeName] = struct{}{}
					ct := csdlComplexType{Name: prop.ComplexTypeName}
					for j := range prop.ComplexTypeFields {
						field := &prop.ComplexTypeFields[j]
						if field.EdmType == "" {
							continue
						}
						ct.Property = append(ct.Property, csdlProperty{Name: field.Name, Type: field.EdmType, Nullable: nullableAttr(field)})
					}
					schema.ComplexType = append(schema.ComplexType, ct)
				}
			default:
				et.Property = append(et.Property, csdlProperty{
					Name:     prop.Name,
					Type:     prop.EdmType,
					Nullable: nullableAttr(prop),
				})
			}
		}
		schema.EntityType = append(schema.EntityType, et)
	}

	for _, op := range m.operations {
		rendered := csdlOperation{Name: op.Name, IsBound: op.IsBound}
		if op.IsBound {
			bindingType := m.namespace + "." + op.BindingType
			if op.BindingCollection {
				bindingType = "Collection(" + bindingType + ")"
			}
			rendered.Parameter = append(rendered.Parameter, csdlParameter{Name: "bindingParameter", Type: bindingType})
		}
		for _, p := range op.Parameters {
			param := csdlParameter{Name: p.Name, Type: p.Type}
			if p.Optional {
				param.Nullable = "true"
			}
			rendered.Parameter = append(rendered.Parameter, param)
		}
		if op.ReturnType != "" {
			returnType := op.ReturnType
			if op.ReturnsCollection {
				returnType = "Collection(" + returnType + ")"
			}
			rendered.ReturnType = &csdlReturnType{Type: returnType}
		}

		if op.IsAction {
			schema.Action = append(schema.Action, rendered)
		} else {
			schema.Function = append(schema.Function, rendered)
		}
		if !op.IsBound {
			imp := csdlOperationImport{Name: op.Name, EntitySet: op.EntitySet}
			if op.IsAction {
				imp.Action = m.namespace + "." + op.Name
				schema.EntityContainer.ActionImport = append(schema.EntityContainer.ActionImport, imp)
			} else {
				imp.Function = m.namespace + "." + op.Name
				schema.EntityContainer.FunctionImport = append(schema.EntityContainer.FunctionImport, imp)
			}
		}
	}

	for _, set := range m.entitySets {
		rendered := csdlEntitySet{Name: set.Name, EntityType: set.EntityType.QualifiedName()}
		for _, nav := range set.EntityType.NavigationProperties() {
			if target, ok := m.NavigationTarget(set, nav); ok {
				rendered.NavigationPropertyBinding = append(rendered.NavigationPropertyBinding,
					csdlNavigationPropertyBinding{Path: nav.Name, Target: target.Name})
			}
		}
		sort.Slice(rendered.NavigationPropertyBinding, func(i, j int) bool {
			return rendered.NavigationPropertyBinding[i].Path < rendered.NavigationPropertyBinding[j].Path
		})
		schema.EntityContainer.EntitySet = append(schema.EntityContainer.EntitySet, rendered)
	}
	for _, s := range m.singletons {
		schema.EntityContainer.Singleton = append(schema.EntityContainer.Singleton,
			csdlSingleton{Name: s.Name, Type: s.EntityType.QualifiedName()})
	}

	doc := csdlEdmx{
		Xmlns:        "http://docs.oasis-open.org/odata/ns/edmx",
		Version:      "4.0",
		DataServices: csdlDataServices{Schema: schema},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func nullableAttr(prop *PropertyMetadata) string {
	if prop.IsNullable() {
		return ""
	}
	return strconv.FormatBool(false)
}
