package template

import (
	"github.com/nlstn/go-odata-routing/internal/path"
)

// MetadataTemplate matches the $metadata document. It needs no model data.
type MetadataTemplate struct{}

func (MetadataTemplate) Kind() path.Kind     { return path.KindMetadata }
func (MetadataTemplate) Templates() []string { return []string{"$metadata"} }

func (MetadataTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, false); err != nil {
		return false, err
	}
	ctx.append(path.MetadataSegment{})
	return true, nil
}

// ServiceDocumentTemplate matches the service root.
type ServiceDocumentTemplate struct{}

func (ServiceDocumentTemplate) Kind() path.Kind     { return path.KindServiceDocument }
func (ServiceDocumentTemplate) Templates() []string { return []string{""} }

func (ServiceDocumentTemplate) TryTranslate(ctx *TranslateContext) (bool, error) {
	if err := checkContext(ctx, false); err != nil {
		return false, err
	}
	ctx.append(path.ServiceDocumentSegment{})
	return true, nil
}
