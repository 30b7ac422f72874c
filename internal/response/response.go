// Package response writes OData JSON payloads and error bodies.
package response

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderContentType  = "Content-Type"
	HeaderODataVersion = "OData-Version"
	HeaderETag         = "ETag"
	ODataVersion       = "4.0"

	ContentTypeXML  = "application/xml"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Metadata levels of the odata.metadata format parameter.
const (
	MetadataMinimal = "minimal"
	MetadataFull    = "full"
	MetadataNone    = "none"
)

// ODataError is the body of an OData JSON error response.
type ODataError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Target  string        `json:"target,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail is one entry of ODataError.Details.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error ODataError `json:"error"`
}

// WriteError writes an OData JSON error with the HTTP status as code. details
// is omitted when empty.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message, details string) error {
	body := ODataError{Code: strconv.Itoa(status), Message: message}
	if details != "" {
		body.Details = []ErrorDetail{{Message: details}}
	}
	return writeJSON(w, r, status, errorEnvelope{Error: body})
}

// GetODataMetadataLevel returns the odata.metadata parameter requested through
// $format or the Accept header, defaulting to minimal.
func GetODataMetadataLevel(r *http.Request) string {
	if r == nil {
		return MetadataMinimal
	}
	candidates := []string{r.URL.Query().Get("$format")}
	candidates = append(candidates, strings.Split(r.Header.Get("Accept"), ",")...)
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		_, params, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		switch level := strings.ToLower(params["odata.metadata"]); level {
		case MetadataMinimal, MetadataFull, MetadataNone:
			return level
		}
	}
	return MetadataMinimal
}

// SetODataVersionHeader sets the OData-Version response header.
func SetODataVersionHeader(w http.ResponseWriter) {
	w.Header().Set(HeaderODataVersion, ODataVersion)
}

// BuildBaseURL returns scheme://host of the request.
func BuildBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}

// ServiceRoot returns the absolute URL of the service mounted under prefix.
func ServiceRoot(r *http.Request, prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return BuildBaseURL(r)
	}
	return BuildBaseURL(r) + "/" + prefix
}

// contextURL builds serviceRoot/$metadata#fragment. The annotation is left out
// for odata.metadata=none.
func contextURL(r *http.Request, serviceRoot, fragment string) string {
	if GetODataMetadataLevel(r) == MetadataNone {
		return ""
	}
	return serviceRoot + "/$metadata#" + fragment
}

// WriteODataCollection writes a collection payload. count and nextLink are
// optional.
func WriteODataCollection(w http.ResponseWriter, r *http.Request, serviceRoot, contextPath string, values []interface{}, count *int64, nextLink *string) error {
	if values == nil {
		values = []interface{}{}
	}
	body := orderedBody{}
	body.add("@odata.context", contextURL(r, serviceRoot, contextPath))
	if count != nil {
		body.add("@odata.count", *count)
	}
	body.add("value", values)
	if nextLink != nil {
		body.add("@odata.nextLink", *nextLink)
	}
	return writeJSON(w, r, http.StatusOK, body)
}

// WriteEntity writes a single entity. entity keys are written after the
// context annotation in the order given by fields.
func WriteEntity(w http.ResponseWriter, r *http.Request, serviceRoot, contextPath string, fields []string, entity map[string]interface{}) error {
	body := orderedBody{}
	body.add("@odata.context", contextURL(r, serviceRoot, contextPath+"/$entity"))
	for _, name := range fields {
		if v, ok := entity[name]; ok {
			body.add(name, v)
		}
	}
	return writeJSON(w, r, http.StatusOK, body)
}

// WriteProperty writes an individual property value.
func WriteProperty(w http.ResponseWriter, r *http.Request, serviceRoot, contextPath string, value interface{}) error {
	body := orderedBody{}
	body.add("@odata.context", contextURL(r, serviceRoot, contextPath))
	body.add("value", value)
	return writeJSON(w, r, http.StatusOK, body)
}

// WriteRawValue writes a primitive value as text/plain ($value).
func WriteRawValue(w http.ResponseWriter, value interface{}) error {
	w.Header().Set(HeaderContentType, ContentTypeText)
	SetODataVersionHeader(w)
	w.WriteHeader(http.StatusOK)
	_, err := fmt.Fprint(w, value)
	return err
}

// WriteEntityReference writes the reference of one entity. entityID is the
// entity path relative to the service root, e.g. Schools(1).
func WriteEntityReference(w http.ResponseWriter, r *http.Request, serviceRoot, entityID string) error {
	body := orderedBody{}
	body.add("@odata.context", contextURL(r, serviceRoot, "$ref"))
	body.add("@odata.id", serviceRoot+"/"+entityID)
	return writeJSON(w, r, http.StatusOK, body)
}

// WriteEntityReferenceCollection writes the references of several entities.
func WriteEntityReferenceCollection(w http.ResponseWriter, r *http.Request, serviceRoot string, entityIDs []string) error {
	refs := make([]interface{}, len(entityIDs))
	for i, id := range entityIDs {
		refs[i] = map[string]string{"@odata.id": serviceRoot + "/" + id}
	}
	body := orderedBody{}
	body.add("@odata.context", contextURL(r, serviceRoot, "Collection($ref)"))
	body.add("value", refs)
	return writeJSON(w, r, http.StatusOK, body)
}

// ServiceDocumentEntry is one entity set, singleton or function import listed
// in the service document.
type ServiceDocumentEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// WriteServiceDocument writes the service document of serviceRoot.
func WriteServiceDocument(w http.ResponseWriter, r *http.Request, serviceRoot string, entries []ServiceDocumentEntry) error {
	if entries == nil {
		entries = []ServiceDocumentEntry{}
	}
	body := orderedBody{}
	if GetODataMetadataLevel(r) != MetadataNone {
		body.add("@odata.context", serviceRoot+"/$metadata")
	}
	body.add("value", entries)
	return writeJSON(w, r, http.StatusOK, body)
}

// WriteMetadataDocument writes a CSDL XML document with its entity tag.
func WriteMetadataDocument(w http.ResponseWriter, document []byte, etag string) error {
	w.Header().Set(HeaderContentType, ContentTypeXML)
	if etag != "" {
		w.Header().Set(HeaderETag, etag)
	}
	SetODataVersionHeader(w)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(document)
	return err
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) error {
	w.Header().Set(HeaderContentType, fmt.Sprintf("application/json;odata.metadata=%s", GetODataMetadataLevel(r)))
	SetODataVersionHeader(w)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// orderedBody is a JSON object that keeps insertion order, so annotations come
// before the payload. Empty string values are skipped.
type orderedBody struct {
	keys   []string
	values map[string]interface{}
}

func (b *orderedBody) add(key string, value interface{}) {
	if s, ok := value.(string); ok && s == "" {
		return
	}
	if b.values == nil {
		b.values = make(map[string]interface{})
	}
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

func (b orderedBody) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, key := range b.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(b.values[key])
		if err != nil {
			return nil, err
		}
		sb.Write(k)
		sb.WriteByte(':')
		sb.Write(v)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}
