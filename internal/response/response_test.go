package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/odata/x", nil)
	w := httptest.NewRecorder()

	if err := WriteError(w, r, http.StatusNotFound, "Route not found", "no endpoint matched /odata/x"); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if got := w.Header().Get(HeaderODataVersion); got != ODataVersion {
		t.Errorf("OData-Version = %q, want %q", got, ODataVersion)
	}
	if got := w.Header().Get(HeaderContentType); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}

	var body struct {
		Error ODataError `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Error.Code != "404" || body.Error.Message != "Route not found" {
		t.Errorf("error = %+v", body.Error)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Message != "no endpoint matched /odata/x" {
		t.Errorf("details = %+v", body.Error.Details)
	}
}

func TestWriteErrorWithoutDetails(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusInternalServerError, "boom", ""); err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	if strings.Contains(w.Body.String(), "details") {
		t.Errorf("body = %s, want no details", w.Body.String())
	}
}

func TestGetODataMetadataLevel(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		accept string
		want   string
	}{
		{"default", "/", "", MetadataMinimal},
		{"accept full", "/", "application/json;odata.metadata=full", MetadataFull},
		{"accept list", "/", "text/html, application/json;odata.metadata=none", MetadataNone},
		{"format wins", "/?$format=application/json;odata.metadata=full", "application/json;odata.metadata=none", MetadataFull},
		{"unknown level", "/", "application/json;odata.metadata=verbose", MetadataMinimal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			if got := GetODataMetadataLevel(r); got != tt.want {
				t.Errorf("GetODataMetadataLevel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteODataCollectionOrder(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/odata/ds/Products", nil)
	w := httptest.NewRecorder()
	count := int64(2)
	values := []interface{}{map[string]interface{}{"ID": 1}, map[string]interface{}{"ID": 2}}

	if err := WriteODataCollection(w, r, ServiceRoot(r, "/odata/ds/"), "Products", values, &count, nil); err != nil {
		t.Fatalf("WriteODataCollection() error = %v", err)
	}
	body := w.Body.String()
	want := `{"@odata.context":"http://example.com/odata/ds/$metadata#Products","@odata.count":2,"value":[{"ID":1},{"ID":2}]}`
	if strings.TrimSpace(body) != want {
		t.Errorf("body = %s\nwant %s", body, want)
	}
}

func TestWriteEntityAndReference(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/odata/Schools(1)", nil)
	root := ServiceRoot(r, "odata")

	w := httptest.NewRecorder()
	entity := map[string]interface{}{"Name": "North", "ID": 1, "Ignored": true}
	if err := WriteEntity(w, r, root, "Schools", []string{"ID", "Name"}, entity); err != nil {
		t.Fatalf("WriteEntity() error = %v", err)
	}
	want := `{"@odata.context":"http://example.com/odata/$metadata#Schools/$entity","ID":1,"Name":"North"}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("entity body = %s\nwant %s", got, want)
	}

	w = httptest.NewRecorder()
	if err := WriteEntityReference(w, r, root, "Schools(1)"); err != nil {
		t.Fatalf("WriteEntityReference() error = %v", err)
	}
	want = `{"@odata.context":"http://example.com/odata/$metadata#$ref","@odata.id":"http://example.com/odata/Schools(1)"}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("reference body = %s\nwant %s", got, want)
	}
}

func TestMetadataNoneOmitsContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/odata/Schools(1)/Name", nil)
	r.Header.Set("Accept", "application/json;odata.metadata=none")
	w := httptest.NewRecorder()
	if err := WriteProperty(w, r, ServiceRoot(r, "odata"), "Schools(1)/Name", "North"); err != nil {
		t.Fatalf("WriteProperty() error = %v", err)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"value":"North"}` {
		t.Errorf("body = %s", got)
	}
}

func TestWriteRawValue(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteRawValue(w, 42); err != nil {
		t.Fatalf("WriteRawValue() error = %v", err)
	}
	if w.Body.String() != "42" || w.Header().Get(HeaderContentType) != ContentTypeText {
		t.Errorf("got %q (%s)", w.Body.String(), w.Header().Get(HeaderContentType))
	}
}
