package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/nlstn/go-odata-routing/internal/response"
)

// MetadataHandler serves the CSDL document of the model committed for the request.
type MetadataHandler struct {
	logger *slog.Logger
}

// NewMetadataHandler creates a metadata handler.
func NewMetadataHandler(logger *slog.Logger) *MetadataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataHandler{logger: logger}
}

// SetLogger sets the logger. nil selects slog.Default().
func (h *MetadataHandler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h.logger = logger
}

// ServeHTTP writes the metadata document, answering 304 when If-None-Match
// names the model's entity tag.
func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, h.logger) {
		return
	}
	feature, ok := committedFeature(w, r, h.logger)
	if !ok {
		return
	}

	etag := feature.Model.ETag()
	if noneMatch := r.Header.Get("If-None-Match"); noneMatch != "" && etagListed(noneMatch, etag) {
		w.Header().Set(response.HeaderETag, etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if err := response.WriteMetadataDocument(w, feature.Model.CSDL(), etag); err != nil {
		h.logger.Error("Error writing metadata document", "error", err)
	}
}

func etagListed(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// ServiceDocumentHandler lists the entity sets and singletons of the model
// committed for the request.
type ServiceDocumentHandler struct {
	logger *slog.Logger
}

// NewServiceDocumentHandler creates a service document handler.
func NewServiceDocumentHandler(logger *slog.Logger) *ServiceDocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceDocumentHandler{logger: logger}
}

// SetLogger sets the logger. nil selects slog.Default().
func (h *ServiceDocumentHandler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h.logger = logger
}

func (h *ServiceDocumentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, h.logger) {
		return
	}
	feature, ok := committedFeature(w, r, h.logger)
	if !ok {
		return
	}

	model := feature.Model
	entries := make([]response.ServiceDocumentEntry, 0, len(model.EntitySets())+len(model.Singletons()))
	for _, set := range model.EntitySets() {
		entries = append(entries, response.ServiceDocumentEntry{Name: set.Name, Kind: "EntitySet", URL: set.Name})
	}
	for _, s := range model.Singletons() {
		entries = append(entries, response.ServiceDocumentEntry{Name: s.Name, Kind: "Singleton", URL: s.Name})
	}
	for _, op := range model.Operations() {
		if !op.IsBound && !op.IsAction {
			entries = append(entries, response.ServiceDocumentEntry{Name: op.Name, Kind: "FunctionImport", URL: op.Name})
		}
	}

	if err := response.WriteServiceDocument(w, r, serviceRootOf(r, feature), entries); err != nil {
		h.logger.Error("Error writing service document", "error", err)
	}
}
