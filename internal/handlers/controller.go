package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nlstn/go-odata-routing/internal/datasource"
	"github.com/nlstn/go-odata-routing/internal/matcher"
	"github.com/nlstn/go-odata-routing/internal/path"
	"github.com/nlstn/go-odata-routing/internal/response"
)

// DynamicController serves read requests over the path committed by the
// routing policy, loading data from the data source the model came from.
type DynamicController struct {
	sources SourceLookup
	logger  *slog.Logger
}

// NewDynamicController creates a controller resolving data sources through lookup.
func NewDynamicController(lookup SourceLookup, logger *slog.Logger) *DynamicController {
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamicController{sources: lookup, logger: logger}
}

// SetLogger sets the logger. nil selects slog.Default().
func (c *DynamicController) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// evaluation is the state of walking a path: either entities (one or many),
// references to them, or a single property value.
type evaluation struct {
	entities    []datasource.EntityObject
	single      bool
	value       any
	isValue     bool
	raw         bool
	count       bool
	refs        bool
	contextPath string
}

func (c *DynamicController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r, c.logger) {
		return
	}
	feature, ok := committedFeature(w, r, c.logger)
	if !ok {
		return
	}
	src, ok := c.source(r, feature)
	if !ok {
		writeError(w, r, c.logger, http.StatusNotFound, ErrMsgUnknownSource, feature.DataSource)
		return
	}

	ev, status, err := c.evaluate(r, src, feature.Path)
	if err != nil {
		message := ErrMsgDatabaseError
		switch status {
		case http.StatusNotFound:
			message = ErrMsgEntityNotFound
		case http.StatusNotImplemented:
			message = ErrMsgNotImplemented
		}
		if status == http.StatusInternalServerError {
			c.logger.ErrorContext(r.Context(), "Failed to evaluate path", "path", feature.Path.String(), "error", err)
		}
		writeError(w, r, c.logger, status, message, err.Error())
		return
	}
	c.write(w, r, feature, ev)
}

func (c *DynamicController) source(r *http.Request, feature *matcher.Feature) (datasource.DataSource, bool) {
	if src, ok := DataSourceFromContext(r.Context()); ok {
		return src, true
	}
	if c.sources == nil || feature.DataSource == "" {
		return nil, false
	}
	return c.sources(feature.DataSource)
}

// evaluate walks the segments left to right. The returned status classifies
// a non-nil error.
func (c *DynamicController) evaluate(r *http.Request, src datasource.DataSource, odataPath *path.Path) (*evaluation, int, error) {
	ctx := r.Context()
	ev := &evaluation{}

	for _, seg := range odataPath.Segments() {
		switch s := seg.(type) {
		case *path.EntitySetSegment:
			var collection []datasource.EntityObject
			if err := src.GetCollection(ctx, s.EntitySet.EntityType, &collection); err != nil {
				return nil, http.StatusInternalServerError, err
			}
			ev.entities, ev.single = collection, false
			ev.contextPath = s.EntitySet.Name

		case *path.KeySegment:
			target := datasource.NewEntityObject(s.EntityType)
			key := path.FormatKeys(s.EntityType, s.Keys)
			if err := src.Get(ctx, key, target); err != nil {
				return nil, statusOf(err), err
			}
			ev.entities, ev.single = []datasource.EntityObject{*target}, true
			if s.EntitySet != nil {
				ev.contextPath = s.EntitySet.Name
			}

		case *path.NavigationSegment:
			if err := c.navigate(r, src, ev, s); err != nil {
				return nil, statusOf(err), err
			}

		case *path.NavigationLinkSegment:
			if err := c.navigate(r, src, ev, s.Navigation); err != nil {
				return nil, statusOf(err), err
			}
			ev.refs = true

		case *path.PropertySegment:
			if !ev.single || len(ev.entities) != 1 {
				return nil, http.StatusNotImplemented, fmt.Errorf("property %s requires a single entity", s.Property.Name)
			}
			entity := ev.entities[0]
			value, ok := src.GetProperty(s.Property.Name, &entity)
			if !ok {
				return nil, http.StatusNotFound, fmt.Errorf("property %s has no value", s.Property.Name)
			}
			ev.contextPath = fmt.Sprintf("%s(%s)/%s", ev.contextPath, path.FormatKeys(entity.Type, entity.Keys()), s.Property.Name)
			ev.value, ev.isValue = value, true

		case path.ValueSegment:
			if !ev.isValue {
				return nil, http.StatusNotImplemented, fmt.Errorf("$value requires a property")
			}
			ev.raw = true

		case path.CountSegment:
			ev.count = true

		default:
			return nil, http.StatusNotImplemented, fmt.Errorf("segment %s is not supported", seg.Kind())
		}
	}
	return ev, http.StatusOK, nil
}

func (c *DynamicController) navigate(r *http.Request, src datasource.DataSource, ev *evaluation, s *path.NavigationSegment) error {
	if !ev.single || len(ev.entities) != 1 {
		return fmt.Errorf("navigation %s requires a single entity: %w", s.Property.Name, errUnsupported)
	}
	related, err := src.GetNavigation(r.Context(), &ev.entities[0], s.Property.Name)
	if err != nil {
		return err
	}
	if !s.Property.NavigationIsArray && len(related) == 0 {
		return fmt.Errorf("%w: %s has no %s", datasource.ErrNotFound, ev.contextPath, s.Property.Name)
	}
	ev.entities, ev.single = related, !s.Property.NavigationIsArray
	if s.Target != nil {
		ev.contextPath = s.Target.Name
	}
	return nil
}

var errUnsupported = errors.New("unsupported path")

func statusOf(err error) int {
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (c *DynamicController) write(w http.ResponseWriter, r *http.Request, feature *matcher.Feature, ev *evaluation) {
	serviceRoot := serviceRootOf(r, feature)

	var err error
	switch {
	case ev.count:
		err = response.WriteRawValue(w, len(ev.entities))
	case ev.raw:
		err = response.WriteRawValue(w, ev.value)
	case ev.isValue:
		err = response.WriteProperty(w, r, serviceRoot, ev.contextPath, ev.value)
	case ev.refs && ev.single:
		err = response.WriteEntityReference(w, r, serviceRoot, entityID(ev.contextPath, ev.entities[0]))
	case ev.refs:
		ids := make([]string, len(ev.entities))
		for i, e := range ev.entities {
			ids[i] = entityID(ev.contextPath, e)
		}
		err = response.WriteEntityReferenceCollection(w, r, serviceRoot, ids)
	case ev.single:
		entity := ev.entities[0]
		err = response.WriteEntity(w, r, serviceRoot, ev.contextPath, entity.Fields(), entity.Values)
	default:
		values := make([]interface{}, len(ev.entities))
		for i, e := range ev.entities {
			values[i] = e.Values
		}
		err = response.WriteODataCollection(w, r, serviceRoot, ev.contextPath, values, nil, nil)
	}
	if err != nil {
		c.logger.Error("Error writing response", "error", err)
	}
}

func entityID(entitySet string, e datasource.EntityObject) string {
	return fmt.Sprintf("%s(%s)", entitySet, path.FormatKeys(e.Type, e.Keys()))
}

// serviceRootOf returns the absolute service root of the committed endpoint.
func serviceRootOf(r *http.Request, feature *matcher.Feature) string {
	return response.ServiceRoot(r, feature.ServiceRoot)
}
