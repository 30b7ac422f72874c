// Package modelcache keeps the EDM model of every data source once it has been
// built. Lookups after the first build are lock-free.
package modelcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/observability"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

// A Source builds the model of one data source.
type Source interface {
	GetEdmModel() (*metadata.Model, error)
}

// A SourceFunc implements Source with a function.
type SourceFunc func() (*metadata.Model, error)

// GetEdmModel implements Source.
func (f SourceFunc) GetEdmModel() (*metadata.Model, error) {
	return f()
}

// Cache maps data source names to built models. Names compare case-insensitively.
// Concurrent first requests for the same name share one build, and a failed
// build is not remembered so the next request retries it.
type Cache struct {
	models sync.Map // folded name -> *metadata.Model
	loader singleflight.Group
	logger *slog.Logger
	obs    *observability.Config
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{logger: slog.Default()}
}

// SetLogger sets the logger used to report builds. nil selects slog.Default().
func (c *Cache) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger
}

// SetObservability enables tracing and metrics of model builds.
func (c *Cache) SetObservability(cfg *observability.Config) {
	c.obs = cfg
}

func key(name string) string {
	return cases.Fold().String(name)
}

// Get returns the model cached under name, building it through src on first use.
func (c *Cache) Get(ctx context.Context, name string, src Source) (*metadata.Model, error) {
	if name == "" {
		return nil, fmt.Errorf("data source name is required")
	}
	k := key(name)
	if v, ok := c.models.Load(k); ok {
		return v.(*metadata.Model), nil
	}
	if src == nil {
		return nil, fmt.Errorf("data source %s has no model source", name)
	}

	v, err, _ := c.loader.Do(k, func() (interface{}, error) {
		if v, ok := c.models.Load(k); ok {
			return v, nil
		}
		model, err := c.build(ctx, name, src)
		if err != nil {
			return nil, err
		}
		c.models.Store(k, model)
		return model, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*metadata.Model), nil
}

func (c *Cache) build(ctx context.Context, name string, src Source) (*metadata.Model, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.obs.Tracer().StartModelBuild(ctx, name)
	defer span.End()

	model, err := src.GetEdmModel()
	if err == nil && model == nil {
		err = fmt.Errorf("data source %s returned no model", name)
	}
	c.obs.Metrics().RecordModelBuild(ctx, name, err)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to build model for data source %s: %w", name, err)
	}

	c.logger.Info("EDM model built",
		"datasource", name,
		"namespace", model.Namespace(),
		"entitySets", len(model.EntitySets()),
		"fingerprint", fmt.Sprintf("%016x", model.Fingerprint()),
	)
	return model, nil
}

// Peek returns the model cached under name without building it.
func (c *Cache) Peek(name string) (*metadata.Model, bool) {
	v, ok := c.models.Load(key(name))
	if !ok {
		return nil, false
	}
	return v.(*metadata.Model), true
}

// Forget drops the model cached under name. The next Get rebuilds it.
func (c *Cache) Forget(name string) {
	c.models.Delete(key(name))
}

// Len returns the number of cached models.
func (c *Cache) Len() int {
	n := 0
	c.models.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
