package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"gorm.io/gorm"
)

// Definition describes a gorm-backed data source.
type Definition struct {
	Name string
	// Model registers the entity sets and operations of the data source.
	Model func(b *metadata.Builder) error
	// Namespace of the built model. Empty uses Name.
	Namespace string
	// Tables are the gorm models migrated into the store, parents first.
	Tables []interface{}
	// Seed fills an empty store. It runs inside a transaction.
	Seed func(tx *gorm.DB) error
}

// Source is a DataSource over a gorm store. Its model is built once.
type Source struct {
	def   Definition
	store *store

	modelOnce sync.Once
	model     *metadata.Model
	modelErr  error
}

var _ DataSource = (*Source)(nil)

// New creates a data source from def. The store is opened lazily.
func New(def Definition, cfg StoreConfig, logger *slog.Logger) (*Source, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("data source name cannot be empty")
	}
	if def.Model == nil {
		return nil, fmt.Errorf("data source %s has no model", def.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		def: def,
		store: &store{
			name:   def.Name,
			config: cfg,
			models: def.Tables,
			seed:   def.Seed,
			logger: logger,
		},
	}, nil
}

// Name returns the data source name.
func (s *Source) Name() string { return s.def.Name }

// GetEdmModel builds the model on the first call and returns it afterwards. A
// failed build is returned on every call.
func (s *Source) GetEdmModel() (*metadata.Model, error) {
	s.modelOnce.Do(func() {
		namespace := s.def.Namespace
		if namespace == "" {
			namespace = s.def.Name
		}
		b := metadata.NewBuilder(namespace)
		if err := s.def.Model(b); err != nil {
			s.modelErr = fmt.Errorf("failed to define model of %s: %w", s.def.Name, err)
			return
		}
		s.model, s.modelErr = b.Build()
	})
	return s.model, s.modelErr
}

// Get implements DataSource.
func (s *Source) Get(ctx context.Context, key string, target *EntityObject) error {
	return s.store.get(ctx, key, target)
}

// GetCollection implements DataSource.
func (s *Source) GetCollection(ctx context.Context, entityType *metadata.EntityMetadata, collection *[]EntityObject) error {
	return s.store.getCollection(ctx, entityType, collection)
}

// GetNavigation implements DataSource.
func (s *Source) GetNavigation(ctx context.Context, source *EntityObject, navigation string) ([]EntityObject, error) {
	model, err := s.GetEdmModel()
	if err != nil {
		return nil, err
	}
	return s.store.getNavigation(ctx, model, source, navigation)
}

// GetProperty implements DataSource.
func (s *Source) GetProperty(name string, entity *EntityObject) (any, bool) {
	return GetProperty(name, entity)
}
