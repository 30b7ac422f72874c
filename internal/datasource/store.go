package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/nlstn/go-odata-routing/internal/metadata"
	"github.com/nlstn/go-odata-routing/internal/path"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ErrNotFound is returned when no entity has the requested key.
var ErrNotFound = errors.New("entity not found")

// StoreConfig selects the database a data source keeps its sample data in.
type StoreConfig struct {
	// Driver is DriverSQLite (default), DriverPostgres or DriverMySQL.
	Driver string
	// DSN is the connection string. Empty with SQLite selects a private
	// in-memory database named after the data source.
	DSN string
}

func (c StoreConfig) open(name string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	switch strings.ToLower(c.Driver) {
	case "", DriverSQLite:
		dsn := c.DSN
		if dsn == "" {
			// Shared cache keeps one in-memory database across the pool's connections.
			dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ToLower(name))
		}
		return gorm.Open(sqlite.Open(dsn), cfg)
	case DriverPostgres:
		if c.DSN == "" {
			return nil, fmt.Errorf("postgres store for %s requires a DSN", name)
		}
		return gorm.Open(postgres.Open(c.DSN), cfg)
	case DriverMySQL:
		if c.DSN == "" {
			return nil, fmt.Errorf("mysql store for %s requires a DSN", name)
		}
		return gorm.Open(mysql.Open(c.DSN), cfg)
	}
	return nil, fmt.Errorf("unsupported store driver %q", c.Driver)
}

// store reads the entities of one data source through gorm. The schema is
// migrated and seeded once, on first use.
type store struct {
	name   string
	config StoreConfig
	models []interface{}
	seed   func(tx *gorm.DB) error
	logger *slog.Logger

	once sync.Once
	db   *gorm.DB
	err  error
}

func (s *store) conn(ctx context.Context) (*gorm.DB, error) {
	s.once.Do(func() {
		db, err := s.config.open(s.name)
		if err != nil {
			s.err = fmt.Errorf("failed to open store for %s: %w", s.name, err)
			return
		}
		if err := db.AutoMigrate(s.models...); err != nil {
			s.err = fmt.Errorf("failed to migrate store for %s: %w", s.name, err)
			return
		}
		if err := s.seedOnce(db); err != nil {
			s.err = fmt.Errorf("failed to seed store for %s: %w", s.name, err)
			return
		}
		s.logger.Info("Data source store ready", "datasource", s.name, "driver", s.config.Driver)
		s.db = db
	})
	if s.err != nil {
		return nil, s.err
	}
	return s.db.WithContext(ctx), nil
}

// seedOnce seeds an empty database. A database that already holds rows of the
// first model is left alone.
func (s *store) seedOnce(db *gorm.DB) error {
	if s.seed == nil || len(s.models) == 0 {
		return nil
	}
	var count int64
	if err := db.Model(s.models[0]).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.Transaction(s.seed)
}

func (s *store) get(ctx context.Context, key string, target *EntityObject) error {
	if target == nil || target.Type == nil {
		return fmt.Errorf("target entity type is required")
	}
	loaded, err := s.load(ctx, target.Type, key, "")
	if err != nil {
		return err
	}
	obj := entityFromStruct(target.Type, loaded)
	target.Values = obj.Values
	return nil
}

// load reads one entity by key, preloading navigation when it is not empty.
func (s *store) load(ctx context.Context, entityType *metadata.EntityMetadata, key, navigation string) (reflect.Value, error) {
	columns, err := parseKey(entityType, key)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	db, err := s.conn(ctx)
	if err != nil {
		return reflect.Value{}, err
	}

	instance := reflect.New(entityType.EntityType)
	query := db.Model(instance.Interface()).Where(columns)
	if navigation != "" {
		query = query.Preload(navigation)
	}
	if err := query.Take(instance.Interface()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reflect.Value{}, fmt.Errorf("%w: %s(%s)", ErrNotFound, entityType.EntitySetName, key)
		}
		return reflect.Value{}, fmt.Errorf("failed to load %s(%s): %w", entityType.EntityName, key, err)
	}
	return instance, nil
}

func (s *store) getCollection(ctx context.Context, entityType *metadata.EntityMetadata, collection *[]EntityObject) error {
	if entityType == nil || collection == nil {
		return fmt.Errorf("entity type and collection are required")
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	rows := reflect.New(reflect.SliceOf(entityType.EntityType))
	query := db.Model(reflect.New(entityType.EntityType).Interface())
	for _, key := range entityType.KeyProperties {
		query = query.Order(key.ColumnName)
	}
	if err := query.Find(rows.Interface()).Error; err != nil {
		return fmt.Errorf("failed to load %s: %w", entityType.EntitySetName, err)
	}

	slice := rows.Elem()
	out := make([]EntityObject, 0, slice.Len())
	for i := 0; i < slice.Len(); i++ {
		out = append(out, entityFromStruct(entityType, slice.Index(i)))
	}
	*collection = out
	return nil
}

func (s *store) getNavigation(ctx context.Context, model *metadata.Model, source *EntityObject, navigation string) ([]EntityObject, error) {
	if source == nil || source.Type == nil {
		return nil, fmt.Errorf("source entity is required")
	}
	nav := source.Type.FindNavigationProperty(navigation)
	if nav == nil {
		return nil, fmt.Errorf("entity type %s has no navigation property %s", source.Type.EntityName, navigation)
	}
	targetType, ok := model.FindEntityType(nav.NavigationTarget)
	if !ok {
		return nil, fmt.Errorf("navigation %s targets unknown entity type %s", navigation, nav.NavigationTarget)
	}

	loaded, err := s.load(ctx, source.Type, path.FormatKeys(source.Type, source.Keys()), nav.FieldName)
	if err != nil {
		return nil, err
	}
	field := loaded.Elem().FieldByName(nav.FieldName)

	var related []EntityObject
	switch field.Kind() {
	case reflect.Slice:
		for i := 0; i < field.Len(); i++ {
			related = append(related, entityFromStruct(targetType, field.Index(i)))
		}
	case reflect.Ptr:
		if !field.IsNil() {
			related = append(related, entityFromStruct(targetType, field))
		}
	case reflect.Struct:
		related = append(related, entityFromStruct(targetType, field))
	}
	return related, nil
}
