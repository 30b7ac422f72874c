package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testStore gives every test its own in-memory database.
func testStore(t *testing.T) StoreConfig {
	t.Helper()
	return StoreConfig{Driver: DriverSQLite, DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}
}

func TestGetEdmModelIsBuiltOnce(t *testing.T) {
	src, err := AnotherDataSource(testStore(t), quietLogger())
	if err != nil {
		t.Fatalf("AnotherDataSource() error = %v", err)
	}

	first, err := src.GetEdmModel()
	if err != nil {
		t.Fatalf("GetEdmModel() error = %v", err)
	}
	second, err := src.GetEdmModel()
	if err != nil {
		t.Fatalf("GetEdmModel() error = %v", err)
	}
	if first != second {
		t.Error("GetEdmModel() returned a different model on the second call")
	}

	for _, name := range []string{"Students", "Schools"} {
		if _, ok := first.FindEntitySet(name); !ok {
			t.Errorf("model has no entity set %s", name)
		}
	}
	if _, ok := first.FindEntitySet("Products"); ok {
		t.Error("AnotherDataSource model should not declare Products")
	}
}

func TestGetByKey(t *testing.T) {
	src, err := MyDataSource(testStore(t), quietLogger())
	if err != nil {
		t.Fatalf("MyDataSource() error = %v", err)
	}
	model, err := src.GetEdmModel()
	if err != nil {
		t.Fatalf("GetEdmModel() error = %v", err)
	}
	products, _ := model.FindEntitySet("Products")

	target := NewEntityObject(products.EntityType)
	if err := src.Get(context.Background(), "2", target); err != nil {
		t.Fatalf("Get(2) error = %v", err)
	}
	if name, _ := src.GetProperty("Name", target); name != "Milk" {
		t.Errorf("Name = %v, want Milk", name)
	}
	price, ok := src.GetProperty("Price", target)
	if !ok {
		t.Fatal("Price not loaded")
	}
	if d, ok := price.(decimal.Decimal); !ok || !d.Equal(decimal.RequireFromString("1.2")) {
		t.Errorf("Price = %v, want 1.2", price)
	}
	if _, ok := src.GetProperty("DetailInfo", target); ok {
		t.Error("GetProperty() should not return navigation properties")
	}
}

func TestGetMissingAndMalformedKey(t *testing.T) {
	src, err := MyDataSource(testStore(t), quietLogger())
	if err != nil {
		t.Fatalf("MyDataSource() error = %v", err)
	}
	model, _ := src.GetEdmModel()
	products, _ := model.FindEntitySet("Products")

	for _, key := range []string{"99", "'abc'", "ID=1,Other=2"} {
		err := src.Get(context.Background(), key, NewEntityObject(products.EntityType))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%s) error = %v, want ErrNotFound", key, err)
		}
	}
}

func TestGetCollection(t *testing.T) {
	src, err := AnotherDataSource(testStore(t), quietLogger())
	if err != nil {
		t.Fatalf("AnotherDataSource() error = %v", err)
	}
	model, _ := src.GetEdmModel()
	students, _ := model.FindEntitySet("Students")

	var collection []EntityObject
	if err := src.GetCollection(context.Background(), students.EntityType, &collection); err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	if len(collection) != 3 {
		t.Fatalf("len(collection) = %d, want 3", len(collection))
	}
	if id := collection[0].Values["ID"]; id != int32(100) {
		t.Errorf("first ID = %v, want 100", id)
	}
	if fields := collection[0].Fields(); len(fields) != 3 {
		t.Errorf("Fields() = %v, want ID, Name and Score", fields)
	}
}

func TestGetNavigation(t *testing.T) {
	src, err := AnotherDataSource(testStore(t), quietLogger())
	if err != nil {
		t.Fatalf("AnotherDataSource() error = %v", err)
	}
	model, _ := src.GetEdmModel()
	students, _ := model.FindEntitySet("Students")
	schools, _ := model.FindEntitySet("Schools")
	ctx := context.Background()

	student := NewEntityObject(students.EntityType)
	if err := src.Get(ctx, "101", student); err != nil {
		t.Fatalf("Get(101) error = %v", err)
	}
	related, err := src.GetNavigation(ctx, student, "School")
	if err != nil {
		t.Fatalf("GetNavigation(School) error = %v", err)
	}
	if len(related) != 1 || related[0].Values["Name"] != "Venus High School" {
		t.Errorf("GetNavigation(School) = %v, want Venus High School", related)
	}

	school := NewEntityObject(schools.EntityType)
	if err := src.Get(ctx, "2", school); err != nil {
		t.Fatalf("Get(2) error = %v", err)
	}
	pupils, err := src.GetNavigation(ctx, school, "Students")
	if err != nil {
		t.Fatalf("GetNavigation(Students) error = %v", err)
	}
	if len(pupils) != 2 {
		t.Errorf("len(Students) = %d, want 2", len(pupils))
	}

	if _, err := src.GetNavigation(ctx, student, "Teachers"); err == nil {
		t.Error("GetNavigation(Teachers) should fail for an unknown navigation")
	}
}

func TestNewValidatesDefinition(t *testing.T) {
	if _, err := New(Definition{}, StoreConfig{}, nil); err == nil {
		t.Error("New() without a name should fail")
	}
	if _, err := New(Definition{Name: "x"}, StoreConfig{}, nil); err == nil {
		t.Error("New() without a model should fail")
	}
}

func TestUnsupportedDriver(t *testing.T) {
	src, err := MyDataSource(StoreConfig{Driver: "oracle"}, quietLogger())
	if err != nil {
		t.Fatalf("MyDataSource() error = %v", err)
	}
	model, _ := src.GetEdmModel()
	products, _ := model.FindEntitySet("Products")

	var collection []EntityObject
	if err := src.GetCollection(context.Background(), products.EntityType, &collection); err == nil {
		t.Error("GetCollection() should fail with an unsupported driver")
	}
}

func TestServerDriversRequireDSN(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverMySQL} {
		if _, err := (StoreConfig{Driver: driver}).open("mydatasource"); err == nil {
			t.Errorf("open(%s) without a DSN should fail", driver)
		}
	}
}
