package datasource

import (
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nlstn/go-odata-routing/internal/literal"
	"github.com/nlstn/go-odata-routing/internal/metadata"
)

// Names of the sample data sources.
const (
	MyDataSourceName      = "mydatasource"
	AnotherDataSourceName = "anotherdatasource"
)

// Product is an entity of MyDataSource.
type Product struct {
	ID           int32           `json:"ID"`
	Name         string          `json:"Name"`
	Price        decimal.Decimal `json:"Price"`
	DetailInfoID int32           `json:"-"`
	DetailInfo   *DetailInfo     `json:"DetailInfo,omitempty" gorm:"foreignKey:DetailInfoID"`
}

// DetailInfo is the detail record a Product points to.
type DetailInfo struct {
	ID    int32  `json:"ID"`
	Title string `json:"Title"`
}

// Student is an entity of AnotherDataSource.
type Student struct {
	ID       int32   `json:"ID"`
	Name     string  `json:"Name"`
	Score    float64 `json:"Score"`
	SchoolID int32   `json:"-"`
	School   *School `json:"School,omitempty" gorm:"foreignKey:SchoolID"`
}

// School is where a Student goes.
type School struct {
	ID       int32     `json:"ID"`
	Name     string    `json:"Name"`
	Students []Student `json:"Students,omitempty" gorm:"foreignKey:SchoolID"`
}

// MyDataSource serves Products and DetailInfos.
func MyDataSource(cfg StoreConfig, logger *slog.Logger) (*Source, error) {
	return New(Definition{
		Name:      MyDataSourceName,
		Namespace: "ns",
		Model: func(b *metadata.Builder) error {
			if _, err := b.AddEntitySet("Products", Product{}); err != nil {
				return err
			}
			if _, err := b.AddEntitySet("DetailInfos", DetailInfo{}); err != nil {
				return err
			}
			if err := b.BindNavigation("Products", "DetailInfo", "DetailInfos"); err != nil {
				return err
			}
			return b.AddFunction(metadata.Operation{
				Name:        "GetPriceWithTax",
				IsBound:     true,
				BindingType: "Product",
				Parameters: []metadata.Parameter{
					{Name: "rate", Type: literal.EdmDouble},
					{Name: "region", Type: literal.EdmString, Optional: true},
				},
				ReturnType: literal.EdmDecimal,
			})
		},
		Tables: []interface{}{&DetailInfo{}, &Product{}},
		Seed: func(tx *gorm.DB) error {
			details := []DetailInfo{
				{ID: 1, Title: "Standard warranty"},
				{ID: 2, Title: "Extended warranty"},
			}
			if err := tx.Create(&details).Error; err != nil {
				return err
			}
			products := []Product{
				{ID: 1, Name: "Bread", Price: decimal.RequireFromString("2.50"), DetailInfoID: 1},
				{ID: 2, Name: "Milk", Price: decimal.RequireFromString("1.20"), DetailInfoID: 2},
				{ID: 3, Name: "Cheese", Price: decimal.RequireFromString("7.90"), DetailInfoID: 1},
			}
			return tx.Omit("DetailInfo").Create(&products).Error
		},
	}, cfg, logger)
}

// AnotherDataSource serves Students and Schools.
func AnotherDataSource(cfg StoreConfig, logger *slog.Logger) (*Source, error) {
	return New(Definition{
		Name:      AnotherDataSourceName,
		Namespace: "ns",
		Model: func(b *metadata.Builder) error {
			if _, err := b.AddEntitySet("Students", Student{}); err != nil {
				return err
			}
			if _, err := b.AddEntitySet("Schools", School{}); err != nil {
				return err
			}
			if err := b.BindNavigation("Students", "School", "Schools"); err != nil {
				return err
			}
			return b.BindNavigation("Schools", "Students", "Students")
		},
		Tables: []interface{}{&School{}, &Student{}},
		Seed: func(tx *gorm.DB) error {
			schools := []School{
				{ID: 1, Name: "Mercury Middle School"},
				{ID: 2, Name: "Venus High School"},
			}
			if err := tx.Omit("Students").Create(&schools).Error; err != nil {
				return err
			}
			students := []Student{
				{ID: 100, Name: "Ada", Score: 91.5, SchoolID: 1},
				{ID: 101, Name: "Brian", Score: 78, SchoolID: 2},
				{ID: 102, Name: "Chen", Score: 85.25, SchoolID: 2},
			}
			return tx.Omit("School").Create(&students).Error
		},
	}, cfg, logger)
}
