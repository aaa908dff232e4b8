package models

import (
	"time"

	"github.com/scanstock/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	Barcode   string          `gorm:"type:varchar(512);primaryKey"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Stock     int64           `gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0;check:chk_products_price,price >= 0"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		Barcode:   m.Barcode,
		Name:      m.Name,
		Stock:     m.Stock,
		Price:     m.Price,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.Barcode = p.Barcode
	m.Name = p.Name
	m.Stock = p.Stock
	m.Price = p.Price
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
