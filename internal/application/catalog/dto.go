package catalog

import (
	"strings"
	"time"

	"github.com/scanstock/backend/internal/domain/catalog"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RegisterProductRequest represents a request to add a product to the inventory
type RegisterProductRequest struct {
	Barcode string          `json:"barcode" binding:"required,barcode"`
	Name    string          `json:"name" binding:"required,min=1,max=200"`
	Stock   int64           `json:"stock" binding:"min=0"`
	Price   decimal.Decimal `json:"price"`
}

// UpdateProductRequest replaces the editable fields of a product
type UpdateProductRequest struct {
	Name  string          `json:"name" binding:"required,min=1,max=200"`
	Stock int64           `json:"stock" binding:"min=0"`
	Price decimal.Decimal `json:"price"`
}

// AdjustStockRequest adds delta to the stock level; negative values sell or write off units
type AdjustStockRequest struct {
	Delta int64 `json:"delta" binding:"required"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	Barcode    string          `json:"barcode"`
	Name       string          `json:"name"`
	Stock      int64           `json:"stock"`
	Price      decimal.Decimal `json:"price"`
	InStock    bool            `json:"in_stock"`
	StockValue decimal.Decimal `json:"stock_value"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProductListFilter is the query string of a product listing
type ProductListFilter struct {
	Search   string `form:"search"`
	InStock  *bool  `form:"in_stock"`
	MaxStock *int64 `form:"max_stock" binding:"omitempty,min=0"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// toDomain fills unset paging and ordering from shared.DefaultFilter
func (f ProductListFilter) toDomain() shared.Filter {
	out := shared.DefaultFilter()
	out.Search = strings.TrimSpace(f.Search)
	out.Stock = shared.StockBound{InStock: f.InStock, Max: f.MaxStock}
	if f.Page > 0 {
		out.Page = f.Page
	}
	if f.PageSize > 0 {
		out.PageSize = f.PageSize
	}
	if f.OrderBy != "" {
		out.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		out.OrderDir = f.OrderDir
	}
	return out
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		Barcode:    p.Barcode,
		Name:       p.Name,
		Stock:      p.Stock,
		Price:      p.Price,
		InStock:    p.InStock(),
		StockValue: p.StockValue(),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ToProductResponses converts a slice of domain Products to ProductResponses
func ToProductResponses(products []catalog.Product) []ProductResponse {
	responses := make([]ProductResponse, len(products))
	for i := range products {
		responses[i] = ToProductResponse(&products[i])
	}
	return responses
}
