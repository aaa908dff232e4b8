package catalog

import (
	"context"

	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductRepository defines the interface for product persistence.
// Implementations return shared.ErrNotFound for missing barcodes,
// shared.ErrConstraintViolation for duplicate inserts and
// shared.ErrStoreUnavailable when the store cannot be reached.
type ProductRepository interface {
	// Exists checks if a product with the given barcode exists
	Exists(ctx context.Context, barcode string) (bool, error)

	// FindByBarcode finds a product by its barcode
	FindByBarcode(ctx context.Context, barcode string) (*Product, error)

	// FindAll finds all products matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, error)

	// Insert creates a new product
	Insert(ctx context.Context, product *Product) error

	// Update overwrites name, stock and price of an existing product
	Update(ctx context.Context, barcode, name string, stock int64, price decimal.Decimal) error

	// AdjustStock atomically adds delta to the stock, refusing to go below zero
	AdjustStock(ctx context.Context, barcode string, delta int64) (*Product, error)

	// Delete deletes a product
	Delete(ctx context.Context, barcode string) error

	// DeleteAll deletes every product and returns how many were removed
	DeleteAll(ctx context.Context) (int64, error)

	// Count counts products matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
