package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/scanstock/backend/internal/domain/catalog"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/scanstock/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormProductRepository stores the catalogue in the products table, keyed by barcode
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) products(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ProductModel{})
}

func withBarcode(barcode string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where("barcode = ?", barcode) }
}

// matching narrows to rows whose name or barcode contains the search text and
// whose stock satisfies the bound
func matching(f shared.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if text := strings.TrimSpace(f.Search); text != "" {
			db = db.Where("LOWER(name) LIKE ? OR barcode LIKE ?", "%"+strings.ToLower(text)+"%", "%"+text+"%")
		}
		switch in := f.Stock.InStock; {
		case in == nil:
		case *in:
			db = db.Where("stock > 0")
		default:
			db = db.Where("stock = 0")
		}
		if limit := f.Stock.Max; limit != nil {
			db = db.Where("stock <= ?", *limit)
		}
		return db
	}
}

// page orders the listing and cuts out the requested page
func page(f shared.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Clauses(productOrder(f.OrderBy, f.OrderDir))
		if f.Paged() {
			db = db.Offset(f.Offset()).Limit(f.PageSize)
		}
		return db
	}
}

func (r *GormProductRepository) Exists(ctx context.Context, barcode string) (bool, error) {
	var n int64
	err := r.products(ctx).Scopes(withBarcode(barcode)).Limit(1).Count(&n).Error
	return n > 0, translateError("check product", err)
}

func (r *GormProductRepository) FindByBarcode(ctx context.Context, barcode string) (*catalog.Product, error) {
	var row models.ProductModel
	if err := r.products(ctx).Scopes(withBarcode(barcode)).Take(&row).Error; err != nil {
		return nil, translateError("find product", err)
	}
	return row.ToDomain(), nil
}

func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	var rows []models.ProductModel
	if err := r.products(ctx).Scopes(matching(filter), page(filter)).Find(&rows).Error; err != nil {
		return nil, translateError("list products", err)
	}
	out := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// Count ignores the page and ordering of filter
func (r *GormProductRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var n int64
	if err := r.products(ctx).Scopes(matching(filter)).Count(&n).Error; err != nil {
		return 0, translateError("count products", err)
	}
	return n, nil
}

// Insert fails with shared.ErrConstraintViolation when the barcode is taken
func (r *GormProductRepository) Insert(ctx context.Context, product *catalog.Product) error {
	return translateError("insert product", r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error)
}

// Update replaces the editable fields; zero stock and price are written too
func (r *GormProductRepository) Update(ctx context.Context, barcode, name string, stock int64, price decimal.Decimal) error {
	res := r.products(ctx).Scopes(withBarcode(barcode)).
		Select("name", "stock", "price", "updated_at").
		Updates(&models.ProductModel{Name: name, Stock: stock, Price: price, UpdatedAt: time.Now()})
	return affected(res, "update product")
}

// AdjustStock applies delta in one conditional UPDATE, so concurrent
// adjustments never take the stock below zero.
func (r *GormProductRepository) AdjustStock(ctx context.Context, barcode string, delta int64) (*catalog.Product, error) {
	res := r.products(ctx).Scopes(withBarcode(barcode)).
		Where("stock + ? >= 0", delta).
		UpdateColumns(map[string]any{"stock": gorm.Expr("stock + ?", delta), "updated_at": time.Now()})
	if res.Error != nil {
		return nil, translateError("adjust stock", res.Error)
	}
	if res.RowsAffected == 0 {
		switch exists, err := r.Exists(ctx, barcode); {
		case err != nil:
			return nil, err
		case exists:
			return nil, shared.ErrInsufficientStock
		default:
			return nil, shared.ErrNotFound
		}
	}
	return r.FindByBarcode(ctx, barcode)
}

func (r *GormProductRepository) Delete(ctx context.Context, barcode string) error {
	return affected(r.db.WithContext(ctx).Scopes(withBarcode(barcode)).Delete(&models.ProductModel{}), "delete product")
}

// DeleteAll empties the catalogue and reports how many rows went
func (r *GormProductRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ProductModel{})
	if res.Error != nil {
		return 0, translateError("delete all products", res.Error)
	}
	return res.RowsAffected, nil
}

// affected turns a statement that touched no row into shared.ErrNotFound
func affected(res *gorm.DB, op string) error {
	if res.Error != nil {
		return translateError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
