package catalog

import (
	"context"
	"strings"

	"github.com/scanstock/backend/internal/domain/catalog"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/scanstock/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// OperationRecorder counts inventory operations by kind and outcome
type OperationRecorder interface {
	RecordInventoryOperation(ctx context.Context, operation string, err error)
}

// ProductService is the inventory use-case layer shared by the product API and
// the scan flow. Every write runs in its own span and is counted.
type ProductService struct {
	repo    catalog.ProductRepository
	metrics OperationRecorder
}

// NewProductService wires the store; metrics may be nil.
func NewProductService(repo catalog.ProductRepository, metrics OperationRecorder) *ProductService {
	return &ProductService{repo: repo, metrics: metrics}
}

// observe runs a write inside a "product.<op>" span and counts its outcome
func observe[T any](ctx context.Context, s *ProductService, op string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := telemetry.StartSpan(ctx, "product."+op, attrs...)
	out, err := fn(ctx)
	telemetry.Finish(span, err)
	if s.metrics != nil {
		s.metrics.RecordInventoryOperation(ctx, op, err)
	}
	return out, err
}

func barcodeAttr(barcode string) attribute.KeyValue {
	return telemetry.SpanProductBarcode.String(barcode)
}

func respond(p *catalog.Product) *ProductResponse {
	r := ToProductResponse(p)
	return &r
}

// Exists reports whether the barcode is stored
func (s *ProductService) Exists(ctx context.Context, barcode string) (bool, error) {
	return s.repo.Exists(ctx, strings.TrimSpace(barcode))
}

func (s *ProductService) Get(ctx context.Context, barcode string) (*ProductResponse, error) {
	p, err := s.repo.FindByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, err
	}
	return respond(p), nil
}

// Register stores a new product; a barcode already present is a constraint violation.
func (s *ProductService) Register(ctx context.Context, req RegisterProductRequest) (*ProductResponse, error) {
	return observe(ctx, s, "register", func(ctx context.Context) (*ProductResponse, error) {
		p, err := catalog.NewProduct(req.Barcode, req.Name, req.Stock, req.Price)
		if err != nil {
			return nil, err
		}
		switch taken, err := s.repo.Exists(ctx, p.Barcode); {
		case err != nil:
			return nil, err
		case taken:
			return nil, shared.NewDomainError("CONSTRAINT_VIOLATION", "Product with this barcode already exists")
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return nil, err
		}
		return respond(p), nil
	}, barcodeAttr(req.Barcode))
}

// Update replaces name, stock and price of a stored product
func (s *ProductService) Update(ctx context.Context, barcode string, req UpdateProductRequest) (*ProductResponse, error) {
	barcode = strings.TrimSpace(barcode)
	return observe(ctx, s, "update", func(ctx context.Context) (*ProductResponse, error) {
		p, err := s.repo.FindByBarcode(ctx, barcode)
		if err != nil {
			return nil, err
		}
		if err := p.Update(req.Name, req.Stock, req.Price); err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, p.Barcode, p.Name, p.Stock, p.Price); err != nil {
			return nil, err
		}
		return respond(p), nil
	}, barcodeAttr(barcode))
}

// AdjustStock adds a signed, non-zero delta. The stock never goes below zero.
func (s *ProductService) AdjustStock(ctx context.Context, barcode string, delta int64) (*ProductResponse, error) {
	barcode = strings.TrimSpace(barcode)
	return observe(ctx, s, "adjust_stock", func(ctx context.Context) (*ProductResponse, error) {
		if delta == 0 {
			return nil, shared.NewDomainError("INVALID_INPUT", "Stock delta cannot be zero")
		}
		p, err := s.repo.AdjustStock(ctx, barcode, delta)
		if err != nil {
			return nil, err
		}
		return respond(p), nil
	}, barcodeAttr(barcode), telemetry.SpanStockDelta.Int64(delta))
}

// ProductPage is one page of a listing along with the total number of matches
type ProductPage struct {
	Items    []ProductResponse
	Total    int64
	Page     int
	PageSize int
}

// List returns the page of products selected by filter
func (s *ProductService) List(ctx context.Context, filter ProductListFilter) (*ProductPage, error) {
	f := filter.toDomain()
	products, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Items: ToProductResponses(products), Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *ProductService) Delete(ctx context.Context, barcode string) error {
	barcode = strings.TrimSpace(barcode)
	_, err := observe(ctx, s, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Delete(ctx, barcode)
	}, barcodeAttr(barcode))
	return err
}

// DeleteAll empties the inventory and reports how many products went
func (s *ProductService) DeleteAll(ctx context.Context) (int64, error) {
	return observe(ctx, s, "delete_all", func(ctx context.Context) (int64, error) {
		return s.repo.DeleteAll(ctx)
	})
}
