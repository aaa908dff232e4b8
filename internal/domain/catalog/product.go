package catalog

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	maxBarcodeLength = 512
	maxNameLength    = 200
	pricePlaces      = 4
)

// Product is a stock item identified by the barcode printed on it
type Product struct {
	Barcode   string
	Name      string
	Stock     int64
	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct creates a new product
func NewProduct(barcode, name string, stock int64, price decimal.Decimal) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if err := ValidateBarcode(barcode); err != nil {
		return nil, err
	}

	product := &Product{Barcode: barcode}
	if err := product.Update(name, stock, price); err != nil {
		return nil, err
	}

	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

// Update replaces the editable fields of the product
func (p *Product) Update(name string, stock int64, price decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if err := validateProductName(name); err != nil {
		return err
	}
	if err := validateStock(stock); err != nil {
		return err
	}
	if err := validatePrice(price); err != nil {
		return err
	}

	p.Name = name
	p.Stock = stock
	p.Price = price.Round(pricePlaces)
	p.UpdatedAt = time.Now()
	return nil
}

// AdjustStock adds delta to the stock level. The stock never goes below zero.
func (p *Product) AdjustStock(delta int64) error {
	if p.Stock+delta < 0 {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			"Stock adjustment would make stock negative")
	}

	p.Stock += delta
	p.UpdatedAt = time.Now()
	return nil
}

// InStock returns true if at least one unit is available
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// StockValue returns stock multiplied by unit price
func (p *Product) StockValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Stock))
}

// ValidateBarcode validates a scanned or typed barcode. Any printable text the
// decoders return is accepted: Code 39 carries spaces and $/+%, QR codes carry URLs.
func ValidateBarcode(barcode string) error {
	if strings.TrimSpace(barcode) == "" {
		return shared.NewDomainError("INVALID_BARCODE", "Barcode cannot be empty")
	}
	if !utf8.ValidString(barcode) {
		return shared.NewDomainError("INVALID_BARCODE", "Barcode must be valid UTF-8 text")
	}
	if utf8.RuneCountInString(barcode) > maxBarcodeLength {
		return shared.NewDomainError("INVALID_BARCODE", "Barcode cannot exceed 512 characters")
	}
	for _, r := range barcode {
		if !unicode.IsPrint(r) {
			return shared.NewDomainError("INVALID_BARCODE", "Barcode cannot contain control characters")
		}
	}
	return nil
}

// validateProductName validates the product name
func validateProductName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}

func validateStock(stock int64) error {
	if stock < 0 {
		return shared.NewDomainError("INVALID_STOCK", "Stock cannot be negative")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	return nil
}
