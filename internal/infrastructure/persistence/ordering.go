package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// productColumns are the product list columns a client may sort by
var productColumns = map[string]bool{
	"barcode":    true,
	"name":       true,
	"stock":      true,
	"price":      true,
	"created_at": true,
	"updated_at": true,
}

// sortColumn returns field when it names an allowed column, fallback otherwise.
// Only whitelisted names reach SQL.
func sortColumn(field string, allowed map[string]bool, fallback string) string {
	if f := strings.TrimSpace(field); allowed[f] {
		return f
	}
	return fallback
}

// descending is true unless dir is "asc" in any case
func descending(dir string) bool {
	return !strings.EqualFold(strings.TrimSpace(dir), "asc")
}

// productOrder is the ORDER BY of a product listing. Barcode breaks ties
// so pages are stable.
func productOrder(orderBy, orderDir string) clause.OrderBy {
	primary := sortColumn(orderBy, productColumns, "created_at")
	cols := []clause.OrderByColumn{{Column: clause.Column{Name: primary}, Desc: descending(orderDir)}}
	if primary != "barcode" {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: "barcode"}})
	}
	return clause.OrderBy{Columns: cols}
}
