package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/clause"
)

func TestProductOrder(t *testing.T) {
	tests := []struct {
		name     string
		orderBy  string
		orderDir string
		want     []clause.OrderByColumn
	}{
		{
			name: "defaults to newest first",
			want: []clause.OrderByColumn{
				{Column: clause.Column{Name: "created_at"}, Desc: true},
				{Column: clause.Column{Name: "barcode"}},
			},
		},
		{
			name: "cheapest first", orderBy: " price ", orderDir: "ASC",
			want: []clause.OrderByColumn{
				{Column: clause.Column{Name: "price"}},
				{Column: clause.Column{Name: "barcode"}},
			},
		},
		{
			name: "barcode needs no tie breaker", orderBy: "barcode", orderDir: "desc",
			want: []clause.OrderByColumn{{Column: clause.Column{Name: "barcode"}, Desc: true}},
		},
		{
			name: "unknown column falls back", orderBy: "supplier", orderDir: "asc",
			want: []clause.OrderByColumn{
				{Column: clause.Column{Name: "created_at"}},
				{Column: clause.Column{Name: "barcode"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, productOrder(tt.orderBy, tt.orderDir).Columns)
		})
	}
}

func TestProductOrder_RejectsInjectedSQL(t *testing.T) {
	for _, payload := range []string{
		"stock; DROP TABLE products;--",
		"name' OR '1'='1",
		"price, (SELECT password FROM pg_shadow)",
		"Stock",
		"stock\n",
	} {
		order := productOrder(payload, payload)
		assert.Contains(t, []string{"created_at", "stock"}, order.Columns[0].Column.Name, payload)
		assert.True(t, order.Columns[0].Desc, payload)
	}
}
