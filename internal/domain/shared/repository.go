package shared

// StockBound narrows a listing by quantity on hand. A nil field matches everything.
type StockBound struct {
	InStock *bool
	Max     *int64
}

// Filter is a page of a listing plus the predicates that select its rows
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Stock    StockBound
}

// DefaultFilter lists the newest rows first, twenty per page
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc"}
}

// Offset is the number of rows skipped before the page starts
func (f Filter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Paged reports whether the filter limits the number of rows returned
func (f Filter) Paged() bool {
	return f.PageSize > 0
}
