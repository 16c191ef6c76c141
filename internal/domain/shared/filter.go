package shared

// Filter pages and orders a list query. OrderBy is checked against each
// repository's own column whitelist.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	// Search matches document numbers and remarks
	Search string
	// Warehouse narrows ledger listings to one warehouse
	Warehouse string
}

// DefaultFilter is the first page of twenty, newest first
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc"}
}

// Paged reports whether the filter asks for a single page
func (f Filter) Paged() bool {
	return f.Page > 0 && f.PageSize > 0
}

// Offset is the number of rows before the requested page
func (f Filter) Offset() int {
	if !f.Paged() {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
