package models

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// PageWindow clamps page and size to the accepted range.
func PageWindow(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

// NewPagination computes the page metadata for total rows.
func NewPagination(page, size, total int) *Pagination {
	page, size = PageWindow(page, size)
	pages := (total + size - 1) / size
	return &Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: pages, HasNext: page < pages}
}
