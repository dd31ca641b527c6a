// Package pagination holds the page request/response shapes shared by list endpoints.
package pagination

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Params is a 1-based page request.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to >= 1 and the page size to 1..MaxPageSize.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 || p.PageSize > MaxPageSize {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Page is one page of results together with the total row count.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// TotalPages returns the number of pages needed for Total rows.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// New assembles a page, never returning a nil item slice.
func New[T any](items []T, params Params, total int64) Page[T] {
	params = params.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: params.Page, PageSize: params.PageSize, Total: total}
}

// Map converts the items of a page while keeping its paging metadata.
func Map[T, U any](page Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, fn(item))
	}
	return Page[U]{Items: out, Page: page.Page, PageSize: page.PageSize, Total: page.Total}
}
