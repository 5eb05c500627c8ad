package storage

// MaxPageSize caps the page size for every paged query. Larger requests are
// truncated, not rejected.
const MaxPageSize = 50

// DefaultPageSize applies when a request does not name a size.
const DefaultPageSize = 10

// PageParams selects one page of a result set.
type PageParams struct {
	Number int
	Size   int
}

// Normalize clamps the parameters: page numbers floor at 1 and sizes are
// bounded by MaxPageSize.
func (p PageParams) Normalize() PageParams {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of items to skip before this page.
func (p PageParams) Offset() int {
	return (p.Number - 1) * p.Size
}

// Page is one page of items plus the metadata every paged response carries.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	PageSize    int
	TotalCount  int
	TotalPages  int
}

// NewPage assembles a page from an already-sliced item list and the total
// count of the unsliced result set.
func NewPage[T any](items []T, total int, params PageParams) Page[T] {
	pages := total / params.Size
	if total%params.Size != 0 {
		pages++
	}
	return Page[T]{
		Items:       items,
		CurrentPage: params.Number,
		PageSize:    params.Size,
		TotalCount:  total,
		TotalPages:  pages,
	}
}

// SlicePage cuts one page out of a fully materialized, already-sorted slice.
func SlicePage[T any](all []T, params PageParams) Page[T] {
	start := params.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.Size
	if end > len(all) {
		end = len(all)
	}
	items := make([]T, end-start)
	copy(items, all[start:end])
	return NewPage(items, len(all), params)
}
