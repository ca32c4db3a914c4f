package query

// PageResult is the pagination envelope returned for every listing.
type PageResult[T any] struct {
	Items         []T  `json:"items"`
	TotalItems    int  `json:"totalItems"`
	Limit         int  `json:"limit"`
	Page          int  `json:"page"`
	TotalPages    int  `json:"totalPages"`
	PagingCounter int  `json:"pagingCounter"`
	HasPrevPage   bool `json:"hasPrevPage"`
	HasNextPage   bool `json:"hasNextPage"`
	PrevPage      *int `json:"prevPage"`
	NextPage      *int `json:"nextPage"`
}

// Paginate slices items for the given 1-indexed page. page and limit must be
// positive. Pages past the end yield no items but keep the totals.
func Paginate[T any](items []T, page, limit int) PageResult[T] {
	total := len(items)
	if page > pageCount(total, limit) {
		return NewPage([]T{}, total, page, limit)
	}

	// page <= totalPages, so the offset stays below total.
	start := (page - 1) * limit
	end := total
	if total-start > limit {
		end = start + limit
	}

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return NewPage(pageItems, total, page, limit)
}

// NewPage builds the envelope around an already sliced page of items.
// PagingCounter is 0 when the page lies outside [1, TotalPages].
func NewPage[T any](items []T, totalItems, page, limit int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := pageCount(totalItems, limit)

	p := PageResult[T]{
		Items:       items,
		TotalItems:  totalItems,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasPrevPage: totalItems > 0 && page > 1,
		HasNextPage: page < totalPages,
	}
	if page >= 1 && page <= totalPages {
		p.PagingCounter = (page-1)*limit + 1
	}
	if p.HasPrevPage {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := page + 1
		p.NextPage = &next
	}
	return p
}

func pageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total-1)/limit + 1
}
