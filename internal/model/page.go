package model

const (
	// DefaultPage is assumed when the server omits the page number.
	DefaultPage = 1

	// DefaultLimit is assumed when the server omits the page size.
	DefaultLimit = 10
)

// Page is one page of a server-side collection plus its paging metadata.
// Page and Limit are whatever the server echoed back; they are not clamped.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

// NewPage returns an empty page with default paging metadata.
func NewPage[T any]() Page[T] {
	return Page[T]{Items: []T{}, Page: DefaultPage, Limit: DefaultLimit}
}

// TotalPages returns ceil(Total / Limit), or 0 when Limit is not positive.
func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// HasNextPage reports whether a page after the current one exists.
func (p Page[T]) HasNextPage() bool {
	return p.Page < p.TotalPages()
}

// HasPrevPage reports whether a page before the current one exists.
func (p Page[T]) HasPrevPage() bool {
	return p.Page > 1
}

// InRange reports whether page n is within [1, TotalPages].
func (p Page[T]) InRange(n int) bool {
	return n >= 1 && n <= p.TotalPages()
}
