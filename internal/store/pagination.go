package store

// Page size bounds for list operations.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// PageParams selects one page of a list.
type PageParams struct {
	Limit  int // defaults to DefaultPageLimit, capped at MaxPageLimit
	Offset int
}

// Page is one page of results and the size of the whole list.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the limit and offset into range.
func (p *PageParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// Paginate cuts items down to the page p selects.
func Paginate[T any](items []T, p PageParams) Page[T] {
	p.Normalize()
	page := Page[T]{Total: len(items), Limit: p.Limit, Offset: p.Offset}
	if p.Offset >= len(items) {
		page.Items = []T{}
		return page
	}
	end := min(p.Offset+p.Limit, len(items))
	page.Items = items[p.Offset:end]
	return page
}

// HasMore reports whether items remain after this page.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}
