// Package pagination bounds request and certificate listings. Pages are
// 1-based and sized by MaxResults.
package pagination

// defaultMaxResults caps unbounded listings
const defaultMaxResults = 1000

// Filter selects one page of a listing
type Filter struct {
	MaxResults uint
	Page       *uint
}

// NewFilter builds a Filter. A nil maxResults falls back to the default
// cap, a nil page means the first page.
func NewFilter(maxResults, page *uint) *Filter {
	f := &Filter{MaxResults: defaultMaxResults, Page: page}
	if maxResults != nil {
		f.MaxResults = *maxResults
	}
	return f
}

// GetLimit returns the page size for the query
func (f *Filter) GetLimit() uint {
	if f.MaxResults == 0 {
		return defaultMaxResults
	}
	return f.MaxResults
}

// GetOffset returns how many rows the query skips
func (f *Filter) GetOffset() uint {
	if f.Page == nil {
		return 0
	}
	return (*f.Page - 1) * f.MaxResults
}
