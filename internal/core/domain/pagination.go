package domain

import "math"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page is a validated page request. Number is 1-based.
type Page struct {
	Number int
	Limit  int
}

// DefaultPage returns the first page with the default limit.
func DefaultPage() Page {
	return Page{Number: 1, Limit: DefaultPageLimit}
}

// Normalized fills zero values with defaults.
func (p Page) Normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of rows preceding the page, saturating at
// math.MaxInt64.
func (p Page) Offset() uint64 {
	n := p.Normalized()
	if n.Number-1 > math.MaxInt64/n.Limit {
		return math.MaxInt64
	}
	return uint64((n.Number - 1) * n.Limit)
}

// PageInfo describes a page of results.
type PageInfo struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// NewPageInfo computes totals for the supplied page.
func NewPageInfo(p Page, total int) PageInfo {
	n := p.Normalized()
	pages := 0
	if total > 0 {
		pages = (total + n.Limit - 1) / n.Limit
	}
	return PageInfo{Page: n.Number, Limit: n.Limit, Total: total, Pages: pages}
}
