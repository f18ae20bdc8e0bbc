package pagination

import (
	"strconv"
	"strings"
)

// CatalogPageSize is the fixed page size for catalog listings.
const CatalogPageSize = 12

// PageParams is page-number pagination (1-based).
type PageParams struct {
	Page int
	Size int
}

// Page carries one page of results plus the totals needed to render pagers.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ParsePage reads a page query value; anything unparsable or < 1 becomes page 1.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Normalize fills defaults and clamps the size to MaxLimit.
func (p PageParams) Normalize(defaultSize int) PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if p.Size > MaxLimit {
		p.Size = MaxLimit
	}
	return p
}

// Offset is the number of rows to skip.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Size
}

// NewPage assembles a Page from the items fetched for params and the total row count.
func NewPage[T any](items []T, params PageParams, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if params.Size > 0 {
		totalPages = int((total + int64(params.Size) - 1) / int64(params.Size))
	}
	return Page[T]{
		Items:      items,
		Page:       params.Page,
		Size:       params.Size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
	}
}
