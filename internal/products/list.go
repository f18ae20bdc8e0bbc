package products

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

// ListFilters describe the supported catalog filter knobs.
type ListFilters struct {
	CategoryID   *uuid.UUID       `json:"category_id,omitempty"`
	CategorySlug string           `json:"category,omitempty"`
	MinPrice     *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice     *decimal.Decimal `json:"max_price,omitempty"`
	Query        string           `json:"q,omitempty"`
}

// ListInput is a catalog page request.
type ListInput struct {
	Filters ListFilters
	Sort    enums.ProductSort
	Page    int
}

type listQuery struct {
	vendorID   *uuid.UUID
	activeOnly bool
	filters    ListFilters
	sort       enums.ProductSort
	page       pagination.PageParams
}

func newListQuery(input ListInput) listQuery {
	sort := input.Sort
	if sort == "" {
		sort = enums.ProductSortNewest
	}
	filters := input.Filters
	filters.Query = strings.TrimSpace(filters.Query)
	filters.CategorySlug = strings.TrimSpace(strings.ToLower(filters.CategorySlug))
	return listQuery{
		filters: filters,
		sort:    sort,
		page:    pagination.PageParams{Page: input.Page, Size: pagination.CatalogPageSize}.Normalize(pagination.CatalogPageSize),
	}
}

func (q listQuery) orderClause() string {
	switch q.sort {
	case enums.ProductSortPriceLow:
		return "products.price ASC, products.id ASC"
	case enums.ProductSortPriceHigh:
		return "products.price DESC, products.id ASC"
	case enums.ProductSortName:
		return "LOWER(products.name) ASC, products.id ASC"
	default:
		return "products.created_at DESC, products.id DESC"
	}
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(strings.ToLower(term))
	return "%" + escaped + "%"
}
