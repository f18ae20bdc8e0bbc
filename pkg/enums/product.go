package enums

import "fmt"

// ProductStatus maps to the product_status enum in Postgres.
type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "active"
	ProductStatusInactive   ProductStatus = "inactive"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusOutOfStock,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

// ProductSort enumerates the catalog orderings.
type ProductSort string

const (
	ProductSortNewest    ProductSort = "newest"
	ProductSortPriceLow  ProductSort = "price_low"
	ProductSortPriceHigh ProductSort = "price_high"
	ProductSortName      ProductSort = "name"
)

// ParseProductSort defaults to newest for empty input.
func ParseProductSort(value string) (ProductSort, error) {
	switch ProductSort(value) {
	case "":
		return ProductSortNewest, nil
	case ProductSortNewest, ProductSortPriceLow, ProductSortPriceHigh, ProductSortName:
		return ProductSort(value), nil
	}
	return "", fmt.Errorf("invalid sort %q", value)
}
