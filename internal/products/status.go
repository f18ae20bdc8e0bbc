package products

import (
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// DeriveStatus returns the status a product must carry for the given stock.
// An explicit inactive status is never overridden.
func DeriveStatus(old enums.ProductStatus, stock int) enums.ProductStatus {
	if old == enums.ProductStatusInactive {
		return old
	}
	if stock <= 0 {
		return enums.ProductStatusOutOfStock
	}
	if old == enums.ProductStatusOutOfStock {
		return enums.ProductStatusActive
	}
	return old
}

// IsInStock reports whether the product can be purchased right now.
func IsInStock(p *models.Product) bool {
	return p != nil && p.Stock > 0 && p.Status == enums.ProductStatusActive
}
