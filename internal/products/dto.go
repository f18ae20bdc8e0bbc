package products

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

// CreateProductInput is the vendor payload for a new listing.
type CreateProductInput struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	Stock       int                 `json:"stock"`
	Status      enums.ProductStatus `json:"status"`
	ImageURL    *string             `json:"image_url,omitempty"`
	CategoryID  *uuid.UUID          `json:"category_id,omitempty"`
}

// UpdateProductInput carries partial updates; nil fields are left untouched.
type UpdateProductInput struct {
	Name        *string              `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string              `json:"description,omitempty"`
	Price       *decimal.Decimal     `json:"price,omitempty"`
	Stock       *int                 `json:"stock,omitempty"`
	Status      *enums.ProductStatus `json:"status,omitempty"`
	ImageURL    *string              `json:"image_url,omitempty"`
	CategoryID  *uuid.UUID           `json:"category_id,omitempty"`
}

// CreateCategoryInput names a new category; the slug is derived when omitted.
type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,max=120"`
	Description *string `json:"description,omitempty"`
}

// VendorRef is the public slice of the owning vendor.
type VendorRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// CategoryDTO is the API representation of a category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
}

// ProductDTO is the API representation of a product.
type ProductDTO struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	Stock       int                 `json:"stock"`
	Status      enums.ProductStatus `json:"status"`
	InStock     bool                `json:"in_stock"`
	ImageURL    *string             `json:"image_url,omitempty"`
	Vendor      VendorRef           `json:"vendor"`
	Category    *CategoryDTO        `json:"category,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// StockStatus answers the storefront's quantity picker.
type StockStatus struct {
	ProductID   uuid.UUID `json:"product_id"`
	Stock       int       `json:"stock"`
	IsInStock   bool      `json:"is_in_stock"`
	MaxQuantity int       `json:"max_quantity"`
}

// VendorSummary feeds the vendor dashboard inventory card.
type VendorSummary struct {
	TotalProducts  int64                         `json:"total_products"`
	ByStatus       map[enums.ProductStatus]int64 `json:"by_status"`
	InventoryValue decimal.Decimal               `json:"inventory_value"`
}

func newCategoryDTO(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description}
}

// NewProductDTO maps a product (with optional preloaded vendor/category) to its DTO.
func NewProductDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Round(2),
		Stock:       p.Stock,
		Status:      p.Status,
		InStock:     IsInStock(p),
		ImageURL:    p.ImageURL,
		Vendor:      VendorRef{ID: p.VendorID},
		Category:    newCategoryDTO(p.Category),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Vendor != nil {
		dto.Vendor.Username = p.Vendor.Username
	}
	return dto
}

func (in CreateProductInput) toModel(vendorID uuid.UUID) *models.Product {
	status := in.Status
	if status == "" {
		status = enums.ProductStatusActive
	}
	return &models.Product{
		VendorID:    vendorID,
		CategoryID:  in.CategoryID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Status:      status,
		ImageURL:    normalizeImageURL(in.ImageURL),
	}
}

// apply copies the set fields onto p. A requested status is reported
// separately so validation can reject out_of_stock as an explicit choice.
func (in UpdateProductInput) apply(p *models.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.ImageURL != nil {
		p.ImageURL = normalizeImageURL(in.ImageURL)
	}
	if in.CategoryID != nil {
		if *in.CategoryID == uuid.Nil {
			p.CategoryID = nil
		} else {
			id := *in.CategoryID
			p.CategoryID = &id
		}
	}
}

func normalizeImageURL(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validateProduct checks the invariants every saved product must hold.
// requestedStatus is the status the vendor asked for, if any.
func validateProduct(p *models.Product, requestedStatus *enums.ProductStatus) error {
	var problems []fieldError
	if p.Name == "" {
		problems = append(problems, fieldError{Field: "name", Message: "name is required"})
	}
	if !p.Price.IsPositive() {
		problems = append(problems, fieldError{Field: "price", Message: "price must be greater than zero"})
	} else if !p.Price.Equal(p.Price.Round(2)) {
		problems = append(problems, fieldError{Field: "price", Message: "price supports at most two decimal places"})
	}
	if p.Stock < 0 {
		problems = append(problems, fieldError{Field: "stock", Message: "stock cannot be negative"})
	}
	if requestedStatus != nil && *requestedStatus != enums.ProductStatusActive && *requestedStatus != enums.ProductStatusInactive {
		problems = append(problems, fieldError{Field: "status", Message: "status must be active or inactive"})
	}
	if p.ImageURL != nil && !isHTTPURL(*p.ImageURL) {
		problems = append(problems, fieldError{Field: "image_url", Message: "image_url must be an http(s) URL"})
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(problems)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Slugify lowercases name and joins alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
