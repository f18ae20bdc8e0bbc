package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

// Service exposes catalog operations.
type Service interface {
	Create(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, vendorID, productID uuid.UUID) error
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, input ListInput) (*pagination.Page[ProductDTO], error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, input ListInput) (*pagination.Page[ProductDTO], error)
	StockStatus(ctx context.Context, productID uuid.UUID) (*StockStatus, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error)
}

type service struct {
	repo *Repository
}

// NewService builds a catalog service backed by repo.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, vendorID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	product := input.toModel(vendorID)
	requested := product.Status
	if err := validateProduct(product, &requested); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, product.CategoryID); err != nil {
		return nil, err
	}
	product.Status = DeriveStatus(product.Status, product.Stock)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
	}
	return s.load(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, vendorID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindOwned(ctx, vendorID, productID)
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}

	input.apply(product)
	if err := validateProduct(product, input.Status); err != nil {
		return nil, err
	}
	if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, product.CategoryID); err != nil {
			return nil, err
		}
	}
	product.Status = DeriveStatus(product.Status, product.Stock)

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.load(ctx, product.ID)
}

func (s *service) Delete(ctx context.Context, vendorID, productID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, vendorID, productID)
	if err != nil {
		if dbpkg.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "product has orders; set it inactive instead")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// Get hides inactive listings from the storefront.
func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	dto, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if dto.Status == enums.ProductStatusInactive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*pagination.Page[ProductDTO], error) {
	q := newListQuery(input)
	q.activeOnly = true
	return s.list(ctx, q)
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID, input ListInput) (*pagination.Page[ProductDTO], error) {
	q := newListQuery(input)
	q.vendorID = &vendorID
	return s.list(ctx, q)
}

func (s *service) list(ctx context.Context, q listQuery) (*pagination.Page[ProductDTO], error) {
	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, NewProductDTO(&rows[i]))
	}
	page := pagination.NewPage(items, q.page, total)
	return &page, nil
}

func (s *service) StockStatus(ctx context.Context, productID uuid.UUID) (*StockStatus, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}
	status := &StockStatus{
		ProductID: product.ID,
		Stock:     product.Stock,
		IsInStock: IsInStock(product),
	}
	if status.IsInStock {
		status.MaxQuantity = product.Stock
	}
	return status, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if name == "" || slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	category := &models.Category{Name: name, Slug: slug, Description: input.Description}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert category")
	}
	return newCategoryDTO(category), nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *newCategoryDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error) {
	counts, err := s.repo.CountByStatus(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	value, err := s.repo.InventoryValue(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum inventory")
	}
	summary := &VendorSummary{ByStatus: map[enums.ProductStatus]int64{}, InventoryValue: value}
	for _, status := range []enums.ProductStatus{enums.ProductStatusActive, enums.ProductStatusInactive, enums.ProductStatusOutOfStock} {
		summary.ByStatus[status] = counts[status]
		summary.TotalProducts += counts[status]
	}
	return summary, nil
}

func (s *service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := s.repo.CategoryExists(ctx, *id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
			WithDetails([]fieldError{{Field: "category_id", Message: "category does not exist"}})
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
