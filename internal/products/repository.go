package products

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// Repository wires together product and category persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product with its vendor and category.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Vendor").
		Preload("Category").
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindOwned loads a product only when vendorID owns it.
func (r *Repository) FindOwned(ctx context.Context, vendorID, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", id, vendorID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Save persists every column of an already loaded product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(product).
		Select("name", "description", "price", "stock", "status", "image_url", "category_id", "updated_at").
		Updates(product).Error
}

// Delete removes the product when owned by vendorID and reports whether a row went away.
func (r *Repository) Delete(ctx context.Context, vendorID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", id, vendorID).
		Delete(&models.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List applies filters, sorting and page-number pagination.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Product, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Joins("JOIN users AS vendors ON vendors.id = products.vendor_id")

	if q.vendorID != nil {
		base = base.Where("products.vendor_id = ?", *q.vendorID)
	}
	if q.activeOnly {
		base = base.Where("products.status = ?", enums.ProductStatusActive)
	}
	if q.filters.CategoryID != nil {
		base = base.Where("products.category_id = ?", *q.filters.CategoryID)
	}
	if q.filters.CategorySlug != "" {
		base = base.Where("products.category_id IN (SELECT id FROM categories WHERE slug = ?)", q.filters.CategorySlug)
	}
	if q.filters.MinPrice != nil {
		base = base.Where("products.price >= ?", *q.filters.MinPrice)
	}
	if q.filters.MaxPrice != nil {
		base = base.Where("products.price <= ?", *q.filters.MaxPrice)
	}
	if q.filters.Query != "" {
		pattern := likePattern(q.filters.Query)
		base = base.Where(
			`LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.description) LIKE ? ESCAPE '\' OR LOWER(vendors.username) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	if err := base.
		Select("products.*").
		Preload("Vendor").
		Preload("Category").
		Order(q.orderClause()).
		Limit(q.page.Size).
		Offset(q.page.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) CountByStatus(ctx context.Context, vendorID uuid.UUID) (map[enums.ProductStatus]int64, error) {
	type statusCount struct {
		Status enums.ProductStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("status, COUNT(*) AS count").
		Where("vendor_id = ?", vendorID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.ProductStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// InventoryValue sums price times stock across the vendor's products.
func (r *Repository) InventoryValue(ctx context.Context, vendorID uuid.UUID) (decimal.Decimal, error) {
	var value decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("SUM(price * stock)").
		Where("vendor_id = ?", vendorID).
		Row().
		Scan(&value)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.Valid {
		return decimal.Zero, nil
	}
	return value.Decimal.Round(2), nil
}

func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}
